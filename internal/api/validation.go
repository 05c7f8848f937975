package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"greening/internal/apperrors"
	"greening/internal/dsl"
	"greening/internal/pg"
)

// formValues приводит поля формы к типам схемы. Вложения не трогает.
// create: без обязательного поля ошибка; update: отсутствующее поле не меняется.
func formValues(e *dsl.Entity, form url.Values, create bool) (pg.Values, error) {
	out := pg.Values{}
	for _, f := range e.Fields {
		if f.Kind() != dsl.AttachNone {
			continue
		}
		vals, present := form[f.Name]
		if !present || len(vals) == 0 {
			if create && f.Required() {
				return nil, apperrors.Validation(f.Name + " is required")
			}
			continue
		}
		raw := strings.TrimSpace(vals[0])
		if raw == "" && f.Required() {
			return nil, apperrors.Validation(f.Name + " is required")
		}
		v, err := coerceFormValue(f, raw)
		if err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("%s %s", f.Name, err.Error()))
		}
		out[f.Name] = v
	}
	return out, nil
}

// coerceFormValue: пустая строка у нестроковых типов даёт NULL.
func coerceFormValue(f dsl.Field, s string) (any, error) {
	t := strings.ToLower(f.Type)
	if s == "" && t != "string" && t != "text" {
		return nil, nil
	}
	switch t {
	case "string", "text":
		return s, nil
	case "int":
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.New("must be an integer")
		}
		return n, nil
	case "float":
		x, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, errors.New("must be a number")
		}
		return x, nil
	case "bool":
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.New("must be a boolean")
		}
		return b, nil
	case "date":
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return nil, errors.New("must match YYYY-MM-DD")
		}
		return s, nil
	case "datetime":
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return nil, errors.New("must be RFC3339 datetime")
		}
		return s, nil
	default:
		return nil, fmt.Errorf("has unsupported type %s", f.Type)
	}
}

// jsonForm превращает JSON-объект в url.Values, чтобы JSON и формы шли одним путём.
// Массивы становятся повторяющимися значениями. Ключ со значением null считается
// не присланным; очистить поле можно пустой строкой.
func jsonForm(body []byte) (url.Values, error) {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, apperrors.BadRequest("invalid JSON", err)
	}
	form := url.Values{}
	for k, v := range obj {
		switch t := v.(type) {
		case nil:
			continue
		case []any:
			form[k] = []string{}
			for _, it := range t {
				form[k] = append(form[k], scalarString(it))
			}
		default:
			form.Set(k, scalarString(t))
		}
	}
	return form, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// parseKeepList читает список оставляемых URL: повторяющиеся значения или один JSON-массив.
// present=false: клиент список не прислал.
func parseKeepList(form url.Values, name string) (keep []string, present bool, err error) {
	vals, present := form[name]
	if !present {
		return nil, false, nil
	}
	if len(vals) == 1 {
		s := strings.TrimSpace(vals[0])
		if strings.HasPrefix(s, "[") {
			if err := json.Unmarshal([]byte(s), &keep); err != nil {
				return nil, true, apperrors.Validation(name + " must be a JSON array of strings")
			}
			return compact(keep), true, nil
		}
	}
	return compact(vals), true, nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// mergeAttachments: оставленные (в порядке клиента, только из prev) + новые.
// Без keep-списка сохраняются все прежние. dropped: то, что надо удалить из хранилища.
func mergeAttachments(prev, keep []string, keepPresent bool, added []string) (final, dropped []string) {
	kept := prev
	if keepPresent {
		had := make(map[string]bool, len(prev))
		for _, u := range prev {
			had[u] = true
		}
		kept = make([]string, 0, len(keep))
		seen := map[string]bool{}
		for _, u := range keep {
			if had[u] && !seen[u] {
				kept = append(kept, u)
				seen[u] = true
			}
		}
	}

	inKept := make(map[string]bool, len(kept))
	for _, u := range kept {
		inKept[u] = true
	}
	for _, u := range prev {
		if !inKept[u] {
			dropped = append(dropped, u)
		}
	}

	final = make([]string, 0, len(kept)+len(added))
	final = append(final, kept...)
	final = append(final, added...)
	return final, dropped
}

// urlsOf достаёт URL вложений из строки: []string для списка, string для одиночного.
func urlsOf(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case string:
		if t != "" {
			return []string{t}
		}
	}
	return nil
}
