package dsl

import "strings"

// Cardinality: сколько вложений хранит сущность.
type Cardinality int

const (
	AttachNone Cardinality = iota
	AttachOne
	AttachMany
)

func (c Cardinality) String() string {
	switch c {
	case AttachOne:
		return "one"
	case AttachMany:
		return "many"
	default:
		return "none"
	}
}

// Entity описывает одну сущность (таблицу + маршрут) из DSL
type Entity struct {
	Module      string
	Name        string            // имя маршрута: /api/<Name>
	Options     map[string]string // table, folder, alias, label, visibility, summary
	Fields      []Field
	Constraints Constraints
}

type Constraints struct {
	Unique [][]string
}

// Field описывает поле сущности
type Field struct {
	Name     string
	Type     string            // string, text, float, int, bool, date, datetime, attachment, array
	ElemType string            // для array[...]
	Options  map[string]string // required, filter, form=, keep=
}

func (e *Entity) opt(k string) string {
	if e.Options == nil {
		return ""
	}
	return strings.TrimSpace(e.Options[k])
}

func (e *Entity) flag(k string) bool {
	if e.Options == nil {
		return false
	}
	v, ok := e.Options[k]
	return ok && !strings.EqualFold(v, "false")
}

// Table: имя таблицы; по умолчанию совпадает с именем сущности.
func (e *Entity) Table() string {
	if t := e.opt("table"); t != "" {
		return strings.ToLower(t)
	}
	return strings.ToLower(e.Name)
}

// Folder: префикс ключей в объектном хранилище.
func (e *Entity) Folder() string {
	if f := e.opt("folder"); f != "" {
		return f
	}
	return e.Table()
}

func (e *Entity) Label() string {
	if l := e.opt("label"); l != "" {
		return l
	}
	return e.Name
}

// Aliases: дополнительные имена маршрута (alias=result|res).
func (e *Entity) Aliases() []string {
	raw := e.opt("alias")
	if raw == "" {
		return nil
	}
	var out []string
	for _, a := range strings.Split(raw, "|") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (e *Entity) HasVisibility() bool { return e.flag("visibility") }
func (e *Entity) HasSummary() bool    { return e.flag("summary") }

// Attachment возвращает поле-вложение и его кратность.
// У сущности не больше одного такого поля (проверяет линтер).
func (e *Entity) Attachment() (Field, Cardinality) {
	for _, f := range e.Fields {
		switch f.Kind() {
		case AttachOne, AttachMany:
			return f, f.Kind()
		}
	}
	return Field{}, AttachNone
}

func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Kind: кратность вложения для поля (AttachNone для обычных полей).
func (f Field) Kind() Cardinality {
	t := strings.ToLower(f.Type)
	if t == "attachment" {
		return AttachOne
	}
	if t == "array" && strings.EqualFold(f.ElemType, "attachment") {
		return AttachMany
	}
	return AttachNone
}

var scalarTypes = map[string]struct{}{
	"string": {}, "text": {}, "int": {}, "float": {}, "bool": {}, "date": {}, "datetime": {},
}

// Supported: тип поля умеют хранить в Postgres и разбирать из формы.
func (f Field) Supported() bool {
	if f.Kind() != AttachNone {
		return true
	}
	_, ok := scalarTypes[strings.ToLower(f.Type)]
	return ok
}

func (f Field) has(k string) bool {
	if f.Options == nil {
		return false
	}
	v, ok := f.Options[k]
	return ok && !strings.EqualFold(v, "false")
}

func (f Field) Required() bool { return f.has("required") }
func (f Field) Filter() bool   { return f.has("filter") }

// FormName: имя multipart-поля с файлами.
func (f Field) FormName() string {
	if f.Options != nil && strings.TrimSpace(f.Options["form"]) != "" {
		return strings.TrimSpace(f.Options["form"])
	}
	return f.Name
}

// KeepName: имя поля со списком URL, которые клиент оставляет при обновлении.
func (f Field) KeepName() string {
	if f.Options != nil && strings.TrimSpace(f.Options["keep"]) != "" {
		return strings.TrimSpace(f.Options["keep"])
	}
	return "existing_" + f.FormName()
}
