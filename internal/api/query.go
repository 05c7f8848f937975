package api

import (
	"net/url"
	"strconv"
	"strings"

	"greening/internal/pg"
)

const maxLimit = 1000

// parseListParams: limit/offset (или _limit/_offset) + равенства по остальным ключам.
// Неизвестные поля отбросит pg: фильтруются только поля с опцией filter.
func parseListParams(q url.Values) pg.ListQuery {
	lq := pg.ListQuery{Filters: make(map[string]string)}

	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n > 0 && n <= maxLimit {
			lq.Limit = n
		}
	}

	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			lq.Offset = n
		}
	}

	for key, vals := range q {
		switch key {
		case "limit", "offset", "_limit", "_offset":
			continue
		}
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				lq.Filters[key] = v
				break
			}
		}
	}
	return lq
}

// parseID: только положительные целые; всё остальное считается «не найдено».
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
