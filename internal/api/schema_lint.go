package api

import (
	"fmt"
	"sort"
	"strings"

	"greening/internal/dsl"
)

type SchemaIssue struct {
	Entity  string `json:"entity"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i SchemaIssue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s (%s)", i.Entity, i.Message, i.Code)
	}
	return fmt.Sprintf("%s.%s: %s (%s)", i.Entity, i.Field, i.Message, i.Code)
}

// маршруты, которые заняты служебными обработчиками
var reservedRoutes = map[string]struct{}{
	"login": {}, "summary": {}, "meta": {}, "settings": {}, "site": {},
}

// SchemaLint проверяет противоречия в описаниях сущностей.
func (s *Storage) SchemaLint() []SchemaIssue {
	var issues []SchemaIssue
	add := func(entity, field, code, format string, args ...any) {
		issues = append(issues, SchemaIssue{Entity: entity, Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	routes := map[string]string{}
	for _, name := range s.entityNames() {
		e := s.Schemas[name]

		for _, route := range s.routeNames(name) {
			rl := strings.ToLower(route)
			if _, bad := reservedRoutes[rl]; bad {
				add(name, "", "route_reserved", "route %q is used by a built-in endpoint", route)
			}
			if other, dup := routes[rl]; dup {
				add(name, "", "route_duplicate", "route %q is already used by %s", route, other)
				continue
			}
			routes[rl] = name
		}

		attachments := 0
		for _, f := range e.Fields {
			if f.Kind() == dsl.AttachNone {
				if strings.EqualFold(f.Type, "array") {
					add(name, f.Name, "array_unsupported", "only array[attachment] is supported")
				} else if !f.Supported() {
					add(name, f.Name, "type_unsupported", "unsupported type %q", f.Type)
				}
				continue
			}
			attachments++
			if f.Filter() {
				add(name, f.Name, "filter_on_attachment", "attachment fields cannot be filters")
			}
			if f.Required() {
				add(name, f.Name, "required_attachment", "attachment fields cannot be required")
			}
		}
		if attachments > 1 {
			add(name, "", "attachments_multiple", "entity has %d attachment fields; at most one is allowed", attachments)
		}

		if e.HasSummary() {
			for _, want := range []struct{ name, typ string }{{"area", "float"}, {"length", "float"}, {"district", "string"}} {
				f, ok := e.Field(want.name)
				if !ok || !strings.EqualFold(f.Type, want.typ) {
					add(name, want.name, "summary_field_missing", "summary entity needs %s field %q", want.typ, want.name)
				}
			}
		}
	}

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Entity < issues[j].Entity })
	return issues
}
