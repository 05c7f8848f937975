package pg

import (
	"fmt"
	"sort"
	"strings"

	"greening/internal/dsl"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// системные колонки каждой таблицы сущности
var systemColumns = map[string]struct{}{"id": {}, "created_at": {}, "updated_at": {}}

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

// tableName: "<module>"."<table>"
func tableName(e *dsl.Entity) string {
	mod := e.Module
	if mod == "" {
		mod = "public"
	}
	return sqlIdent(mod) + "." + sqlIdent(e.Table())
}

func mapType(f dsl.Field) (string, error) {
	switch f.Kind() {
	case dsl.AttachOne:
		return "text", nil
	case dsl.AttachMany:
		return "jsonb", nil
	}
	switch strings.ToLower(f.Type) {
	case "string", "text":
		return "text", nil
	case "int":
		return "bigint", nil
	case "float":
		return "double precision", nil
	case "bool":
		return "boolean", nil
	case "date":
		return "date", nil
	case "datetime":
		return "timestamp with time zone", nil
	default:
		return "", fmt.Errorf("unknown type: %s", f.Type)
	}
}

// Служебные таблицы не описываются в DSL.
const systemDDL = `
create table if not exists "users" (
  "id" bigserial primary key,
  "username" text not null unique,
  "password_hash" text not null,
  "created_at" timestamp with time zone not null default now()
);
create table if not exists "settings" (
  "id" bigserial primary key,
  "section" text not null unique,
  "visible" boolean not null default true
);
create table if not exists "site_sections" (
  "id" bigserial primary key,
  "key" text not null unique,
  "label" text not null,
  "is_visible" boolean not null default true,
  "sort_order" integer not null default 0
);
`

// GenerateDDL возвращает карту key -> SQL. Ключи задают порядок применения.
func GenerateDDL(entities map[string]*dsl.Entity) (map[string]string, error) {
	out := make(map[string]string, len(entities)+2)
	out["000_system"] = strings.TrimSpace(systemDDL)

	names := make([]string, 0, len(entities))
	for k := range entities {
		names = append(names, k)
	}
	sort.Strings(names)

	seenSchemas := map[string]struct{}{}
	var schemas strings.Builder

	for _, name := range names {
		e := entities[name]
		if isReserved(e.Table()) {
			return nil, fmt.Errorf("%s: table name %q is a reserved word", e.Name, e.Table())
		}
		mod := e.Module
		if mod == "" {
			mod = "public"
		}
		if _, ok := seenSchemas[mod]; !ok {
			fmt.Fprintf(&schemas, "create schema if not exists %s;\n", sqlIdent(mod))
			seenSchemas[mod] = struct{}{}
		}

		cols := []string{
			`"id" bigserial primary key`,
			`"created_at" timestamp with time zone not null default now()`,
			`"updated_at" timestamp with time zone not null default now()`,
		}
		seen := map[string]struct{}{}
		for k := range systemColumns {
			seen[k] = struct{}{}
		}

		for _, f := range e.Fields {
			lower := strings.ToLower(f.Name)
			if _, dup := seen[lower]; dup {
				return nil, fmt.Errorf("%s: field %q duplicates a system or another column", e.Name, f.Name)
			}
			seen[lower] = struct{}{}

			typ, err := mapType(f)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", e.Name, f.Name, err)
			}
			null := "null"
			if f.Required() {
				null = "not null"
			}
			cols = append(cols, fmt.Sprintf("%s %s %s", sqlIdent(f.Name), typ, null))
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "create table if not exists %s (\n  %s\n);\n", tableName(e), strings.Join(cols, ",\n  "))

		// индекс под сортировку листинга
		fmt.Fprintf(&sb, "create index if not exists %s on %s(\"created_at\" desc, \"id\" desc);\n",
			sqlIdent(e.Table()+"_created_idx"), tableName(e))

		for _, f := range e.Fields {
			if f.Filter() {
				fmt.Fprintf(&sb, "create index if not exists %s on %s(%s);\n",
					sqlIdent(e.Table()+"_"+f.Name+"_idx"), tableName(e), sqlIdent(f.Name))
			}
		}
		for _, set := range e.Constraints.Unique {
			if len(set) == 0 {
				continue
			}
			parts := make([]string, 0, len(set))
			for _, p := range set {
				parts = append(parts, sqlIdent(p))
			}
			fmt.Fprintf(&sb, "create unique index if not exists %s on %s(%s);\n",
				sqlIdent(e.Table()+"_"+strings.Join(set, "_")+"_uq"), tableName(e), strings.Join(parts, ", "))
		}

		out["100_"+e.Table()] = sb.String()
	}
	out["050_schemas"] = schemas.String()
	return out, nil
}

// DropDDL: для migrate --reset.
func DropDDL(entities map[string]*dsl.Entity) string {
	names := make([]string, 0, len(entities))
	for k := range entities {
		names = append(names, k)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "drop table if exists %s cascade;\n", tableName(entities[name]))
	}
	sb.WriteString(`drop table if exists "site_sections", "settings", "users" cascade;`)
	return sb.String()
}
