package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"greening/internal/apperrors"
	"greening/internal/dsl"
)

// Row: строка сущности в том виде, в каком уходит клиенту.
// Даты в формате "YYYY-MM-DD", метки времени в RFC3339, список вложений: []string или nil.
type Row map[string]any

// Values: колонки для INSERT/UPDATE, уже приведённые к типам поля.
// Для array[attachment] значение имеет тип []string.
type Values map[string]any

type ListQuery struct {
	Filters map[string]string // только поля с опцией filter
	Limit   int               // 0: без лимита
	Offset  int
}

type Summary struct {
	Count  int64   `json:"count"`
	Area   float64 `json:"area"`
	Length float64 `json:"length"`
}

// EncodeURLs сериализует список вложений для jsonb. Пустой список хранится как NULL.
func EncodeURLs(urls []string) (any, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// DecodeURLs разбирает jsonb-текст. NULL и пустая строка дают nil.
func DecodeURLs(raw any) ([]string, error) {
	var s string
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return nil, fmt.Errorf("unexpected attachment list type %T", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("attachment list is not a JSON array of strings: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func selectColumns(e *dsl.Entity) string {
	cols := []string{`"id"`, `"created_at"`, `"updated_at"`}
	for _, f := range e.Fields {
		if f.Kind() == dsl.AttachMany {
			cols = append(cols, fmt.Sprintf("%s::text as %s", sqlIdent(f.Name), sqlIdent(f.Name)))
			continue
		}
		cols = append(cols, sqlIdent(f.Name))
	}
	return strings.Join(cols, ", ")
}

// placeholder с приведением типа там, где драйверу нужен подсказ.
func placeholder(f dsl.Field, n int) string {
	if f.Kind() == dsl.AttachMany {
		return fmt.Sprintf("$%d::jsonb", n)
	}
	switch strings.ToLower(f.Type) {
	case "date":
		return fmt.Sprintf("$%d::date", n)
	case "datetime":
		return fmt.Sprintf("$%d::timestamptz", n)
	}
	return fmt.Sprintf("$%d", n)
}

func bindValue(f dsl.Field, v any) (any, error) {
	if f.Kind() != dsl.AttachMany {
		return v, nil
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return EncodeURLs(t)
	default:
		return nil, fmt.Errorf("%s: expected []string, got %T", f.Name, v)
	}
}

func whereFilters(e *dsl.Entity, filters map[string]string, args []any) (string, []any) {
	var conds []string
	for _, f := range e.Fields {
		if !f.Filter() {
			continue
		}
		v, ok := filters[f.Name]
		if !ok || v == "" {
			continue
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s::text = $%d", sqlIdent(f.Name), len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " where " + strings.Join(conds, " and "), args
}

func listSQL(e *dsl.Entity, q ListQuery) (string, []any) {
	where, args := whereFilters(e, q.Filters, nil)
	query := fmt.Sprintf(`select %s from %s%s order by "created_at" desc, "id" desc`,
		selectColumns(e), tableName(e), where)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" limit $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" offset $%d", len(args))
	}
	return query, args
}

func countSQL(e *dsl.Entity, q ListQuery) (string, []any) {
	where, args := whereFilters(e, q.Filters, nil)
	return fmt.Sprintf("select count(*) from %s%s", tableName(e), where), args
}

func insertSQL(e *dsl.Entity, v Values) (string, []any, error) {
	var cols, ph []string
	var args []any
	for _, f := range e.Fields {
		val, ok := v[f.Name]
		if !ok {
			continue
		}
		bound, err := bindValue(f, val)
		if err != nil {
			return "", nil, err
		}
		args = append(args, bound)
		cols = append(cols, sqlIdent(f.Name))
		ph = append(ph, placeholder(f, len(args)))
	}
	if len(cols) == 0 {
		return fmt.Sprintf("insert into %s default values returning %s", tableName(e), selectColumns(e)), nil, nil
	}
	return fmt.Sprintf("insert into %s (%s) values (%s) returning %s",
		tableName(e), strings.Join(cols, ", "), strings.Join(ph, ", "), selectColumns(e)), args, nil
}

// updateSQL трогает только переданные колонки; остальные остаются как были.
func updateSQL(e *dsl.Entity, id int64, v Values) (string, []any, error) {
	var sets []string
	var args []any
	for _, f := range e.Fields {
		val, ok := v[f.Name]
		if !ok {
			continue
		}
		bound, err := bindValue(f, val)
		if err != nil {
			return "", nil, err
		}
		args = append(args, bound)
		sets = append(sets, fmt.Sprintf("%s = %s", sqlIdent(f.Name), placeholder(f, len(args))))
	}
	sets = append(sets, `"updated_at" = now()`)
	args = append(args, id)
	return fmt.Sprintf(`update %s set %s where "id" = $%d returning %s`,
		tableName(e), strings.Join(sets, ", "), len(args), selectColumns(e)), args, nil
}

func summarySQL(e *dsl.Entity, district string) (string, []any) {
	query := fmt.Sprintf(`select count(*), coalesce(sum("area"), 0), coalesce(sum("length"), 0) from %s`, tableName(e))
	if district == "" {
		return query, nil
	}
	return query + ` where "district" = $1`, []any{district}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(e *dsl.Entity, sc scanner) (Row, error) {
	n := 3 + len(e.Fields)
	vals := make([]any, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := sc.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := Row{
		"id":         vals[0],
		"created_at": formatTime(vals[1], time.RFC3339),
		"updated_at": formatTime(vals[2], time.RFC3339),
	}
	for i, f := range e.Fields {
		v := vals[3+i]
		switch {
		case f.Kind() == dsl.AttachMany:
			urls, err := DecodeURLs(v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", e.Name, f.Name, err)
			}
			if urls == nil {
				row[f.Name] = nil
			} else {
				row[f.Name] = urls
			}
		case strings.EqualFold(f.Type, "date"):
			row[f.Name] = formatTime(v, "2006-01-02")
		case strings.EqualFold(f.Type, "datetime"):
			row[f.Name] = formatTime(v, time.RFC3339)
		default:
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[f.Name] = v
		}
	}
	return row, nil
}

func formatTime(v any, layout string) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(layout)
	}
	return v
}

func (s *Store) List(ctx context.Context, e *dsl.Entity, q ListQuery) ([]Row, int, error) {
	var total int
	cq, cargs := countSQL(e, q)
	if err := s.DB.QueryRowContext(ctx, cq, cargs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args := listSQL(e, q)
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		r, err := scanRow(e, rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, e *dsl.Entity, id int64) (Row, error) {
	query := fmt.Sprintf(`select %s from %s where "id" = $1`, selectColumns(e), tableName(e))
	r, err := scanRow(e, s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(e.Name, err)
	}
	return r, err
}

func (s *Store) Insert(ctx context.Context, e *dsl.Entity, v Values) (Row, error) {
	query, args, err := insertSQL(e, v)
	if err != nil {
		return nil, err
	}
	return scanRow(e, s.DB.QueryRowContext(ctx, query, args...))
}

// Update блокирует строку, отдаёт её fn и записывает то, что fn вернул.
// Возвращает новую и предыдущую версии строки.
func (s *Store) Update(ctx context.Context, e *dsl.Entity, id int64, fn func(prev Row) (Values, error)) (Row, Row, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	lock := fmt.Sprintf(`select %s from %s where "id" = $1 for update`, selectColumns(e), tableName(e))
	prev, err := scanRow(e, tx.QueryRowContext(ctx, lock, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, apperrors.NotFound(e.Name, err)
	}
	if err != nil {
		return nil, nil, err
	}

	v, err := fn(prev)
	if err != nil {
		return nil, nil, err
	}
	query, args, err := updateSQL(e, id, v)
	if err != nil {
		return nil, nil, err
	}
	updated, err := scanRow(e, tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return updated, prev, nil
}

func (s *Store) Delete(ctx context.Context, e *dsl.Entity, id int64) (Row, error) {
	query := fmt.Sprintf(`delete from %s where "id" = $1 returning %s`, tableName(e), selectColumns(e))
	r, err := scanRow(e, s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(e.Name, err)
	}
	return r, err
}

func (s *Store) Summary(ctx context.Context, e *dsl.Entity, district string) (Summary, error) {
	var out Summary
	query, args := summarySQL(e, district)
	err := s.DB.QueryRowContext(ctx, query, args...).Scan(&out.Count, &out.Area, &out.Length)
	return out, err
}
