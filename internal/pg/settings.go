package pg

import (
	"context"
	"database/sql"
	"errors"

	"greening/internal/apperrors"
	"greening/internal/reference"
)

type Setting struct {
	Section string `json:"section"`
	Visible bool   `json:"visible"`
}

type SiteSection struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	IsVisible bool   `json:"is_visible"`
	SortOrder int    `json:"sort_order"`
}

func (s *Store) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := s.DB.QueryContext(ctx, `select "section", "visible" from "settings" order by "section"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Setting, 0)
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Section, &st.Visible); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetSetting: строки ещё нет, значит секция видима (значение по умолчанию).
func (s *Store) GetSetting(ctx context.Context, section string) (Setting, error) {
	st := Setting{Section: section, Visible: true}
	err := s.DB.QueryRowContext(ctx, `select "visible" from "settings" where "section" = $1`, section).Scan(&st.Visible)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	return st, err
}

func (s *Store) SetSetting(ctx context.Context, section string, visible bool) (Setting, error) {
	st := Setting{Section: section}
	err := s.DB.QueryRowContext(ctx, `
insert into "settings" ("section", "visible") values ($1, $2)
on conflict ("section") do update set "visible" = excluded."visible"
returning "visible"`, section, visible).Scan(&st.Visible)
	return st, err
}

func (s *Store) ListSiteSections(ctx context.Context) ([]SiteSection, error) {
	rows, err := s.DB.QueryContext(ctx,
		`select "key", "label", "is_visible", "sort_order" from "site_sections" order by "sort_order", "key"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SiteSection, 0)
	for rows.Next() {
		var ss SiteSection
		if err := rows.Scan(&ss.Key, &ss.Label, &ss.IsVisible, &ss.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

func (s *Store) GetSiteSection(ctx context.Context, key string) (SiteSection, error) {
	ss := SiteSection{Key: key}
	err := s.DB.QueryRowContext(ctx,
		`select "label", "is_visible", "sort_order" from "site_sections" where "key" = $1`, key).
		Scan(&ss.Label, &ss.IsVisible, &ss.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return ss, apperrors.NotFound("section", err)
	}
	return ss, err
}

// SetSiteSection меняет только флаг; label и порядок берутся из каталога, если строки ещё нет.
func (s *Store) SetSiteSection(ctx context.Context, item reference.Item, visible bool) (SiteSection, error) {
	ss := SiteSection{Key: item.Code}
	err := s.DB.QueryRowContext(ctx, `
insert into "site_sections" ("key", "label", "is_visible", "sort_order") values ($1, $2, $3, $4)
on conflict ("key") do update set "is_visible" = excluded."is_visible"
returning "label", "is_visible", "sort_order"`, item.Code, item.Name, visible, item.Order).
		Scan(&ss.Label, &ss.IsVisible, &ss.SortOrder)
	return ss, err
}
