package pg

import (
	"context"
	"fmt"
	"sort"

	"greening/internal/dsl"
	"greening/internal/logger"
	"greening/internal/reference"
)

// Seed: начальные данные, которые migrate досыпает без перезаписи.
type Seed struct {
	Sections      reference.Catalog
	AdminUsername string
	AdminHash     string // пусто: администратора не создаём
}

// Migrate создаёт недостающие таблицы и сидирует settings, site_sections и администратора.
// Ничего не удаляет.
func (s *Store) Migrate(ctx context.Context, entities map[string]*dsl.Entity, seed Seed) error {
	ddl, err := GenerateDDL(entities)
	if err != nil {
		return err
	}
	if err := s.ApplyDDL(ctx, ddl); err != nil {
		return err
	}

	names := make([]string, 0, len(entities))
	for name, e := range entities {
		if e.HasVisibility() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := s.DB.ExecContext(ctx,
			`insert into "settings" ("section", "visible") values ($1, true) on conflict ("section") do nothing`, name); err != nil {
			return fmt.Errorf("seed settings %s: %w", name, err)
		}
	}

	for _, it := range seed.Sections.Items {
		if _, err := s.DB.ExecContext(ctx, `
insert into "site_sections" ("key", "label", "is_visible", "sort_order") values ($1, $2, true, $3)
on conflict ("key") do nothing`, it.Code, it.Name, it.Order); err != nil {
			return fmt.Errorf("seed site section %s: %w", it.Code, err)
		}
	}

	if seed.AdminUsername != "" && seed.AdminHash != "" {
		res, err := s.DB.ExecContext(ctx, `
insert into "users" ("username", "password_hash") values ($1, $2)
on conflict ("username") do nothing`, seed.AdminUsername, seed.AdminHash)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			logger.Info("created user %s", seed.AdminUsername)
		}
	}
	logger.Info("migration done: %d entities, %d settings, %d site sections",
		len(entities), len(names), len(seed.Sections.Items))
	return nil
}

// Reset удаляет все таблицы сервиса и создаёт их заново. Данные теряются.
func (s *Store) Reset(ctx context.Context, entities map[string]*dsl.Entity, seed Seed) error {
	logger.Warn("dropping all tables")
	if _, err := s.DB.ExecContext(ctx, DropDDL(entities)); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return s.Migrate(ctx, entities, seed)
}
