package api

import (
	"context"
	"sort"
	"strings"

	"greening/internal/auth"
	"greening/internal/blob"
	"greening/internal/config"
	"greening/internal/dsl"
	"greening/internal/pg"
	"greening/internal/reference"
)

// Records: строки сущностей (реализация: pg.Store).
type Records interface {
	List(ctx context.Context, e *dsl.Entity, q pg.ListQuery) ([]pg.Row, int, error)
	Get(ctx context.Context, e *dsl.Entity, id int64) (pg.Row, error)
	Insert(ctx context.Context, e *dsl.Entity, v pg.Values) (pg.Row, error)
	Update(ctx context.Context, e *dsl.Entity, id int64, fn func(prev pg.Row) (pg.Values, error)) (pg.Row, pg.Row, error)
	Delete(ctx context.Context, e *dsl.Entity, id int64) (pg.Row, error)
	Summary(ctx context.Context, e *dsl.Entity, district string) (pg.Summary, error)
}

type Accounts interface {
	PasswordHash(ctx context.Context, username string) (string, error)
}

// Visibility: флаги settings и site_sections.
type Visibility interface {
	ListSettings(ctx context.Context) ([]pg.Setting, error)
	GetSetting(ctx context.Context, section string) (pg.Setting, error)
	SetSetting(ctx context.Context, section string, visible bool) (pg.Setting, error)
	ListSiteSections(ctx context.Context) ([]pg.SiteSection, error)
	GetSiteSection(ctx context.Context, key string) (pg.SiteSection, error)
	SetSiteSection(ctx context.Context, item reference.Item, visible bool) (pg.SiteSection, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Storage: всё, что нужно обработчикам. Собирается в main, дальше не меняется.
type Storage struct {
	Schemas  map[string]*dsl.Entity // имя маршрута -> схема
	aliases  map[string]string      // alias -> имя маршрута
	Sections reference.Catalog

	Records    Records
	Accounts   Accounts
	Visibility Visibility
	Health     Pinger

	Blob   blob.Store
	Keys   *blob.KeyGen
	Tokens *auth.Tokens
	Cfg    *config.Config
}

func NewStorage(entities map[string]*dsl.Entity, sections reference.Catalog) *Storage {
	s := &Storage{
		Schemas:  entities,
		aliases:  make(map[string]string),
		Sections: sections,
		Keys:     blob.NewKeyGen(),
	}
	for name, e := range entities {
		for _, a := range e.Aliases() {
			s.aliases[strings.ToLower(a)] = name
		}
	}
	return s
}

// UsePG подключает Postgres сразу ко всем ролям.
func (s *Storage) UsePG(p *pg.Store) {
	s.Records = p
	s.Accounts = p
	s.Visibility = p
	s.Health = p
}

// entityNames: имена в стабильном порядке.
func (s *Storage) entityNames() []string {
	names := make([]string, 0, len(s.Schemas))
	for n := range s.Schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
