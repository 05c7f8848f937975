package pg

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"greening/internal/logger"
)

// ApplyDDL выполняет map[key]sql в порядке ключей. DDL должен быть идемпотентным.
func (s *Store) ApplyDDL(ctx context.Context, ddl map[string]string) error {
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sqlText := strings.TrimSpace(ddl[k])
		if sqlText == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, sqlText); err != nil {
			if isDuplicateObject(err) {
				logger.Warn("DDL %s skipped (already exists): %v", k, err)
				continue
			}
			return fmt.Errorf("DDL %s failed: %w", k, err)
		}
		logger.Debug("DDL %s applied", k)
	}
	return nil
}

// 42710 duplicate_object, 42P07 duplicate_table
func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42710" || pgErr.Code == "42P07"
	}
	return false
}
