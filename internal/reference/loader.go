package reference

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadCatalog читает один справочник (reference/sections.yaml).
// Пустой order заменяется позицией в файле.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.Name == "" {
		c.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	seen := make(map[string]struct{}, len(c.Items))
	for i := range c.Items {
		it := &c.Items[i]
		it.Code = strings.TrimSpace(it.Code)
		if it.Code == "" {
			return Catalog{}, fmt.Errorf("%s: item %d has empty code", path, i)
		}
		if _, dup := seen[it.Code]; dup {
			return Catalog{}, fmt.Errorf("%s: duplicate code %q", path, it.Code)
		}
		seen[it.Code] = struct{}{}
		if it.Name == "" {
			it.Name = it.Code
		}
		if it.Order == 0 {
			it.Order = i + 1
		}
	}
	sort.SliceStable(c.Items, func(i, j int) bool { return c.Items[i].Order < c.Items[j].Order })
	return c, nil
}
