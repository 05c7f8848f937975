package api

import "strings"

// NormalizeEntityName возвращает имя маршрута по имени, алиасу или имени таблицы (без учёта регистра).
func (s *Storage) NormalizeEntityName(name string) (string, bool) {
	nl := strings.ToLower(strings.TrimSpace(name))
	if nl == "" {
		return "", false
	}
	if _, ok := s.Schemas[nl]; ok {
		return nl, true
	}
	if n, ok := s.aliases[nl]; ok {
		return n, true
	}
	for n, e := range s.Schemas {
		if strings.ToLower(n) == nl || e.Table() == nl {
			return n, true
		}
	}
	return "", false
}

// routeNames: все пути, под которыми доступна сущность.
func (s *Storage) routeNames(name string) []string {
	out := []string{name}
	for _, a := range s.Schemas[name].Aliases() {
		if a != name {
			out = append(out, a)
		}
	}
	return out
}
