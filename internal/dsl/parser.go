package dsl

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	entityRe           = regexp.MustCompile(`^entity\s+(\w+):(.*)$`)
	fieldRe            = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	arrayRe            = regexp.MustCompile(`^array\[(.+)\]$`)
	moduleRe           = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_.-]+)\s*$`)
	reConstraintsStart = regexp.MustCompile(`^\s*constraints\s*:\s*$`)
	reUniqueLine       = regexp.MustCompile(`^\s*unique\s*\(\s*([^)]+)\s*\)\s*$`)
)

// splitOptionTokens делит "k=v k2='v 2' flag" на токены, не рвёт по пробелам внутри кавычек/скобок
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
			buf = append(buf, r)
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t') && !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// parseOptions: "required filter form=images label='Зона 1'" -> map
func parseOptions(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	if strings.HasPrefix(strings.ToLower(raw), "options:") {
		raw = strings.TrimSpace(raw[len("options:"):])
	}
	raw = strings.ReplaceAll(raw, ",", " ")

	out := map[string]string{}
	for _, tok := range splitOptionTokens(raw) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		// флаг без значения → "true"
		if !strings.Contains(tok, "=") {
			out[strings.ToLower(tok)] = "true"
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		if len(v) >= 2 {
			if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
				v = v[1 : len(v)-1]
			}
		}
		if k != "" {
			out[k] = v
		}
	}
	return out
}

// LoadEntities читает один .dsl файл
func LoadEntities(path string) ([]*Entity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}

// Parse разбирает DSL из произвольного reader'а
func Parse(r io.Reader) ([]*Entity, error) {
	var entities []*Entity
	var current *Entity
	currentModule := ""
	inConstraints := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := moduleRe.FindStringSubmatch(line); m != nil {
			currentModule = m[1]
			continue
		}

		// entity <name>: опции
		if m := entityRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				entities = append(entities, current)
			}
			current = &Entity{
				Module:  currentModule,
				Name:    m[1],
				Options: parseOptions(m[2]),
			}
			inConstraints = false
			continue
		}
		if current == nil {
			continue
		}

		if reConstraintsStart.MatchString(line) {
			inConstraints = true
			continue
		}
		if inConstraints {
			if m := reUniqueLine.FindStringSubmatch(line); m != nil {
				var set []string
				for _, p := range strings.Split(m[1], ",") {
					if p = strings.TrimSpace(p); p != "" {
						set = append(set, p)
					}
				}
				if len(set) > 0 {
					current.Constraints.Unique = append(current.Constraints.Unique, set)
				}
				continue
			}
			inConstraints = false
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("entity %s: cannot parse line %q", current.Name, line)
		}
		name, rawType, tail := m[1], m[2], m[3]

		// склейка оборванного array[...] со скобкой в хвосте
		if strings.HasPrefix(rawType, "array[") && !strings.Contains(rawType, "]") {
			if idx := strings.Index(tail, "]"); idx >= 0 {
				rawType = rawType + tail[:idx+1]
				tail = tail[idx+1:]
			}
		}

		f := Field{
			Name:    name,
			Type:    strings.ToLower(rawType),
			Options: parseOptions(tail),
		}
		if mm := arrayRe.FindStringSubmatch(rawType); mm != nil {
			f.Type = "array"
			f.ElemType = strings.ToLower(strings.TrimSpace(mm[1]))
		}

		current.Fields = append(current.Fields, f)
	}

	if current != nil {
		entities = append(entities, current)
	}
	return entities, scanner.Err()
}

// LoadAllEntities обходит каталог и собирает все сущности по имени маршрута.
func LoadAllEntities(root string) (map[string]*Entity, error) {
	result := make(map[string]*Entity)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}

		ents, err := LoadEntities(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for _, e := range ents {
			if e.Name == "" {
				return fmt.Errorf("empty entity name in %s", path)
			}
			if e.Module == "" {
				return fmt.Errorf("entity %q in %s has no module; add `module <name>` at the top", e.Name, path)
			}
			if _, exists := result[e.Name]; exists {
				return fmt.Errorf("duplicate entity %q (file: %s)", e.Name, path)
			}
			result[e.Name] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no entities found in %s", root)
	}
	return result, nil
}
