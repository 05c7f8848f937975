package reference

// Catalog: справочник из YAML, имя и упорядоченные элементы.
type Catalog struct {
	Name  string `yaml:"name"`
	Items []Item `yaml:"items"`
}

type Item struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Order int    `yaml:"order,omitempty"`
}

// Has проверяет, что код есть в справочнике (allow-list разделов сайта).
func (c Catalog) Has(code string) bool {
	_, ok := c.Lookup(code)
	return ok
}

func (c Catalog) Lookup(code string) (Item, bool) {
	for _, it := range c.Items {
		if it.Code == code {
			return it, true
		}
	}
	return Item{}, false
}
