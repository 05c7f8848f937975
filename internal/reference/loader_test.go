package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sections.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog(write(t, `
items:
  - code: result
    name: 成果
    order: 2
  - code: " announcement "
    order: 1
  - code: file
`))
	require.NoError(t, err)
	assert.Equal(t, "sections", c.Name)
	require.Len(t, c.Items, 3)

	assert.Equal(t, "announcement", c.Items[0].Code)
	assert.Equal(t, "announcement", c.Items[0].Name)
	assert.Equal(t, "result", c.Items[1].Code)
	assert.Equal(t, "file", c.Items[2].Code)
	assert.Equal(t, 3, c.Items[2].Order)

	it, ok := c.Lookup("result")
	require.True(t, ok)
	assert.Equal(t, "成果", it.Name)
	assert.True(t, c.Has("file"))
	assert.False(t, c.Has("green_wall"))
}

func TestLoadCatalogErrors(t *testing.T) {
	_, err := LoadCatalog(write(t, "items:\n  - code: a\n  - code: a\n"))
	assert.ErrorContains(t, err, "duplicate code")

	_, err = LoadCatalog(write(t, "items:\n  - name: x\n"))
	assert.ErrorContains(t, err, "empty code")

	_, err = LoadCatalog(write(t, "items: [\n"))
	assert.Error(t, err)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestShippedSections(t *testing.T) {
	c, err := LoadCatalog(filepath.Join("..", "..", "reference", "sections.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "site_sections", c.Name)
	assert.Len(t, c.Items, 7)
	assert.True(t, c.Has("green_wall"))
}
