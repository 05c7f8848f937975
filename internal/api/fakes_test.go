package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"greening/internal/apperrors"
	"greening/internal/auth"
	"greening/internal/blob"
	"greening/internal/config"
	"greening/internal/dsl"
	"greening/internal/pg"
	"greening/internal/reference"
)

// memRecords: Records в памяти, ведёт себя как pg.Store на уровне строк.
type memRecords struct {
	mu           sync.Mutex
	next         int64
	rows         map[string]map[int64]pg.Row
	summaryCalls int
	failInsert   error
}

func newMemRecords() *memRecords {
	return &memRecords{rows: map[string]map[int64]pg.Row{}}
}

func clone(r pg.Row) pg.Row {
	out := make(pg.Row, len(r))
	for k, v := range r {
		if l, ok := v.([]string); ok {
			v = append([]string(nil), l...)
		}
		out[k] = v
	}
	return out
}

func apply(e *dsl.Entity, row pg.Row, v pg.Values) {
	for _, f := range e.Fields {
		val, ok := v[f.Name]
		if !ok {
			continue
		}
		if l, isList := val.([]string); isList && len(l) == 0 {
			val = nil
		}
		row[f.Name] = val
	}
}

func (m *memRecords) List(_ context.Context, e *dsl.Entity, q pg.ListQuery) ([]pg.Row, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pg.Row, 0)
	for _, r := range m.rows[e.Name] {
		match := true
		for _, f := range e.Fields {
			want, ok := q.Filters[f.Name]
			if f.Filter() && ok && want != "" && fmt.Sprint(r[f.Name]) != want {
				match = false
			}
		}
		if match {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i]["id"].(int64) > out[j]["id"].(int64) })
	total := len(out)
	if q.Offset > 0 {
		if q.Offset > len(out) {
			q.Offset = len(out)
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, total, nil
}

func (m *memRecords) Get(_ context.Context, e *dsl.Entity, id int64) (pg.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[e.Name][id]
	if !ok {
		return nil, apperrors.NotFound(e.Name, nil)
	}
	return clone(r), nil
}

func (m *memRecords) Insert(_ context.Context, e *dsl.Entity, v pg.Values) (pg.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return nil, m.failInsert
	}
	m.next++
	now := time.Now().UTC().Format(time.RFC3339)
	row := pg.Row{"id": m.next, "created_at": now, "updated_at": now}
	for _, f := range e.Fields {
		row[f.Name] = nil
	}
	apply(e, row, v)
	if m.rows[e.Name] == nil {
		m.rows[e.Name] = map[int64]pg.Row{}
	}
	m.rows[e.Name][m.next] = row
	return clone(row), nil
}

func (m *memRecords) Update(_ context.Context, e *dsl.Entity, id int64, fn func(prev pg.Row) (pg.Values, error)) (pg.Row, pg.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[e.Name][id]
	if !ok {
		return nil, nil, apperrors.NotFound(e.Name, nil)
	}
	prev := clone(r)
	v, err := fn(clone(r))
	if err != nil {
		return nil, nil, err
	}
	apply(e, r, v)
	return clone(r), prev, nil
}

func (m *memRecords) Delete(_ context.Context, e *dsl.Entity, id int64) (pg.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[e.Name][id]
	if !ok {
		return nil, apperrors.NotFound(e.Name, nil)
	}
	delete(m.rows[e.Name], id)
	return r, nil
}

func (m *memRecords) Summary(_ context.Context, e *dsl.Entity, district string) (pg.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaryCalls++
	var s pg.Summary
	for _, r := range m.rows[e.Name] {
		if district != "" && r["district"] != district {
			continue
		}
		s.Count++
		if a, ok := r["area"].(float64); ok {
			s.Area += a
		}
		if l, ok := r["length"].(float64); ok {
			s.Length += l
		}
	}
	return s, nil
}

type memAccounts map[string]string

func (m memAccounts) PasswordHash(_ context.Context, username string) (string, error) {
	h, ok := m[username]
	if !ok {
		return "", apperrors.NotFound("user", nil)
	}
	return h, nil
}

type memVisibility struct {
	mu       sync.Mutex
	settings map[string]bool
	sections map[string]pg.SiteSection
}

func newMemVisibility(c reference.Catalog) *memVisibility {
	v := &memVisibility{settings: map[string]bool{}, sections: map[string]pg.SiteSection{}}
	for _, it := range c.Items {
		v.sections[it.Code] = pg.SiteSection{Key: it.Code, Label: it.Name, IsVisible: true, SortOrder: it.Order}
	}
	return v
}

func (v *memVisibility) ListSettings(context.Context) ([]pg.Setting, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]pg.Setting, 0, len(v.settings))
	for k, vis := range v.settings {
		out = append(out, pg.Setting{Section: k, Visible: vis})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Section < out[j].Section })
	return out, nil
}

func (v *memVisibility) GetSetting(_ context.Context, section string) (pg.Setting, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	vis, ok := v.settings[section]
	if !ok {
		vis = true
	}
	return pg.Setting{Section: section, Visible: vis}, nil
}

func (v *memVisibility) SetSetting(_ context.Context, section string, visible bool) (pg.Setting, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.settings[section] = visible
	return pg.Setting{Section: section, Visible: visible}, nil
}

func (v *memVisibility) ListSiteSections(context.Context) ([]pg.SiteSection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]pg.SiteSection, 0, len(v.sections))
	for _, s := range v.sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (v *memVisibility) GetSiteSection(_ context.Context, key string) (pg.SiteSection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.sections[key]
	if !ok {
		return s, apperrors.NotFound("section", nil)
	}
	return s, nil
}

func (v *memVisibility) SetSiteSection(_ context.Context, item reference.Item, visible bool) (pg.SiteSection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.sections[item.Code]
	s.Key, s.Label, s.SortOrder, s.IsVisible = item.Code, item.Name, item.Order, visible
	v.sections[item.Code] = s
	return s, nil
}

const testSecret = "test-secret"

type testEnv struct {
	storage *Storage
	records *memRecords
	vis     *memVisibility
	blob    *blob.LocalStore
	router  *gin.Engine
	token   string
}

func loadShipped(t *testing.T) (map[string]*dsl.Entity, reference.Catalog) {
	t.Helper()
	ents, err := dsl.LoadAllEntities(filepath.Join("..", "..", "dsl"))
	require.NoError(t, err)
	sections, err := reference.LoadCatalog(filepath.Join("..", "..", "reference", "sections.yaml"))
	require.NoError(t, err)
	return ents, sections
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ents, sections := loadShipped(t)
	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)

	root := t.TempDir()
	store := blob.NewLocal(root, "http://test.local/uploads")

	s := NewStorage(ents, sections)
	recs := newMemRecords()
	vis := newMemVisibility(sections)
	s.Records = recs
	s.Accounts = memAccounts{"admin": hash}
	s.Visibility = vis
	s.Blob = store
	s.Tokens = auth.NewTokens(testSecret, time.Hour)
	s.Cfg = &config.Config{BlobDriver: "local", FilesRoot: root, MaxUploadMB: 8, CORSOrigins: []string{"*"}}

	token, _, err := s.Tokens.Issue("admin")
	require.NoError(t, err)

	return &testEnv{storage: s, records: recs, vis: vis, blob: store, router: NewRouter(s), token: token}
}

type upload struct {
	field, name string
	body        []byte
}

func multipartBody(t *testing.T, fields url.Values, files ...upload) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, vals := range fields {
		for _, v := range vals {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (te *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	te.router.ServeHTTP(w, req)
	return w
}

func (te *testEnv) doJSON(t *testing.T, method, path string, payload any, token string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return te.do(t, method, path, bytes.NewReader(b), "application/json", token)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, w)["error"].(string)
}

func wallFields() url.Values {
	return url.Values{
		"serial":        {"GW-001"},
		"year":          {"2024"},
		"district":      {"中正區"},
		"type":          {"立體綠化"},
		"project_name":  {"北門綠牆"},
		"maintain_unit": {"公園處"},
	}
}

// png-заголовок, чтобы mimetype узнал картинку
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func stringsOf(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, it := range list {
		out = append(out, it.(string))
	}
	return out
}

func (te *testEnv) exists(t *testing.T, url string) bool {
	t.Helper()
	ok, err := te.blob.Exists(context.Background(), url)
	require.NoError(t, err)
	return ok
}

func walkFiles(root string, fn func()) error {
	return filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			fn()
		}
		return nil
	})
}

func (te *testEnv) doHeader(t *testing.T, method, path, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", authorization)
	w := httptest.NewRecorder()
	te.router.ServeHTTP(w, req)
	return w
}
