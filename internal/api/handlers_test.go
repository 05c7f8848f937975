package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greening/internal/blob"
)

func (te *testEnv) createWall(t *testing.T, fields url.Values, files ...upload) map[string]any {
	t.Helper()
	body, ct := multipartBody(t, fields, files...)
	w := te.do(t, http.MethodPost, "/api/green_walls", body, ct, te.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[map[string]any](t, w)
}

func TestCreateThenGet(t *testing.T) {
	te := newTestEnv(t)
	fields := wallFields()
	fields.Set("area", "12.5")
	fields.Set("length", "")
	fields.Set("maintain_start_date", "2024-03-01")

	created := te.createWall(t, fields,
		upload{"images", "a.png", pngBytes},
		upload{"images", "b.png", pngBytes},
		upload{"images", "c.png", pngBytes},
	)
	assert.Equal(t, 12.5, created["area"])
	assert.Nil(t, created["length"])
	assert.Nil(t, created["adopt_unit"])
	assert.Equal(t, "2024-03-01", created["maintain_start_date"])

	urls := stringsOf(created["image_urls"])
	require.Len(t, urls, 3)
	for i, name := range []string{"a.png", "b.png", "c.png"} {
		assert.True(t, strings.HasPrefix(urls[i], "http://test.local/uploads/green_walls/"), urls[i])
		assert.True(t, strings.HasSuffix(urls[i], "_"+name), urls[i])
		assert.True(t, te.exists(t, urls[i]))
	}

	w := te.do(t, http.MethodGet, fmt.Sprintf("/api/green_walls/%v", created["id"]), nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decode[map[string]any](t, w))
}

func TestCreateWithoutFilesStoresNull(t *testing.T) {
	te := newTestEnv(t)
	created := te.createWall(t, wallFields())
	assert.Nil(t, created["image_urls"])
}

func TestCreateValidation(t *testing.T) {
	te := newTestEnv(t)

	fields := wallFields()
	fields.Del("serial")
	body, ct := multipartBody(t, fields)
	w := te.do(t, http.MethodPost, "/api/green_walls", body, ct, te.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "serial is required", errorOf(t, w))

	fields = wallFields()
	fields.Set("area", "abc")
	body, ct = multipartBody(t, fields)
	w = te.do(t, http.MethodPost, "/api/green_walls", body, ct, te.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "area must be a number", errorOf(t, w))

	fields = wallFields()
	fields.Set("maintain_end_date", "2024/13/01")
	body, ct = multipartBody(t, fields)
	w = te.do(t, http.MethodPost, "/api/green_walls", body, ct, te.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "YYYY-MM-DD")

	assert.Empty(t, te.records.rows["green_walls"])
}

func TestCreateRequiresToken(t *testing.T) {
	te := newTestEnv(t)
	body, ct := multipartBody(t, wallFields())
	w := te.do(t, http.MethodPost, "/api/green_walls", body, ct, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing token", errorOf(t, w))
}

func TestInsertFailureRemovesUploads(t *testing.T) {
	te := newTestEnv(t)
	te.records.failInsert = errors.New("insert failed: connection reset")

	body, ct := multipartBody(t, wallFields(), upload{"images", "a.png", pngBytes})
	w := te.do(t, http.MethodPost, "/api/green_walls", body, ct, te.token)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "insert failed: connection reset", errorOf(t, w))

	files := 0
	require.NoError(t, walkFiles(te.storage.Cfg.FilesRoot, func() { files++ }))
	assert.Zero(t, files)
}

func TestUpdateKeepListThenAppend(t *testing.T) {
	te := newTestEnv(t)
	created := te.createWall(t, wallFields(),
		upload{"images", "a.png", pngBytes},
		upload{"images", "b.png", pngBytes},
		upload{"images", "x.png", pngBytes},
	)
	prev := stringsOf(created["image_urls"])
	a, b, x := prev[0], prev[1], prev[2]

	// клиент оставляет B, A (в своём порядке) и добавляет C
	keep := fmt.Sprintf(`[%q, %q, "https://elsewhere.example/evil.png"]`, b, a)
	body, ct := multipartBody(t, url.Values{"existing_images": {keep}, "year": {"2025"}},
		upload{"images", "c.png", pngBytes})
	w := te.do(t, http.MethodPut, fmt.Sprintf("/api/green_walls/%v", created["id"]), body, ct, te.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[map[string]any](t, w)

	got := stringsOf(updated["image_urls"])
	require.Len(t, got, 3)
	assert.Equal(t, []string{b, a}, got[:2])
	assert.True(t, strings.HasSuffix(got[2], "_c.png"))

	assert.Equal(t, "2025", updated["year"])
	assert.Equal(t, created["serial"], updated["serial"], "omitted fields keep their value")

	assert.False(t, te.exists(t, x), "dropped image is deleted")
	assert.True(t, te.exists(t, a))
	assert.True(t, te.exists(t, got[2]))
}

func TestUpdateRepeatedKeepValues(t *testing.T) {
	te := newTestEnv(t)
	created := te.createWall(t, wallFields(),
		upload{"images", "a.png", pngBytes},
		upload{"images", "b.png", pngBytes},
	)
	prev := stringsOf(created["image_urls"])

	body, ct := multipartBody(t, url.Values{"existing_images": {prev[0], prev[1]}},
		upload{"images", "c.png", pngBytes})
	w := te.do(t, http.MethodPut, fmt.Sprintf("/api/green_walls/%v", created["id"]), body, ct, te.token)
	require.Equal(t, http.StatusOK, w.Code)
	got := stringsOf(decode[map[string]any](t, w)["image_urls"])
	require.Len(t, got, 3)
	assert.Equal(t, prev, got[:2])
}

func TestUpdateWithoutKeepListKeepsAll(t *testing.T) {
	te := newTestEnv(t)
	created := te.createWall(t, wallFields(), upload{"images", "a.png", pngBytes})
	prev := stringsOf(created["image_urls"])

	body, ct := multipartBody(t, url.Values{}, upload{"images", "b.png", pngBytes})
	w := te.do(t, http.MethodPut, fmt.Sprintf("/api/green_walls/%v", created["id"]), body, ct, te.token)
	require.Equal(t, http.StatusOK, w.Code)
	got := stringsOf(decode[map[string]any](t, w)["image_urls"])
	require.Len(t, got, 2)
	assert.Equal(t, prev[0], got[0])
}

func TestUpdateJSONNullKeepListKeepsAttachments(t *testing.T) {
	te := newTestEnv(t)
	created := te.createWall(t, wallFields(),
		upload{"images", "a.png", pngBytes},
		upload{"images", "b.png", pngBytes},
	)
	prev := stringsOf(created["image_urls"])

	w := te.doJSON(t, http.MethodPut, fmt.Sprintf("/api/green_walls/%v", created["id"]),
		map[string]any{"existing_images": nil, "year": "2026"}, te.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[map[string]any](t, w)
	assert.Equal(t, prev, stringsOf(updated["image_urls"]))
	assert.Equal(t, "2026", updated["year"])
	for _, u := range prev {
		assert.True(t, te.exists(t, u))
	}
}

func TestUpdateEmptyKeepListClears(t *testing.T) {
	te := newTestEnv(t)
	created := te.createWall(t, wallFields(), upload{"images", "a.png", pngBytes})
	prev := stringsOf(created["image_urls"])

	body, ct := multipartBody(t, url.Values{"existing_images": {"[]"}})
	w := te.do(t, http.MethodPut, fmt.Sprintf("/api/green_walls/%v", created["id"]), body, ct, te.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[map[string]any](t, w)["image_urls"])
	assert.False(t, te.exists(t, prev[0]))
}

func TestUpdateNotFoundCleansUploads(t *testing.T) {
	te := newTestEnv(t)
	body, ct := multipartBody(t, url.Values{}, upload{"images", "a.png", pngBytes})
	w := te.do(t, http.MethodPut, "/api/green_walls/999", body, ct, te.token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "green_walls not found", errorOf(t, w))

	files := 0
	require.NoError(t, walkFiles(te.storage.Cfg.FilesRoot, func() { files++ }))
	assert.Zero(t, files)
}

func TestSingleAttachmentReplaced(t *testing.T) {
	te := newTestEnv(t)
	fields := url.Values{"title": {"成果一"}, "date": {"2024-05-01"}, "content": {"內容"}}
	body, ct := multipartBody(t, fields, upload{"image", "old.png", pngBytes})
	w := te.do(t, http.MethodPost, "/api/result", body, ct, te.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	old := created["image_url"].(string)

	// без файла ссылка остаётся
	body, ct = multipartBody(t, url.Values{"title": {"成果二"}})
	w = te.do(t, http.MethodPut, fmt.Sprintf("/api/results/%v", created["id"]), body, ct, te.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, old, decode[map[string]any](t, w)["image_url"])

	body, ct = multipartBody(t, url.Values{}, upload{"image", "new.png", pngBytes})
	w = te.do(t, http.MethodPut, fmt.Sprintf("/api/results/%v", created["id"]), body, ct, te.token)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[map[string]any](t, w)
	assert.True(t, strings.HasSuffix(updated["image_url"].(string), "_new.png"))
	assert.Equal(t, "成果二", updated["title"])
	assert.False(t, te.exists(t, old))
}

// brokenDeletes отказывает в каждом удалении, остальное делегирует.
type brokenDeletes struct {
	blob.Store
}

func (brokenDeletes) Delete(context.Context, string) error {
	return errors.New("bucket unavailable")
}

func TestDeleteReportsURLsEvenWhenStorageFails(t *testing.T) {
	te := newTestEnv(t)
	created := te.createWall(t, wallFields(),
		upload{"images", "a.png", pngBytes},
		upload{"images", "b.png", pngBytes},
	)
	urls := stringsOf(created["image_urls"])
	require.Len(t, urls, 2)

	te.storage.Blob = brokenDeletes{te.blob}
	w := te.do(t, http.MethodDelete, fmt.Sprintf("/api/green_walls/%v", created["id"]), nil, "", te.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, urls, stringsOf(decode[map[string]any](t, w)["images_deleted"]))
	for _, u := range urls {
		assert.True(t, te.exists(t, u))
	}
}

func TestDeleteWallWithoutImagesReportsEmptyList(t *testing.T) {
	te := newTestEnv(t)
	created := te.createWall(t, wallFields())

	w := te.do(t, http.MethodDelete, fmt.Sprintf("/api/green_walls/%v", created["id"]), nil, "", te.token)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]any](t, w)
	require.Contains(t, resp, "images_deleted")
	assert.Equal(t, []any{}, resp["images_deleted"])
}

func TestDeleteReturnsRowAndRemovesObjects(t *testing.T) {
	te := newTestEnv(t)
	created := te.createWall(t, wallFields(),
		upload{"images", "a.png", pngBytes},
		upload{"images", "b.png", pngBytes},
	)
	urls := stringsOf(created["image_urls"])
	path := fmt.Sprintf("/api/green_walls/%v", created["id"])

	w := te.do(t, http.MethodDelete, path, nil, "", te.token)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]any](t, w)
	assert.Equal(t, created["id"], resp["deleted"].(map[string]any)["id"])
	assert.Equal(t, urls, stringsOf(resp["images_deleted"]))
	for _, u := range urls {
		assert.False(t, te.exists(t, u))
	}

	w = te.do(t, http.MethodGet, path, nil, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = te.do(t, http.MethodDelete, path, nil, "", te.token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteWithoutAttachment(t *testing.T) {
	te := newTestEnv(t)
	w := te.doJSON(t, http.MethodPost, "/api/announcement",
		map[string]any{"title": "公告", "date": "2024-01-02", "content": "內容"}, te.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)

	w = te.do(t, http.MethodDelete, fmt.Sprintf("/api/announcements/%v", created["id"]), nil, "", te.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, stringsOf(decode[map[string]any](t, w)["images_deleted"]))
}

func TestNonIntegerIDIsNotFound(t *testing.T) {
	te := newTestEnv(t)
	for _, id := range []string{"abc", "0", "-3", "1.5"} {
		w := te.do(t, http.MethodGet, "/api/green_walls/"+id, nil, "", "")
		assert.Equal(t, http.StatusNotFound, w.Code, id)
	}
}

func TestListFiltersAndOrder(t *testing.T) {
	te := newTestEnv(t)
	first := te.createWall(t, wallFields())
	other := wallFields()
	other.Set("district", "大安區")
	second := te.createWall(t, other)

	w := te.do(t, http.MethodGet, "/api/green_walls", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[[]map[string]any](t, w)
	require.Len(t, all, 2)
	assert.Equal(t, second["id"], all[0]["id"], "newest first")
	assert.Equal(t, first["id"], all[1]["id"])
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))

	w = te.do(t, http.MethodGet, "/api/green_walls?district="+url.QueryEscape("大安區")+"&unknown=1", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	filtered := decode[[]map[string]any](t, w)
	require.Len(t, filtered, 1)
	assert.Equal(t, second["id"], filtered[0]["id"])

	w = te.do(t, http.MethodGet, "/api/tree_intros", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestJSONCreateCoercesNumbers(t *testing.T) {
	te := newTestEnv(t)
	w := te.doJSON(t, http.MethodPost, "/api/green_walls", map[string]any{
		"serial": "GW-9", "year": 2024, "district": "中山區", "type": "牆面",
		"project_name": "p", "maintain_unit": "u", "area": 3, "length": "4.25",
	}, te.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	row := decode[map[string]any](t, w)
	assert.Equal(t, "2024", row["year"])
	assert.Equal(t, 3.0, row["area"])
	assert.Equal(t, 4.25, row["length"])
}
