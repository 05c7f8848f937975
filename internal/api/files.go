package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"greening/internal/apperrors"
	"greening/internal/dsl"
	"greening/internal/logger"
)

// readForm: multipart, urlencoded или JSON; на выходе всегда поля + файлы.
func readForm(c *gin.Context, maxBytes int64) (url.Values, map[string][]*multipart.FileHeader, error) {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}
	switch c.ContentType() {
	case gin.MIMEJSON:
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, nil, apperrors.BadRequest("invalid request body", err)
		}
		form, err := jsonForm(body)
		return form, nil, err
	case gin.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
			return nil, nil, apperrors.BadRequest("invalid multipart form", err)
		}
		return c.Request.MultipartForm.Value, c.Request.MultipartForm.File, nil
	default:
		if err := c.Request.ParseForm(); err != nil {
			return nil, nil, apperrors.BadRequest("invalid form", err)
		}
		return c.Request.PostForm, nil, nil
	}
}

// attachmentFiles: файлы из поля формы вложения, пустые части (файл не выбран) пропускаются.
func attachmentFiles(f dsl.Field, files map[string][]*multipart.FileHeader) []*multipart.FileHeader {
	var out []*multipart.FileHeader
	for _, h := range files[f.FormName()] {
		if h.Size == 0 && h.Filename == "" {
			continue
		}
		out = append(out, h)
	}
	return out
}

// uploadFiles кладёт файлы в <folder>/<ULID>_<имя> и возвращает URL в порядке загрузки.
// При ошибке уже загруженное удаляется.
func (s *Storage) uploadFiles(ctx context.Context, e *dsl.Entity, headers []*multipart.FileHeader) ([]string, error) {
	urls := make([]string, 0, len(headers))
	for _, h := range headers {
		u, err := s.uploadOne(ctx, e.Folder(), h)
		if err != nil {
			s.deleteObjects(ctx, urls)
			return nil, apperrors.Internal(fmt.Errorf("upload %s: %w", h.Filename, err))
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (s *Storage) uploadOne(ctx context.Context, folder string, h *multipart.FileHeader) (string, error) {
	f, err := h.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return s.Blob.Put(ctx, s.Keys.New(folder, h.Filename), f, h.Size, mt.String())
}

// deleteObjects удаляет объекты по URL, ошибки только логирует.
func (s *Storage) deleteObjects(ctx context.Context, urls []string) {
	ctx = context.WithoutCancel(ctx)
	for _, u := range urls {
		if err := s.Blob.Delete(ctx, u); err != nil {
			logger.Warn("delete object %s: %v", u, err)
		}
	}
}
