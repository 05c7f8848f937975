package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"greening/internal/apperrors"
	"greening/internal/dsl"
	"greening/internal/pg"
)

// GET /api/<entity>
func ListHandler(storage *Storage, e *dsl.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, total, err := storage.Records.List(c.Request.Context(), e, parseListParams(c.Request.URL.Query()))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("X-Total-Count", strconv.Itoa(total))
		c.JSON(http.StatusOK, rows)
	}
}

// GET /api/<entity>/:id
func GetOneHandler(storage *Storage, e *dsl.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c.Param("id"))
		if !ok {
			respondError(c, apperrors.NotFound(e.Name, nil))
			return
		}
		row, err := storage.Records.Get(c.Request.Context(), e, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

// POST /api/<entity>
func CreateHandler(storage *Storage, e *dsl.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		form, files, err := readForm(c, storage.Cfg.MaxUploadBytes())
		if err != nil {
			respondError(c, err)
			return
		}
		vals, err := formValues(e, form, true)
		if err != nil {
			respondError(c, err)
			return
		}

		// сначала файлы, потом одна вставка
		var uploaded []string
		att, card := e.Attachment()
		if card != dsl.AttachNone {
			headers := attachmentFiles(att, files)
			if card == dsl.AttachOne && len(headers) > 1 {
				headers = headers[:1]
			}
			uploaded, err = storage.uploadFiles(ctx, e, headers)
			if err != nil {
				respondError(c, err)
				return
			}
			if card == dsl.AttachMany {
				vals[att.Name] = uploaded
			} else if len(uploaded) > 0 {
				vals[att.Name] = uploaded[0]
			}
		}

		row, err := storage.Records.Insert(ctx, e, vals)
		if err != nil {
			storage.deleteObjects(ctx, uploaded)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, row)
	}
}

// PUT /api/<entity>/:id
//
// Список вложений = оставленные клиентом (keep) + новые. Поля, которых нет в форме,
// не меняются. Убранные и заменённые объекты удаляются после коммита.
func UpdateHandler(storage *Storage, e *dsl.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := parseID(c.Param("id"))
		if !ok {
			respondError(c, apperrors.NotFound(e.Name, nil))
			return
		}
		form, files, err := readForm(c, storage.Cfg.MaxUploadBytes())
		if err != nil {
			respondError(c, err)
			return
		}
		vals, err := formValues(e, form, false)
		if err != nil {
			respondError(c, err)
			return
		}

		att, card := e.Attachment()
		var keep []string
		keepPresent := false
		if card == dsl.AttachMany {
			if keep, keepPresent, err = parseKeepList(form, att.KeepName()); err != nil {
				respondError(c, err)
				return
			}
		}

		var uploaded []string
		if card != dsl.AttachNone {
			headers := attachmentFiles(att, files)
			if card == dsl.AttachOne && len(headers) > 1 {
				headers = headers[:1]
			}
			if uploaded, err = storage.uploadFiles(ctx, e, headers); err != nil {
				respondError(c, err)
				return
			}
		}

		var dropped []string
		row, _, err := storage.Records.Update(ctx, e, id, func(prev pg.Row) (pg.Values, error) {
			switch card {
			case dsl.AttachMany:
				final, drop := mergeAttachments(urlsOf(prev[att.Name]), keep, keepPresent, uploaded)
				vals[att.Name] = final
				dropped = drop
			case dsl.AttachOne:
				if len(uploaded) > 0 {
					vals[att.Name] = uploaded[0]
					dropped = urlsOf(prev[att.Name])
				}
			}
			return vals, nil
		})
		if err != nil {
			storage.deleteObjects(ctx, uploaded)
			respondError(c, err)
			return
		}

		storage.deleteObjects(ctx, dropped)
		c.JSON(http.StatusOK, row)
	}
}

// DELETE /api/<entity>/:id
func DeleteHandler(storage *Storage, e *dsl.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c.Param("id"))
		if !ok {
			respondError(c, apperrors.NotFound(e.Name, nil))
			return
		}
		row, err := storage.Records.Delete(c.Request.Context(), e, id)
		if err != nil {
			respondError(c, err)
			return
		}

		// в ответе все ссылки строки, даже если хранилище не смогло удалить объект
		targeted := []string{}
		if att, card := e.Attachment(); card != dsl.AttachNone {
			if urls := urlsOf(row[att.Name]); len(urls) > 0 {
				targeted = urls
			}
			storage.deleteObjects(c.Request.Context(), targeted)
		}
		c.JSON(http.StatusOK, gin.H{
			"deleted":        row,
			"images_deleted": targeted,
		})
	}
}
