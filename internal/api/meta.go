package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"greening/internal/apperrors"
	"greening/internal/dsl"
)

// ===== META HANDLERS =====

type metaEntityListItem struct {
	Entity     string   `json:"entity"`
	Label      string   `json:"label"`
	Aliases    []string `json:"aliases,omitempty"`
	Attachment string   `json:"attachment"`
	Visibility bool     `json:"visibility"`
	Summary    bool     `json:"summary"`
}

func MetaListHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := make([]metaEntityListItem, 0, len(storage.Schemas))
		for _, name := range storage.entityNames() {
			e := storage.Schemas[name]
			_, card := e.Attachment()
			out = append(out, metaEntityListItem{
				Entity:     name,
				Label:      e.Label(),
				Aliases:    e.Aliases(),
				Attachment: card.String(),
				Visibility: e.HasVisibility(),
				Summary:    e.HasSummary(),
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

type metaField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	ElemType string `json:"elemType,omitempty"`
	Required bool   `json:"required"`
	Filter   bool   `json:"filter,omitempty"`
	Form     string `json:"form,omitempty"` // имя multipart-поля для файлов
	Keep     string `json:"keep,omitempty"`
}

type metaEntity struct {
	Entity     string      `json:"entity"`
	Label      string      `json:"label"`
	Table      string      `json:"table"`
	Folder     string      `json:"folder,omitempty"`
	Attachment string      `json:"attachment"`
	Fields     []metaField `json:"fields"`
}

func MetaEntityHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, ok := storage.NormalizeEntityName(c.Param("entity"))
		if !ok {
			respondError(c, apperrors.NotFound("entity", nil))
			return
		}
		e := storage.Schemas[name]
		_, card := e.Attachment()

		fields := make([]metaField, 0, len(e.Fields))
		for _, f := range e.Fields {
			mf := metaField{
				Name:     f.Name,
				Type:     strings.ToLower(f.Type),
				ElemType: f.ElemType,
				Required: f.Required(),
				Filter:   f.Filter(),
			}
			switch f.Kind() {
			case dsl.AttachOne:
				mf.Form = f.FormName()
			case dsl.AttachMany:
				mf.Form = f.FormName()
				mf.Keep = f.KeepName()
			}
			fields = append(fields, mf)
		}

		out := metaEntity{
			Entity:     name,
			Label:      e.Label(),
			Table:      e.Table(),
			Attachment: card.String(),
			Fields:     fields,
		}
		if card != dsl.AttachNone {
			out.Folder = e.Folder()
		}
		c.JSON(http.StatusOK, out)
	}
}
