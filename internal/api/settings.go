package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"greening/internal/apperrors"
)

type settingReq struct {
	Visible *bool `json:"visible" form:"visible" binding:"required"`
}

type siteSectionReq struct {
	IsVisible *bool `json:"is_visible" form:"is_visible" binding:"required"`
}

// visibilitySection: разделы settings это сущности с опцией visibility.
func (s *Storage) visibilitySection(raw string) (string, bool) {
	name, ok := s.NormalizeEntityName(raw)
	if !ok || !s.Schemas[name].HasVisibility() {
		return "", false
	}
	return name, true
}

// GET /api/settings
func SettingsListHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := storage.Visibility.ListSettings(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// GET /api/settings/:section
func SettingGetHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		section, ok := storage.visibilitySection(c.Param("section"))
		if !ok {
			respondError(c, apperrors.NotFound("section", nil))
			return
		}
		st, err := storage.Visibility.GetSetting(c.Request.Context(), section)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// PUT|PATCH /api/settings/:section
func SettingUpdateHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		section, ok := storage.visibilitySection(c.Param("section"))
		if !ok {
			respondError(c, apperrors.NotFound("section", nil))
			return
		}
		var req settingReq
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		st, err := storage.Visibility.SetSetting(c.Request.Context(), section, *req.Visible)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// GET /api/site/sections
func SiteSectionsListHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := storage.Visibility.ListSiteSections(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// GET /api/site/sections/:key
func SiteSectionGetHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		if !storage.Sections.Has(key) {
			respondError(c, apperrors.NotFound("section", nil))
			return
		}
		ss, err := storage.Visibility.GetSiteSection(c.Request.Context(), key)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ss)
	}
}

// PATCH /api/site/sections/:key меняет только флаг этого раздела.
func SiteSectionUpdateHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, ok := storage.Sections.Lookup(c.Param("key"))
		if !ok {
			respondError(c, apperrors.NotFound("section", nil))
			return
		}
		var req siteSectionReq
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		ss, err := storage.Visibility.SetSiteSection(c.Request.Context(), item, *req.IsVisible)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ss)
	}
}
