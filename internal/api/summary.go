package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"greening/internal/apperrors"
	"greening/internal/dsl"
)

type summaryReq struct {
	Table    string `json:"table" form:"table" binding:"required"`
	District string `json:"district" form:"district"`
}

// summaryEntity разрешает таблицу только из сущностей с опцией summary.
func (s *Storage) summaryEntity(table string) (*dsl.Entity, bool) {
	name, ok := s.NormalizeEntityName(table)
	if !ok {
		return nil, false
	}
	e := s.Schemas[name]
	return e, e.HasSummary()
}

// GET|POST /api/summary
func SummaryHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req summaryReq
		var err error
		if c.Request.Method == http.MethodGet {
			err = c.ShouldBindQuery(&req)
		} else {
			err = c.ShouldBind(&req)
		}
		if err != nil {
			respondError(c, bindError(err))
			return
		}

		e, ok := storage.summaryEntity(req.Table)
		if !ok {
			respondError(c, apperrors.BadRequest("invalid table", nil))
			return
		}
		sum, err := storage.Records.Summary(c.Request.Context(), e, req.District)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"table":    e.Table(),
			"district": req.District,
			"count":    sum.Count,
			"area":     sum.Area,
			"length":   sum.Length,
		})
	}
}
