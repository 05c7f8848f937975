package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"greening/internal/apperrors"
	"greening/internal/logger"
)

// respondError: единственное место, где ошибка превращается в HTTP-ответ {"error": "..."}.
func respondError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"

	var ve validator.ValidationErrors
	var ae *apperrors.AppError
	switch {
	case errors.As(err, &ve) && len(ve) > 0:
		status, msg = http.StatusBadRequest, validationMessage(ve[0])
	case errors.As(err, &ae):
		status, msg = ae.Status, ae.Message
	case err != nil:
		msg = err.Error()
	}

	if status >= http.StatusInternalServerError {
		logger.Error("%s", logger.WithRequest(c.GetString(requestIDKey), "%s %s: %v", c.Request.Method, c.FullPath(), err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	default:
		return fe.Field() + " is invalid"
	}
}

// bindError: ошибки валидатора отдаём как есть, остальное считаем кривым телом запроса.
func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return err
	}
	return apperrors.BadRequest("invalid request body", err)
}

var tagNameOnce sync.Once

// useJSONFieldNames: в сообщениях валидатора имена из json-тегов.
func useJSONFieldNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
}
