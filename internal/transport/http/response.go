package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"contest-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// envelope is the body of every REST response.
type envelope struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func ok(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Code: http.StatusOK, Message: message, Data: data})
}

func created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, envelope{Success: true, Code: http.StatusCreated, Message: message, Data: data})
}

func fail(c *gin.Context, code int, message string, data any) {
	c.AbortWithStatusJSON(code, envelope{Success: false, Code: code, Message: message, Data: data})
}

// statusOf maps the domain error taxonomy onto HTTP codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an envelope. Unclassified errors are logged and hidden.
func respondError(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		loggerFrom(c).WithError(err).Error("request failed")
		fail(c, code, "internal error", nil)
		return
	}
	fail(c, code, err.Error(), nil)
}

// respondBindError reports request decoding and validation failures as 400.
func respondBindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		fail(c, http.StatusBadRequest, "validation failed", fields)
		return
	}
	fail(c, http.StatusBadRequest, "invalid request body", nil)
}

var registerTagNames sync.Once

// useJSONFieldNames makes validation errors report json names instead of Go field names.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
}

func loggerFrom(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(logrus.FieldLogger); ok {
			return l
		}
	}
	return logrus.StandardLogger()
}
