package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	cmnlog "triage_server/server/common/log"
	"triage_server/server/common/transport/httpresp"
	"triage_server/server/triage/domain"
)

var validatorsOnce sync.Once

// registerValidators makes binding errors report JSON field names and adds photo_ref.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		if err := v.RegisterValidation("photo_ref", func(fl validator.FieldLevel) bool {
			return domain.ValidPhotoRef(fl.Field().String())
		}); err != nil {
			cmnlog.Errorf("register photo_ref validation: %v", err)
		}
	})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, NewFieldErrorResponse(httpresp.ErrValidationFailed, fieldMessages(verrs)))
			return false
		}
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func fieldMessages(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "email":
		return "must be a valid email address"
	case "e164":
		return "must be an E.164 phone number"
	case "photo_ref":
		return "must be an http(s) URL or a photo object key"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

func writeError(c *gin.Context, err error) {
	var (
		verr *domain.ValidationError
		ref  *domain.ReferenceError
		terr *domain.TransportError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, NewFieldErrorResponse(httpresp.ErrValidationFailed, verr.Fields))
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, NewErrorResponse(err.Error()))
	case errors.As(err, &ref):
		c.JSON(http.StatusUnprocessableEntity, NewFieldErrorResponse(ref.Error(), map[string]string{ref.Field: "does not reference an existing record"}))
	case errors.As(err, &terr):
		c.JSON(http.StatusBadGateway, NewErrorResponse(terr.Error()))
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(httpresp.ErrInvalidCredentials))
	case errors.Is(err, domain.ErrForbiddenRole):
		c.JSON(http.StatusForbidden, NewErrorResponse(httpresp.ErrInsufficientRole))
	default:
		cmnlog.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(httpresp.ErrInternal))
	}
}
