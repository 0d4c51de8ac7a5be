package handler

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/model"
)

// getQueryString retrieves a trimmed string query parameter
func getQueryString(c *gin.Context, paramName string) string {
	return strings.TrimSpace(c.Query(paramName))
}

// validateQueryValue checks a query parameter against validator tags, the
// way binding tags check body fields
func validateQueryValue(name, value, tag string) []model.ErrorDetail {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	err := v.Var(value, tag)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []model.ErrorDetail{newErrorDetail(name, err.Error())}
	}
	details := make([]model.ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, newErrorDetail(name, validationMessage(fe)))
	}
	return details
}

// bindOptionalJSON binds a JSON body to obj. An empty body leaves obj untouched.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// validationDetails converts binding errors to ErrorDetail slice
func validationDetails(err error) []model.ErrorDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []model.ErrorDetail{newErrorDetail("body", err.Error())}
	}

	details := make([]model.ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, newErrorDetail(jsonFieldName(fe), validationMessage(fe)))
	}
	return details
}

// jsonFieldName lowers the first letter of the struct field, matching the camelCase wire names
func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return name
	}
	if strings.HasPrefix(name, "OTP") {
		return "otp" + name[3:]
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "datetime":
		return "must use the YYYY-MM-DD format"
	default:
		return fmt.Sprintf("failed the %s check", fe.Tag())
	}
}
