package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	articledomain "github.com/smallbiznis/bsma/internal/article/domain"
	"github.com/smallbiznis/bsma/internal/identity"
	macdomain "github.com/smallbiznis/bsma/internal/mac/domain"
	operationdomain "github.com/smallbiznis/bsma/internal/operation/domain"
	productdomain "github.com/smallbiznis/bsma/internal/product/domain"
	"github.com/smallbiznis/bsma/pkg/db"
	"github.com/smallbiznis/bsma/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if payload.Retryable {
			c.Header("Retry-After", "1")
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var capErr *macdomain.CapacityError
	switch {
	case errors.As(err, &capErr):
		return http.StatusConflict, errorPayload{
			Type:    "capacity_exhausted",
			Message: capErr.Error(),
		}
	case errors.Is(err, macdomain.ErrCapacityExhausted),
		errors.Is(err, identity.ErrSerialRange):
		return http.StatusConflict, errorPayload{
			Type:    "capacity_exhausted",
			Message: "no identifiers left for this product",
		}
	case errors.Is(err, articledomain.ErrAllocationConflict):
		return http.StatusServiceUnavailable, errorPayload{
			Type:      "allocation_conflict",
			Message:   "concurrent allocation did not settle, retry the request",
			Retryable: true,
		}
	case errors.Is(err, articledomain.ErrDuplicateBarcode),
		errors.Is(err, articledomain.ErrDuplicateSerial),
		errors.Is(err, productdomain.ErrDuplicateProduct),
		errors.Is(err, productdomain.ErrConfigLocked):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, productdomain.ErrProductInUse),
		db.IsForeignKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "integrity_error",
			Message: "record is still referenced",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case isIdentityValidationError(err),
		isProductValidationError(err),
		isArticleValidationError(err),
		isMacValidationError(err),
		isOperationValidationError(err):
		return true
	default:
		return false
	}
}

func isIdentityValidationError(err error) bool {
	switch {
	case errors.Is(err, identity.ErrInvalidMask),
		errors.Is(err, identity.ErrInvalidBodyID),
		errors.Is(err, identity.ErrInvalidFAC),
		errors.Is(err, identity.ErrInvalidMark),
		errors.Is(err, identity.ErrInvalidOUI),
		errors.Is(err, identity.ErrInvalidMacStart),
		errors.Is(err, identity.ErrInvalidMacEnd),
		errors.Is(err, identity.ErrInvalidMacRange),
		errors.Is(err, identity.ErrInvalidQuantity):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, articledomain.ErrNotFound),
		errors.Is(err, operationdomain.ErrNotFound),
		errors.Is(err, operationdomain.ErrArticleNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "product_not_found":
		return "product_id"
	case "serial_out_of_imei_range":
		return "serial"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "product_not_found":
		return "product does not exist"
	case "mac_disabled":
		return "product has no mac range"
	default:
		return "invalid value"
	}
}
