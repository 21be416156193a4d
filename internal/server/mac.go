package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	macdomain "github.com/smallbiznis/bsma/internal/mac/domain"
)

func (s *Server) GetMacUsage(c *gin.Context) {
	resp, err := s.macSvc.Usage(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ReserveMacs pre-creates pooled MAC units for a product.
func (s *Server) ReserveMacs(c *gin.Context) {
	var req macdomain.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ProductID = strings.TrimSpace(c.Param("id"))

	resp, err := s.macSvc.Reserve(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func isMacValidationError(err error) bool {
	switch {
	case errors.Is(err, macdomain.ErrInvalidCount),
		errors.Is(err, macdomain.ErrMacDisabled):
		return true
	default:
		return false
	}
}
