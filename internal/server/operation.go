package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	operationdomain "github.com/smallbiznis/bsma/internal/operation/domain"
)

// CreateOperation records a production step. The responsible operator
// defaults to the request actor.
func (s *Server) CreateOperation(c *gin.Context) {
	var req operationdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.operationSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListOperations(c *gin.Context) {
	var query struct {
		pageQuery
		Article string `form:"article"`
		Type    string `form:"type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	page, err := query.toPagination()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	opType, err := parseOptionalInt(query.Type)
	if err != nil {
		AbortWithError(c, operationdomain.ErrInvalidType)
		return
	}

	resp, err := s.operationSvc.List(c.Request.Context(), operationdomain.ListRequest{
		Pagination: page,
		ArticleID:  strings.TrimSpace(query.Article),
		Type:       opType,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Operations, "page_info": resp.PageInfo})
}

func (s *Server) GetOperationByID(c *gin.Context) {
	resp, err := s.operationSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isOperationValidationError(err error) bool {
	switch {
	case errors.Is(err, operationdomain.ErrInvalidID),
		errors.Is(err, operationdomain.ErrInvalidArticle),
		errors.Is(err, operationdomain.ErrInvalidType),
		errors.Is(err, operationdomain.ErrInvalidResponsible):
		return true
	default:
		return false
	}
}
