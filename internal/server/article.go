package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	articledomain "github.com/smallbiznis/bsma/internal/article/domain"
)

func (s *Server) CreateArticle(c *gin.Context) {
	var req articledomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CreatedBy = c.GetString(contextActorKey)

	resp, err := s.articleSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// NextArticle creates the following article of ?product=ID. It is a GET so
// label printers that can only issue simple requests can drive it.
func (s *Server) NextArticle(c *gin.Context) {
	productID := strings.TrimSpace(c.Query("product"))
	if productID == "" {
		AbortWithError(c, newValidationError("product", "required", "product is required"))
		return
	}

	resp, err := s.articleSvc.Next(c.Request.Context(), productID, c.GetString(contextActorKey))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListArticles(c *gin.Context) {
	var query struct {
		pageQuery
		Product string `form:"product"`
		Success string `form:"success"`
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
	success, err := parseOptionalBool(query.Success)
	if err != nil {
		AbortWithError(c, newValidationError("success", "invalid_success", "invalid success"))
		return
	}

	resp, err := s.articleSvc.List(c.Request.Context(), articledomain.ListRequest{
		Pagination: page,
		ProductID:  strings.TrimSpace(query.Product),
		Success:    success,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Articles, "page_info": resp.PageInfo})
}

func (s *Server) GetArticleByID(c *gin.Context) {
	resp, err := s.articleSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetArticleByBarcode(c *gin.Context) {
	resp, err := s.articleSvc.GetByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateArticleByBarcode(c *gin.Context) {
	var req articledomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.articleSvc.UpdateByBarcode(c.Request.Context(), c.Param("barcode"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetArticleIMEI(c *gin.Context) {
	imei, err := s.articleSvc.IMEI(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"imei": imei}})
}

func (s *Server) DeleteArticle(c *gin.Context) {
	if err := s.articleSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func isArticleValidationError(err error) bool {
	switch {
	case errors.Is(err, articledomain.ErrInvalidID),
		errors.Is(err, articledomain.ErrProductNotFound),
		errors.Is(err, articledomain.ErrInvalidCreator),
		errors.Is(err, articledomain.ErrInvalidSerial),
		errors.Is(err, articledomain.ErrInvalidBarcode),
		errors.Is(err, articledomain.ErrNoIdentity):
		return true
	default:
		return false
	}
}
