package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/bsma/pkg/db/pagination"
)

type Service interface {
	Record(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

type CreateRequest struct {
	ArticleID   string `json:"article_id"`
	Type        int    `json:"type"`
	Responsible string `json:"responsible"`
}

type ListRequest struct {
	pagination.Pagination
	ArticleID string
	Type      int
}

type ListResponse struct {
	pagination.PageInfo
	Operations []Response `json:"operations"`
}

type Response struct {
	ID          string    `json:"id"`
	ArticleID   string    `json:"article_id"`
	Type        int       `json:"type"`
	TypeName    string    `json:"type_name"`
	Responsible string    `json:"responsible"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidArticle     = errors.New("invalid_article")
	ErrInvalidType        = errors.New("invalid_operation_type")
	ErrInvalidResponsible = errors.New("invalid_responsible")
	ErrArticleNotFound    = errors.New("article_not_found")
	ErrNotFound           = errors.New("not_found")
)
