package domain

import (
	"context"

	productdomain "github.com/smallbiznis/bsma/internal/product/domain"
	"gorm.io/gorm"
)

// Service hands out MAC units. The tx-scoped methods run inside the caller's
// transaction so an article and its MAC block commit or roll back together.
type Service interface {
	AllocateBlock(ctx context.Context, tx *gorm.DB, product *productdomain.Product, articleID int64) ([]Mac, error)
	CheckCapacity(ctx context.Context, tx *gorm.DB, product *productdomain.Product) error
	Release(ctx context.Context, tx *gorm.DB, articleID int64) (int64, error)
	ListByArticle(ctx context.Context, tx *gorm.DB, articleID int64) ([]Mac, error)

	Reserve(ctx context.Context, req ReserveRequest) (*ReserveResponse, error)
	Usage(ctx context.Context, productID string) (*Usage, error)
}

type ReserveRequest struct {
	ProductID string `json:"-"`
	Count     int    `json:"count"`
}

type ReserveResponse struct {
	ProductID string   `json:"product_id"`
	Offsets   []int64  `json:"offsets"`
	Addresses []string `json:"addresses"`
}
