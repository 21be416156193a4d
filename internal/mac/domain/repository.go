package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// FindPooled returns up to limit unassigned rows, lowest offset first.
	FindPooled(ctx context.Context, db *gorm.DB, productID int64, limit int) ([]Mac, error)
	// MaxOffset returns the highest offset issued for the product; found is
	// false when the product has no rows.
	MaxOffset(ctx context.Context, db *gorm.DB, productID int64) (offset int64, found bool, err error)
	Attach(ctx context.Context, db *gorm.DB, ids []int64, articleID int64) (int64, error)
	InsertBatch(ctx context.Context, db *gorm.DB, macs []Mac) error
	ListByArticle(ctx context.Context, db *gorm.DB, articleID int64) ([]Mac, error)
	Release(ctx context.Context, db *gorm.DB, articleID int64) (int64, error)
	Count(ctx context.Context, db *gorm.DB, productID int64) (total int64, pooled int64, err error)
}
