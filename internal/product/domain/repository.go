package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	// FindByIDForUpdate locks the product row until the surrounding
	// transaction ends. On SQLite the single writer already serializes.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Product, error)
	Update(ctx context.Context, db *gorm.DB, product *Product) error
	Delete(ctx context.Context, db *gorm.DB, id int64) (int64, error)
	CountArticles(ctx context.Context, db *gorm.DB, id int64) (int64, error)
	CountMacs(ctx context.Context, db *gorm.DB, id int64) (int64, error)
}
