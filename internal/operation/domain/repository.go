package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, op *Operation) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Operation, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Operation, error)
	ArticleExists(ctx context.Context, db *gorm.DB, articleID int64) (bool, error)
}
