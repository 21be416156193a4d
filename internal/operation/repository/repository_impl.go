package repository

import (
	"context"

	"github.com/smallbiznis/bsma/internal/operation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, op *domain.Operation) error {
	if op == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO operations (id, article_id, type, responsible, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		op.ID,
		op.ArticleID,
		op.Type,
		op.Responsible,
		op.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Operation, error) {
	var op domain.Operation
	err := db.WithContext(ctx).Raw(
		`SELECT id, article_id, type, responsible, created_at FROM operations WHERE id = ?`,
		id,
	).Scan(&op).Error
	if err != nil {
		return nil, err
	}
	if op.ID == 0 {
		return nil, nil
	}
	return &op, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Operation, error) {
	var ops []*domain.Operation
	stmt := db.WithContext(ctx).Model(&domain.Operation{})

	if filter.ArticleID != 0 {
		stmt = stmt.Where("article_id = ?", filter.ArticleID)
	}
	if filter.Type != 0 {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.BeforeID != 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}

	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&ops).Error; err != nil {
		return nil, err
	}
	return ops, nil
}

func (r *repo) ArticleExists(ctx context.Context, db *gorm.DB, articleID int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM articles WHERE id = ?`, articleID).Scan(&count).Error
	return count > 0, err
}
