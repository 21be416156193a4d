package repository

import (
	"context"
	"database/sql"

	"github.com/smallbiznis/bsma/internal/mac/domain"
	"github.com/smallbiznis/bsma/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindPooled(ctx context.Context, conn *gorm.DB, productID int64, limit int) ([]domain.Mac, error) {
	offset := db.Quote(conn, "offset")
	var items []domain.Mac
	err := conn.WithContext(ctx).Raw(
		`SELECT id, product_id, `+offset+`, article_id FROM macs
		 WHERE product_id = ? AND article_id IS NULL
		 ORDER BY `+offset+` ASC
		 LIMIT ?`,
		productID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MaxOffset(ctx context.Context, conn *gorm.DB, productID int64) (int64, bool, error) {
	var highest sql.NullInt64
	err := conn.WithContext(ctx).Raw(
		`SELECT MAX(`+db.Quote(conn, "offset")+`) FROM macs WHERE product_id = ?`,
		productID,
	).Scan(&highest).Error
	if err != nil {
		return 0, false, err
	}
	return highest.Int64, highest.Valid, nil
}

func (r *repo) Attach(ctx context.Context, conn *gorm.DB, ids []int64, articleID int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := conn.WithContext(ctx).Exec(
		`UPDATE macs SET article_id = ? WHERE id IN ? AND article_id IS NULL`,
		articleID,
		ids,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertBatch(ctx context.Context, conn *gorm.DB, macs []domain.Mac) error {
	if len(macs) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&macs).Error
}

func (r *repo) ListByArticle(ctx context.Context, conn *gorm.DB, articleID int64) ([]domain.Mac, error) {
	offset := db.Quote(conn, "offset")
	var items []domain.Mac
	err := conn.WithContext(ctx).Raw(
		`SELECT id, product_id, `+offset+`, article_id FROM macs
		 WHERE article_id = ?
		 ORDER BY `+offset+` ASC`,
		articleID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Release(ctx context.Context, conn *gorm.DB, articleID int64) (int64, error) {
	res := conn.WithContext(ctx).Exec(`UPDATE macs SET article_id = NULL WHERE article_id = ?`, articleID)
	return res.RowsAffected, res.Error
}

func (r *repo) Count(ctx context.Context, conn *gorm.DB, productID int64) (int64, int64, error) {
	var row struct {
		Total  int64
		Pooled int64
	}
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS total,
		        COUNT(CASE WHEN article_id IS NULL THEN 1 END) AS pooled
		 FROM macs WHERE product_id = ?`,
		productID,
	).Scan(&row).Error
	return row.Total, row.Pooled, err
}
