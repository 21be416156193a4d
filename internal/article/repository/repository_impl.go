package repository

import (
	"context"

	"github.com/smallbiznis/bsma/internal/article/domain"
	"github.com/smallbiznis/bsma/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const articleColumns = `id, product_id, serial, barcode, success, created_by, extra, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, article *domain.Article) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO articles (`+articleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ID,
		article.ProductID,
		article.Serial,
		article.Barcode,
		article.Success,
		article.CreatedBy,
		article.Extra,
		article.CreatedAt,
		article.UpdatedAt,
	).Error
}

func (r *repo) NextSerial(ctx context.Context, conn *gorm.DB, productID int64) (int64, error) {
	var next int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(serial), 0) + 1 FROM articles WHERE product_id = ?`,
		productID,
	).Scan(&next).Error
	return next, err
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id int64) (*domain.Article, error) {
	return r.findOne(ctx, conn, `id = ?`, id, "")
}

func (r *repo) FindByBarcode(ctx context.Context, conn *gorm.DB, barcode string) (*domain.Article, error) {
	return r.findOne(ctx, conn, `barcode = ?`, barcode, "")
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id int64) (*domain.Article, error) {
	return r.findOne(ctx, conn, `id = ?`, id, db.ForUpdateSuffix(conn))
}

func (r *repo) FindByBarcodeForUpdate(ctx context.Context, conn *gorm.DB, barcode string) (*domain.Article, error) {
	return r.findOne(ctx, conn, `barcode = ?`, barcode, db.ForUpdateSuffix(conn))
}

func (r *repo) findOne(ctx context.Context, conn *gorm.DB, where string, arg any, suffix string) (*domain.Article, error) {
	var a domain.Article
	err := conn.WithContext(ctx).Raw(
		`SELECT `+articleColumns+` FROM articles WHERE `+where+suffix,
		arg,
	).Scan(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, nil
	}
	return &a, nil
}

func (r *repo) BarcodeExists(ctx context.Context, conn *gorm.DB, barcode string) (bool, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(`SELECT COUNT(*) FROM articles WHERE barcode = ?`, barcode).Scan(&count).Error
	return count > 0, err
}

func (r *repo) SerialExists(ctx context.Context, conn *gorm.DB, productID, serial int64) (bool, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM articles WHERE product_id = ? AND serial = ?`,
		productID,
		serial,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Article, error) {
	var items []*domain.Article
	stmt := conn.WithContext(ctx).Model(&domain.Article{})

	if filter.ProductID != 0 {
		stmt = stmt.Where("product_id = ?", filter.ProductID)
	}
	if filter.Success != nil {
		stmt = stmt.Where("success = ?", *filter.Success)
	}
	if filter.BeforeID != 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}

	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateState(ctx context.Context, conn *gorm.DB, article *domain.Article) error {
	if article == nil {
		return gorm.ErrInvalidData
	}
	return conn.WithContext(ctx).Exec(
		`UPDATE articles SET success = ?, extra = ?, updated_at = ? WHERE id = ?`,
		article.Success,
		article.Extra,
		article.UpdatedAt,
		article.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id int64) (int64, error) {
	res := conn.WithContext(ctx).Exec(`DELETE FROM articles WHERE id = ?`, id)
	return res.RowsAffected, res.Error
}

func (r *repo) ListPendingActivation(ctx context.Context, conn *gorm.DB, productIDs []int64, afterID int64, limit int) ([]*domain.Article, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	missing := conn.Where("extra IS NULL").
		Or(clause.Not(datatypes.JSONQuery("extra").HasKey(domain.ActivationKey)))

	var items []*domain.Article
	err := conn.WithContext(ctx).
		Model(&domain.Article{}).
		Where("product_id IN ?", productIDs).
		Where("id > ?", afterID).
		Where(missing).
		Order("id asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
