package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/bsma/internal/product/domain"
	"github.com/smallbiznis/bsma/pkg/db"
	"gorm.io/gorm"
)

const productColumns = `id, name, mark, serial_mask, body_id, fac, oui, mac_start, mac_end, mac_quantity, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, conn *gorm.DB, product *domain.Product) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO products (`+productColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Name,
		product.Mark,
		product.SerialMask,
		product.BodyID,
		product.FAC,
		product.OUI,
		product.MacStart,
		product.MacEnd,
		product.MacQuantity,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id int64) (*domain.Product, error) {
	return r.find(ctx, conn, id, "")
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id int64) (*domain.Product, error) {
	return r.find(ctx, conn, id, db.ForUpdateSuffix(conn))
}

func (r *repo) find(ctx context.Context, conn *gorm.DB, id int64, suffix string) (*domain.Product, error) {
	var p domain.Product
	err := conn.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE id = ?`+suffix,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListRequest) ([]domain.Product, error) {
	var items []domain.Product
	stmt := conn.WithContext(ctx).Model(&domain.Product{})
	if name := strings.TrimSpace(filter.Name); name != "" {
		stmt = stmt.Where("name = ?", name)
	}
	if err := stmt.Order("name ASC, mark ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return conn.WithContext(ctx).Exec(
		`UPDATE products
		 SET name = ?, mark = ?, serial_mask = ?, body_id = ?, fac = ?,
		     oui = ?, mac_start = ?, mac_end = ?, mac_quantity = ?, updated_at = ?
		 WHERE id = ?`,
		product.Name,
		product.Mark,
		product.SerialMask,
		product.BodyID,
		product.FAC,
		product.OUI,
		product.MacStart,
		product.MacEnd,
		product.MacQuantity,
		product.UpdatedAt,
		product.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id int64) (int64, error) {
	res := conn.WithContext(ctx).Exec(`DELETE FROM products WHERE id = ?`, id)
	return res.RowsAffected, res.Error
}

func (r *repo) CountArticles(ctx context.Context, conn *gorm.DB, id int64) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(`SELECT COUNT(*) FROM articles WHERE product_id = ?`, id).Scan(&count).Error
	return count, err
}

func (r *repo) CountMacs(ctx context.Context, conn *gorm.DB, id int64) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(`SELECT COUNT(*) FROM macs WHERE product_id = ?`, id).Scan(&count).Error
	return count, err
}
