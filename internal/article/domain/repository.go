package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, article *Article) error
	// NextSerial returns MAX(serial)+1 for the product, or 1 when it has no
	// articles yet.
	NextSerial(ctx context.Context, db *gorm.DB, productID int64) (int64, error)
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Article, error)
	FindByBarcode(ctx context.Context, db *gorm.DB, barcode string) (*Article, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id int64) (*Article, error)
	FindByBarcodeForUpdate(ctx context.Context, db *gorm.DB, barcode string) (*Article, error)
	BarcodeExists(ctx context.Context, db *gorm.DB, barcode string) (bool, error)
	SerialExists(ctx context.Context, db *gorm.DB, productID, serial int64) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Article, error)
	UpdateState(ctx context.Context, db *gorm.DB, article *Article) error
	Delete(ctx context.Context, db *gorm.DB, id int64) (int64, error)
	// ListPendingActivation pages through articles of the given products whose
	// extra payload is NULL or carries no devices key, in ID order after afterID.
	ListPendingActivation(ctx context.Context, db *gorm.DB, productIDs []int64, afterID int64, limit int) ([]*Article, error)
}
