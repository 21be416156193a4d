package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Article is one manufactured unit. Serial and ProductID are fixed at
// creation; only Success and Extra change afterwards.
type Article struct {
	ID        int64             `json:"id" gorm:"primaryKey"`
	ProductID int64             `json:"product_id" gorm:"column:product_id"`
	Serial    int64             `json:"serial" gorm:"column:serial"`
	Barcode   *string           `json:"barcode,omitempty" gorm:"column:barcode"`
	Success   *bool             `json:"success,omitempty" gorm:"column:success"`
	CreatedBy string            `json:"created_by" gorm:"column:created_by"`
	Extra     datatypes.JSONMap `json:"extra,omitempty" gorm:"column:extra"`
	CreatedAt time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (Article) TableName() string { return "articles" }

// ActivationKey is the extra key the registry payload is expected under.
const ActivationKey = "devices"

// NeedsActivation reports whether the registry status is still missing: no
// payload at all, or a payload without a devices entry.
func (a Article) NeedsActivation() bool {
	if a.Extra == nil {
		return true
	}
	_, ok := a.Extra[ActivationKey]
	return !ok
}

type ListFilter struct {
	ProductID int64
	Success   *bool
	BeforeID  int64
	Limit     int
}
