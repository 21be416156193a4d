package domain

import (
	"errors"
	"fmt"

	"github.com/smallbiznis/bsma/internal/identity"
)

// Mac is one unit of a product's MAC range. The address string is derived
// from the product prefix and Offset; a nil ArticleID marks a pooled unit.
type Mac struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	ProductID int64  `json:"product_id" gorm:"column:product_id"`
	Offset    int64  `json:"offset" gorm:"column:offset"`
	ArticleID *int64 `json:"article_id,omitempty" gorm:"column:article_id"`
}

func (Mac) TableName() string { return "macs" }

func (m Mac) Address(r identity.MacRange) (string, error) {
	return r.Address(m.Offset)
}

// Addresses renders macs in order.
func Addresses(r identity.MacRange, macs []Mac) ([]string, error) {
	out := make([]string, 0, len(macs))
	for _, m := range macs {
		addr, err := m.Address(r)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// Usage summarizes a product's MAC range.
type Usage struct {
	Total         int64  `json:"total"`
	Pooled        int64  `json:"pooled"`
	HighestOffset int64  `json:"highest_offset"`
	LastAddress   string `json:"last_address,omitempty"`
	Exhausted     bool   `json:"exhausted"`
}

var (
	ErrCapacityExhausted = errors.New("capacity_exhausted")
	ErrMacDisabled       = errors.New("mac_disabled")
	ErrInvalidCount      = errors.New("invalid_count")
	// ErrPoolChanged reports that pooled rows picked for an article were
	// taken before they could be attached.
	ErrPoolChanged = errors.New("mac_pool_changed")
)

// CapacityError names the product whose MAC range ran out.
type CapacityError struct {
	ProductID   int64
	ProductName string
	LastAddress string
}

func (e *CapacityError) Error() string {
	if e.LastAddress != "" {
		return fmt.Sprintf("mac range of product %q (%d) exhausted at %s", e.ProductName, e.ProductID, e.LastAddress)
	}
	return fmt.Sprintf("mac range of product %q (%d) exhausted", e.ProductName, e.ProductID)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExhausted
}
