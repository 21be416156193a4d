package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/bsma/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	// Next creates the following article of a product with a computed serial.
	Next(ctx context.Context, productID, createdBy string) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	GetByBarcode(ctx context.Context, barcode string) (*Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	UpdateByBarcode(ctx context.Context, barcode string, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	IMEI(ctx context.Context, id string) (string, error)

	// ListPendingActivation and MergeExtra serve the activation poller.
	ListPendingActivation(ctx context.Context, productIDs []int64, afterID int64, limit int) ([]ActivationCandidate, error)
	MergeExtra(ctx context.Context, articleID int64, extra map[string]any) error
}

type CreateRequest struct {
	ProductID string  `json:"product_id"`
	Serial    *int64  `json:"serial"`
	Barcode   *string `json:"barcode"`
	Success   *bool   `json:"success"`
	CreatedBy string  `json:"-"`
}

// UpdateRequest carries the mutable fields. Extra keys are merged into the
// stored payload one level deep; keys not mentioned are kept.
type UpdateRequest struct {
	Success *bool          `json:"success"`
	Extra   map[string]any `json:"extra"`
}

type ListRequest struct {
	pagination.Pagination
	ProductID string
	Success   *bool
}

type ListResponse struct {
	pagination.PageInfo
	Articles []Response `json:"articles"`
}

type Response struct {
	ID            string         `json:"id"`
	ProductID     string         `json:"product_id"`
	Serial        int64          `json:"serial"`
	SerialDisplay string         `json:"serial_display"`
	IMEI          string         `json:"imei,omitempty"`
	Barcode       *string        `json:"barcode,omitempty"`
	Success       *bool          `json:"success"`
	CreatedBy     string         `json:"created_by"`
	Extra         map[string]any `json:"extra,omitempty"`
	Macs          []string       `json:"macs,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ActivationCandidate is an article the registry poller should look up.
type ActivationCandidate struct {
	ArticleID int64
	ProductID int64
	IMEI      string
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrProductNotFound    = errors.New("product_not_found")
	ErrInvalidCreator     = errors.New("invalid_creator")
	ErrInvalidSerial      = errors.New("invalid_serial")
	ErrInvalidBarcode     = errors.New("invalid_barcode")
	ErrDuplicateBarcode   = errors.New("duplicate_barcode")
	ErrDuplicateSerial    = errors.New("duplicate_serial")
	ErrAllocationConflict = errors.New("allocation_conflict")
	ErrNoIdentity         = errors.New("imei_not_configured")
	ErrNotFound           = errors.New("not_found")
)
