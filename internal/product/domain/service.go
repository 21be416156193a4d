package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
}

type ListRequest struct {
	Name string
}

type CreateRequest struct {
	Name        string `json:"name"`
	Mark        int    `json:"mark"`
	SerialMask  string `json:"serial_mask"`
	BodyID      string `json:"body_id"`
	FAC         string `json:"fac"`
	OUI         string `json:"oui"`
	MacStart    string `json:"mac_start"`
	MacEnd      string `json:"mac_end"`
	MacQuantity int    `json:"mac_quantity"`
}

type UpdateRequest struct {
	ID          string  `json:"-"`
	Name        *string `json:"name"`
	Mark        *int    `json:"mark"`
	SerialMask  *string `json:"serial_mask"`
	BodyID      *string `json:"body_id"`
	FAC         *string `json:"fac"`
	OUI         *string `json:"oui"`
	MacStart    *string `json:"mac_start"`
	MacEnd      *string `json:"mac_end"`
	MacQuantity *int    `json:"mac_quantity"`
}

type Response struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Mark        int       `json:"mark"`
	SerialMask  string    `json:"serial_mask,omitempty"`
	BodyID      string    `json:"body_id,omitempty"`
	FAC         string    `json:"fac,omitempty"`
	TAC         string    `json:"tac,omitempty"`
	OUI         string    `json:"oui,omitempty"`
	MacStart    string    `json:"mac_start,omitempty"`
	MacEnd      string    `json:"mac_end,omitempty"`
	MacQuantity int       `json:"mac_quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidName      = errors.New("invalid_name")
	ErrNotFound         = errors.New("not_found")
	ErrDuplicateProduct = errors.New("duplicate_product")
	ErrProductInUse     = errors.New("product_in_use")
	// ErrConfigLocked rejects edits that would change IMEIs or MAC
	// addresses already issued to articles.
	ErrConfigLocked = errors.New("config_locked")
)
