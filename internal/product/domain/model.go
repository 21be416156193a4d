package domain

import (
	"time"

	"github.com/smallbiznis/bsma/internal/identity"
)

// Product is a device model. The IMEI and MAC sections are optional and
// surface through Identity and MacConfig.
type Product struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"column:name"`
	Mark        int       `json:"mark" gorm:"column:mark"`
	SerialMask  string    `json:"serial_mask" gorm:"column:serial_mask"`
	BodyID      string    `json:"body_id" gorm:"column:body_id"`
	FAC         string    `json:"fac" gorm:"column:fac"`
	OUI         string    `json:"oui" gorm:"column:oui"`
	MacStart    string    `json:"mac_start" gorm:"column:mac_start"`
	MacEnd      string    `json:"mac_end" gorm:"column:mac_end"`
	MacQuantity int       `json:"mac_quantity" gorm:"column:mac_quantity"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Product) TableName() string { return "products" }

// Identity returns the IMEI composition fields, or false when the product
// has no body identifier.
func (p Product) Identity() (identity.IMEIConfig, bool) {
	if p.BodyID == "" {
		return identity.IMEIConfig{}, false
	}
	return identity.IMEIConfig{BodyID: p.BodyID, Mark: p.Mark, FAC: p.FAC}, true
}

// MacConfig returns the MAC range, or false when the prefix or bounds are
// not configured. A configured range with zero quantity is returned with
// ok=true; callers check Enabled.
func (p Product) MacConfig() (identity.MacRange, bool) {
	if p.OUI == "" || p.MacStart == "" || p.MacEnd == "" {
		return identity.MacRange{}, false
	}
	return identity.MacRange{
		OUI:      p.OUI,
		Start:    p.MacStart,
		End:      p.MacEnd,
		Quantity: p.MacQuantity,
	}, true
}

// SerialDisplay renders serial through the product mask.
func (p Product) SerialDisplay(serial int64) string {
	return identity.ComposeSerialDisplay(p.SerialMask, serial)
}

// IMEI composes the IMEI for serial. ok is false when the product has no
// identity configuration.
func (p Product) IMEI(serial int64) (imei string, ok bool, err error) {
	cfg, ok := p.Identity()
	if !ok {
		return "", false, nil
	}
	imei, err = identity.ComposeIMEI(cfg, serial)
	if err != nil {
		return "", true, err
	}
	return imei, true, nil
}
