package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxMark        = 9999
	MaxIMEISerial  = 999999
	defaultFACCode = "00"
)

var (
	ErrInvalidBodyID = errors.New("invalid_body_id")
	ErrInvalidFAC    = errors.New("invalid_fac")
	ErrInvalidMark   = errors.New("invalid_mark")
	ErrSerialRange   = errors.New("serial_out_of_imei_range")
)

var twoDigits = regexp.MustCompile(`^[0-9]{2}$`)

// IMEIConfig holds the product fields an IMEI is composed from.
type IMEIConfig struct {
	BodyID string
	Mark   int
	FAC    string
}

func (c IMEIConfig) Validate() error {
	if !twoDigits.MatchString(c.BodyID) {
		return ErrInvalidBodyID
	}
	if c.FAC != "" && !twoDigits.MatchString(c.FAC) {
		return ErrInvalidFAC
	}
	if c.Mark < 0 || c.Mark > MaxMark {
		return ErrInvalidMark
	}
	return nil
}

// TAC returns the type allocation code, e.g. "35-123456".
func (c IMEIConfig) TAC() string {
	fac := c.FAC
	if fac == "" {
		fac = defaultFACCode
	}
	return fmt.Sprintf("%s-%04d%s", c.BodyID, c.Mark, fac)
}

// ComposeIMEI builds "{TAC}-{serial:06}-{check}". Downstream consumers strip
// the hyphens and expect exactly 15 digits, so the layout is fixed.
func ComposeIMEI(cfg IMEIConfig, serial int64) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if serial < 0 || serial > MaxIMEISerial {
		return "", ErrSerialRange
	}
	base := fmt.Sprintf("%s-%06d", cfg.TAC(), serial)
	check, err := LuhnCheckDigit(base)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", base, check), nil
}

// StripIMEI removes the separators the registry API does not accept.
func StripIMEI(imei string) string {
	return strings.ReplaceAll(strings.TrimSpace(imei), "-", "")
}
