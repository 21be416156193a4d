package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var ErrInvalidMask = errors.New("invalid_serial_mask")

var serialPlaceholder = regexp.MustCompile(`\{serial(?::([0-9]{1,2}))?\}`)

// ValidateMask checks that a serial mask contains at least one {serial}
// or {serial:N} placeholder.
func ValidateMask(mask string) error {
	if !serialPlaceholder.MatchString(mask) {
		return ErrInvalidMask
	}
	return nil
}

// ComposeSerialDisplay renders serial through mask. An empty mask yields
// the plain decimal serial.
func ComposeSerialDisplay(mask string, serial int64) string {
	if mask == "" {
		return strconv.FormatInt(serial, 10)
	}
	return serialPlaceholder.ReplaceAllStringFunc(mask, func(token string) string {
		groups := serialPlaceholder.FindStringSubmatch(token)
		if len(groups) < 2 || groups[1] == "" {
			return strconv.FormatInt(serial, 10)
		}
		width, _ := strconv.Atoi(groups[1])
		return fmt.Sprintf("%0*d", width, serial)
	})
}
