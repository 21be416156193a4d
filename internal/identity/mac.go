package identity

import (
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
)

const maxNIC = 0xFFFFFF

var (
	ErrInvalidOUI      = errors.New("invalid_oui")
	ErrInvalidMacStart = errors.New("invalid_mac_start")
	ErrInvalidMacEnd   = errors.New("invalid_mac_end")
	ErrInvalidMacRange = errors.New("invalid_mac_range")
	ErrInvalidQuantity = errors.New("invalid_mac_quantity")
	ErrMacOverflow     = errors.New("mac_offset_overflow")
)

var sixHex = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

// MacRange is a product's MAC capacity window: the organizational prefix
// and the NIC-specific bounds, all as 6 hex digits, plus the number of
// addresses granted to each article.
type MacRange struct {
	OUI      string
	Start    string
	End      string
	Quantity int
}

func (r MacRange) Validate() error {
	if !sixHex.MatchString(r.OUI) {
		return ErrInvalidOUI
	}
	if !sixHex.MatchString(r.Start) {
		return ErrInvalidMacStart
	}
	if !sixHex.MatchString(r.End) {
		return ErrInvalidMacEnd
	}
	if r.Quantity < 0 {
		return ErrInvalidQuantity
	}
	start, _ := parseHex24(r.Start)
	end, _ := parseHex24(r.End)
	if start > end {
		return ErrInvalidMacRange
	}
	return nil
}

// Enabled reports whether articles of the product receive MAC addresses.
func (r MacRange) Enabled() bool {
	return r.Quantity > 0
}

// Address returns the canonical EUI-48 string for offset, e.g.
// "00-1B-77-00-00-2A".
func (r MacRange) Address(offset int64) (string, error) {
	oui, err := parseHex24(r.OUI)
	if err != nil {
		return "", ErrInvalidOUI
	}
	nic, err := r.nic(offset)
	if err != nil {
		return "", err
	}
	value := oui<<24 | nic
	hw := make(net.HardwareAddr, 6)
	for i := 5; i >= 0; i-- {
		hw[i] = byte(value & 0xFF)
		value >>= 8
	}
	return strings.ToUpper(strings.ReplaceAll(hw.String(), ":", "-")), nil
}

// Exhausted reports whether the address implied by highestOffset has
// reached the end of the range.
func (r MacRange) Exhausted(highestOffset int64) (bool, error) {
	end, err := parseHex24(r.End)
	if err != nil {
		return false, ErrInvalidMacEnd
	}
	nic, err := r.nic(highestOffset)
	if err != nil {
		if errors.Is(err, ErrMacOverflow) {
			return true, nil
		}
		return false, err
	}
	return nic >= end, nil
}

// Contains reports whether offset still maps to an address within the
// range bounds.
func (r MacRange) Contains(offset int64) (bool, error) {
	end, err := parseHex24(r.End)
	if err != nil {
		return false, ErrInvalidMacEnd
	}
	nic, err := r.nic(offset)
	if err != nil {
		if errors.Is(err, ErrMacOverflow) {
			return false, nil
		}
		return false, err
	}
	return nic <= end, nil
}

func (r MacRange) nic(offset int64) (uint64, error) {
	start, err := parseHex24(r.Start)
	if err != nil {
		return 0, ErrInvalidMacStart
	}
	if offset < 0 {
		return 0, ErrMacOverflow
	}
	nic := start + uint64(offset)
	if nic > maxNIC {
		return 0, ErrMacOverflow
	}
	return nic, nil
}

func parseHex24(s string) (uint64, error) {
	if !sixHex.MatchString(s) {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseUint(s, 16, 32)
}
