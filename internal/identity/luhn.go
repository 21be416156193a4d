package identity

import "errors"

var ErrEmptyDigits = errors.New("empty_digits")

// doubled[d] is 2*d with the digits of the product summed.
var doubled = [10]int{0, 2, 4, 6, 8, 1, 3, 5, 7, 9}

// LuhnCheckDigit returns the digit that makes digits+check pass the Luhn
// test. Non-digit characters are ignored, so "35-123456-000007" and
// "35123456000007" produce the same result.
//
// The digit immediately left of the check digit is doubled. For the
// even-length identity strings built by ComposeIMEI this is the same as
// doubling every odd 0-indexed position counted from the left.
func LuhnCheckDigit(digits string) (int, error) {
	clean := onlyDigits(digits)
	if len(clean) == 0 {
		return 0, ErrEmptyDigits
	}

	sum := 0
	for i := len(clean) - 1; i >= 0; i-- {
		d := int(clean[i] - '0')
		if (len(clean)-1-i)%2 == 0 {
			sum += doubled[d]
		} else {
			sum += d
		}
	}
	return (10 - sum%10) % 10, nil
}

// LuhnValid reports whether the trailing digit of digits is a valid Luhn
// check digit for the rest of the sequence.
func LuhnValid(digits string) bool {
	clean := onlyDigits(digits)
	if len(clean) < 2 {
		return false
	}
	want, err := LuhnCheckDigit(clean[:len(clean)-1])
	if err != nil {
		return false
	}
	return int(clean[len(clean)-1]-'0') == want
}

func onlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
