package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// ifscPattern: 4 letter bank code, a zero, 6 character branch code
	ifscPattern          = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	accountNumberPattern = regexp.MustCompile(`^[0-9]{9,18}$`)
)

// ValidateIFSC checks an Indian Financial System Code such as HDFC0001234
func ValidateIFSC(code string) error {
	if !ifscPattern.MatchString(strings.ToUpper(strings.TrimSpace(code))) {
		return fmt.Errorf("invalid IFSC code %q", code)
	}
	return nil
}

// ValidateAccountNumber checks a bank account number is 9 to 18 digits
func ValidateAccountNumber(number string) error {
	if !accountNumberPattern.MatchString(strings.TrimSpace(number)) {
		return fmt.Errorf("account number must be 9 to 18 digits")
	}
	return nil
}

// MaskAccountNumber returns the last 4 digits of an account number
func MaskAccountNumber(number string) string {
	number = strings.TrimSpace(number)
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
