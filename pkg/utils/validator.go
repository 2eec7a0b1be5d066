package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	unsafeKeyChar = regexp.MustCompile(`[^A-Za-z0-9._\-]+`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateSIRET validates a French SIRET number (14 digits, Luhn checksum).
// Spaces are ignored.
func ValidateSIRET(siret string) error {
	digits := strings.ReplaceAll(siret, " ", "")
	if len(digits) != 14 {
		return fmt.Errorf("SIRET must be 14 digits: %s", siret)
	}

	sum := 0
	for i, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("SIRET must be numeric: %s", siret)
		}
		d := int(r - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	if sum%10 != 0 {
		return fmt.Errorf("invalid SIRET checksum: %s", siret)
	}
	return nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// SanitizeFileName reduces a user supplied file name to a safe storage key segment
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return "file"
	}
	base = strings.Trim(unsafeKeyChar.ReplaceAllString(base, "_"), "_")
	if base == "" || strings.Trim(base, ".") == "" {
		return "file"
	}
	return base
}
