// Package legal holds the rules for legal sequence numbers and document fingerprints.
package legal

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
)

// SequenceWidth is the zero-padded width of the sequence part of a legal number
const SequenceWidth = 5

var numberPattern = regexp.MustCompile(`^([A-Z]+)-(\d{4})-(\d{5,})$`)

// Number is a parsed legal number such as FAC-2025-00001
type Number struct {
	Prefix   string
	Year     int
	Sequence int64
}

// String formats the number as PREFIX-YEAR-NNNNN
func (n Number) String() string {
	return FormatNumber(n.Prefix, n.Year, n.Sequence)
}

// FormatNumber builds a legal number from its parts
func FormatNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%0*d", prefix, year, SequenceWidth, seq)
}

// ParseNumber parses a legal number produced by FormatNumber
func ParseNumber(s string) (Number, error) {
	m := numberPattern.FindStringSubmatch(s)
	if m == nil {
		return Number{}, fmt.Errorf("invalid legal number %q", s)
	}

	year, _ := strconv.Atoi(m[2])
	seq, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil || seq < 1 {
		return Number{}, fmt.Errorf("invalid legal number sequence %q", s)
	}

	return Number{Prefix: m[1], Year: year, Sequence: seq}, nil
}

// Fingerprint returns the lower-case hex SHA-256 digest of content
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// SameFingerprint compares two hex digests in constant time
func SameFingerprint(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
