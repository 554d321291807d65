package entities

import "fmt"

const (
	DefaultReferencePrefix  = "MT"
	DefaultReferencePadding = 5
)

// ReferenceFormat turns a sequence number into a human-readable reference
// such as MT00042.
type ReferenceFormat struct {
	Prefix  string
	Padding int
}

// DefaultReferenceFormat returns the MT00001 style format
func DefaultReferenceFormat() ReferenceFormat {
	return ReferenceFormat{Prefix: DefaultReferencePrefix, Padding: DefaultReferencePadding}
}

// Format renders sequence number n
func (f ReferenceFormat) Format(n int64) string {
	if f.Padding <= 0 {
		return fmt.Sprintf("%s%d", f.Prefix, n)
	}
	return fmt.Sprintf("%s%0*d", f.Prefix, f.Padding, n)
}
