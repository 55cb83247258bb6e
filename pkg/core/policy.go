package core

import "fmt"

// Policy decides what happens to a failed unit of work that is not a
// single sequence: an empty batch or a malformed library record.
type Policy string

const (
	// PolicyFail aborts the run.
	PolicyFail Policy = "fail"
	// PolicySkip logs the failure and continues.
	PolicySkip Policy = "skip"
)

// Validate rejects unknown policies. The empty policy means PolicyFail.
func (p Policy) Validate(field string) error {
	switch p {
	case "", PolicyFail, PolicySkip:
		return nil
	}
	return &ConfigurationError{Field: field, Message: fmt.Sprintf("unknown policy %q (want %q or %q)", p, PolicyFail, PolicySkip)}
}

// Skips reports whether failures should be skipped.
func (p Policy) Skips() bool {
	return p == PolicySkip
}
