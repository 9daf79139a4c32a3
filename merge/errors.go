package merge

import "github.com/pkg/errors"

// Errors returned by the merge driver wrap one of these causes so callers can
// test them with errors.Is.
var (
	// ErrConfig marks bad settings or inputs that don't fit together, e.g.,
	// label and spectral rasters with different extents.
	ErrConfig = errors.New("configuration error")

	// ErrResource marks inputs too large for the label tables.
	ErrResource = errors.New("resource error")

	// ErrInvariant marks a broken table invariant, which is a defect.
	ErrInvariant = errors.New("invariant violation")
)
