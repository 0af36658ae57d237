package engine

import "errors"

var (
	// ErrSchemaMismatch means the sample shape does not match the schema
	// the model was trained on.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrInvalidInput means a sample carries non-finite, missing or
	// otherwise unusable values. Rejected before reaching any classifier.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDegenerateProfile means the noise profile has no usable variance
	// data for the domain.
	ErrDegenerateProfile = errors.New("degenerate noise profile")

	// ErrModelLoad means a model bundle is corrupt or incomplete. Fatal at
	// startup: a partially loaded domain never serves.
	ErrModelLoad = errors.New("model load failed")
)
