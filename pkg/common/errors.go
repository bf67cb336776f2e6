package common

import "errors"

var (
	// ErrNotFound is returned by remove/find for an identity that is not indexed.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedDimensionality is a construction-time configuration error.
	ErrUnsupportedDimensionality = errors.New("unsupported dimensionality: space must have 2, 3 or 4 axes")

	ErrInvalidBucketWidth = errors.New("bucket widths must be positive and match the space")

	// ErrCapacityExceeded means a fixed-capacity structure is full. It signals
	// a sizing bug and is never retried.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	ErrStaleHandle = errors.New("stale handle")

	ErrAlreadyExists = errors.New("already exists")
)
