package domain

import "errors"

var (
	// ErrInvalidCoordinate is returned for NaN, infinite or out-of-range coordinates.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrMalformedDocument is returned when a trip document is missing meta or days,
	// or when days is not an array.
	ErrMalformedDocument = errors.New("malformed trip document")

	// ErrIndexOutOfRange is returned by strict day operations on a missing index.
	ErrIndexOutOfRange = errors.New("day index out of range")

	// ErrUnsupportedGeometry is returned for GeoJSON geometries other than
	// LineString and MultiLineString.
	ErrUnsupportedGeometry = errors.New("unsupported route geometry")
)

// ErrNotFound is returned by repositories when no record matches.
var ErrNotFound = errors.New("not found")
