package workflows

import "errors"

var (
	// ErrInvalidRequest is returned when the request is invalid
	ErrInvalidRequest = errors.New("invalid workflow request")

	// ErrUnsupportedFormat is returned for an unknown output format
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrRead is returned when the source file cannot be opened
	ErrRead = errors.New("source read failed")

	// ErrDecode is returned when the source is not a decodable image
	ErrDecode = errors.New("image decode failed")

	// ErrEncode is returned when the thumbnail cannot be encoded
	ErrEncode = errors.New("image encode failed")

	// ErrWrite is returned when the thumbnail cannot be written
	ErrWrite = errors.New("thumbnail write failed")
)
