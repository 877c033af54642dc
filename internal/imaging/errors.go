package imaging

import "fmt"

// UnsupportedFormatError reports an upload that decoded cleanly but whose
// container format is not accepted by this service. It carries the list of
// formats that are accepted so the caller can tell the user what to send.
type UnsupportedFormatError struct {
	Format    string
	Supported string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported image format: %s. Supported formats: %s", e.Format, e.Supported)
}

// DecodeError reports bytes that do not parse as any recognized image
// container, or a container whose pixel data is structurally broken.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid image file: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }
