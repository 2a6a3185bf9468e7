package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the poster pipeline. Callers match them with errors.Is;
// the typed errors below carry the details and unwrap to these.
var (
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrDecode            = errors.New("image decode failed")
	ErrEncode            = errors.New("image encode failed")
)

// ConfigError reports an unknown or unsupported output format or encoding.
// It fails the whole layout computation.
type ConfigError struct {
	Format string
	// Kind names what was rejected; empty means "format".
	Kind string
}

// KindEncoding marks a ConfigError about an image encoding.
const KindEncoding = "encoding"

func (e *ConfigError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "format"
	}
	return fmt.Sprintf("unsupported output %s %q", kind, e.Format)
}

func (e *ConfigError) Unwrap() error { return ErrUnsupportedFormat }

// DecodeError reports that one layer's asset could not be turned into a bitmap.
// The renderer always recovers from it with that layer's fallback.
type DecodeError struct {
	Layer string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Layer, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// EncodeError reports that a raster could not be encoded. Exports abort on it.
type EncodeError struct {
	Encoding string
	Err      error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encoding %s: %v", e.Encoding, e.Err)
}

func (e *EncodeError) Unwrap() []error { return []error{ErrEncode, e.Err} }
