package nbind

import (
	"fmt"

	"github.com/muir/nbind/nstore"
	"github.com/pkg/errors"
)

// Errors that can be tested for with errors.Is.  Store construction
// errors come from nstore and are repeated here for convenience.
var (
	ErrMalformedKey    = nstore.ErrMalformedKey
	ErrNotFound        = nstore.ErrNotFound
	ErrAmbiguousFormat = nstore.ErrAmbiguousFormat
	ErrUnknownFormat   = nstore.ErrUnknownFormat

	ErrRequired        = fmt.Errorf("required configuration missing")
	ErrParse           = fmt.Errorf("configuration parse failed")
	ErrUnknownEnum     = fmt.Errorf("unknown enum constant")
	ErrNoSubtype       = fmt.Errorf("no subtype found")
	ErrDuplicateKey    = fmt.Errorf("duplicated configuration item")
	ErrUnsupportedType = fmt.Errorf("unsupported configuration type")
	ErrDecrypt         = fmt.Errorf("decrypt configuration failed")
)

type requiredError struct {
	key string
}

// RequiredError reports that key (a full dotted key) has no value
func RequiredError(key string) error {
	return errors.WithStack(requiredError{key: key})
}

func (r requiredError) Error() string { return r.key + " is required" }
func (r requiredError) Is(err error) bool {
	return err == ErrRequired
}

type parseError struct {
	key   string
	cause error
}

// ParseError annotates an error as being a failure to convert the text
// found at key (a full dotted key).
func ParseError(key string, err error) error {
	if err == nil {
		return nil
	}
	return parseError{
		key:   key,
		cause: errors.WithStack(err),
	}
}

func (p parseError) Error() string { return fmt.Sprintf("parse %s failed: %s", p.key, p.cause) }
func (p parseError) Unwrap() error { return p.cause }
func (p parseError) Cause() error  { return p.cause }
func (p parseError) Is(err error) bool {
	return err == ErrParse
}

// Key returns the full dotted key of a required or parse error
func Key(err error) (string, bool) {
	var r requiredError
	if errors.As(err, &r) {
		return r.key, true
	}
	var p parseError
	if errors.As(err, &p) {
		return p.key, true
	}
	return "", false
}
