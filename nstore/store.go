/*
Package nstore provides read-only hierarchical key/value stores that
nbind binds configuration structs from.

A Store is always scoped to a prefix.  Keys passed to a Store are single
path segments: they may not be empty and may not contain the path separator
("."). Recurse returns a child store scoped one level deeper.  Absent keys
are never errors: the lookups report that nothing was found and callers
decide if that matters.

Three implementations are provided:

	FlatStore:   flattened "a.b.c" -> value maps (properties / ini files)
	TableStore:  nested map[string]any documents (TOML and HCL)
	SourceStore: any nflex.Source (YAML and JSON)

Stores are normally built by a Loader from one or more files.
*/
package nstore

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Separator joins path segments into full keys
const Separator = "."

var ErrMalformedKey = fmt.Errorf("malformed configuration key")
var ErrNotFound = fmt.Errorf("configuration file not found")
var ErrAmbiguousFormat = fmt.Errorf("ambiguous configuration format")
var ErrUnknownFormat = fmt.Errorf("unrecognized configuration format")

// Store is a read-only view over a hierarchical key/value namespace.
type Store interface {
	// GetString returns the value at key.  Arrays are presented as
	// comma-joined text.  Nested tables are not values.
	GetString(key string) (string, bool, error)

	// GetCollection returns the elements stored at key
	GetCollection(key string) ([]string, bool, error)

	// Recurse returns a store scoped to key.  Recursing into something
	// that does not exist returns an empty store, not an error.
	Recurse(key string) (Store, error)

	// Keys returns the sorted, direct child keys of this store
	Keys() []string

	// Empty is true when nothing at all is stored under this store,
	// at any depth.
	Empty() bool

	// FullKey reconstructs the absolute dotted path of key, for
	// error messages.
	FullKey(key string) (string, error)
}

func checkKey(key string) error {
	if key == "" {
		return errors.Wrap(ErrMalformedKey, "empty key")
	}
	if strings.Contains(key, Separator) {
		return errors.Wrapf(ErrMalformedKey, "key '%s' contains '%s'", key, Separator)
	}
	return nil
}

func fullKey(base string, key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	return base + key, nil
}

// splitCollection splits comma separated text.  Empty text is an
// empty collection.
func splitCollection(value string) []string {
	if strings.TrimSpace(value) == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
