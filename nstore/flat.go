package nstore

import (
	"sort"
	"strings"

	"github.com/magiconair/properties"
	"github.com/pkg/errors"
)

var _ Store = &FlatStore{}

// FlatStore is backed by a flattened map where nesting is expressed
// with dotted keys: "database.ports" -> "8000,8001".
type FlatStore struct {
	values map[string]string
	base   string
}

// NewFlatStore wraps values.  The map is not copied and must not
// be modified while the store is in use.
func NewFlatStore(values map[string]string) *FlatStore {
	if values == nil {
		values = map[string]string{}
	}
	return &FlatStore{
		values: values,
	}
}

// ParseProperties reads Java-style properties text.  ${} expansion
// is not done.
func ParseProperties(data []byte) (map[string]string, error) {
	loader := &properties.Loader{
		Encoding:         properties.UTF8,
		DisableExpansion: true,
	}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return p.Map(), nil
}

func (s *FlatStore) FullKey(key string) (string, error) {
	return fullKey(s.base, key)
}

func (s *FlatStore) GetString(key string) (string, bool, error) {
	full, err := s.FullKey(key)
	if err != nil {
		return "", false, err
	}
	value, ok := s.values[full]
	return value, ok, nil
}

func (s *FlatStore) GetCollection(key string) ([]string, bool, error) {
	value, ok, err := s.GetString(key)
	if err != nil || !ok {
		return nil, false, err
	}
	return splitCollection(value), true, nil
}

func (s *FlatStore) Recurse(key string) (Store, error) {
	full, err := s.FullKey(key)
	if err != nil {
		return nil, err
	}
	return &FlatStore{
		values: s.values,
		base:   full + Separator,
	}, nil
}

// Keys returns the keys directly below the current prefix.  Only keys
// that carry a value themselves are reported: "a.b.c" alone does not
// make "b" a key of the store scoped to "a".
func (s *FlatStore) Keys() []string {
	keys := make([]string, 0)
	for k := range s.values {
		if !strings.HasPrefix(k, s.base) {
			continue
		}
		rest := strings.TrimPrefix(k, s.base)
		if rest == "" || strings.Contains(rest, Separator) {
			continue
		}
		keys = append(keys, rest)
	}
	sort.Strings(keys)
	return keys
}

func (s *FlatStore) Empty() bool {
	for k := range s.values {
		if strings.HasPrefix(k, s.base) && len(k) > len(s.base) {
			return false
		}
	}
	return true
}
