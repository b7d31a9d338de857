package nstore

import (
	"sort"
	"strconv"
	"strings"

	"github.com/muir/nflex"
)

var _ Store = SourceStore{}

// SourceStore adapts an nflex.Source (YAML, JSON, or a combination of
// sources) to the Store contract.
type SourceStore struct {
	source nflex.Source // nil when scoped to something that does not exist
	base   string
}

func NewSourceStore(source nflex.Source) SourceStore {
	return SourceStore{
		source: source,
	}
}

func (s SourceStore) FullKey(key string) (string, error) {
	return fullKey(s.base, key)
}

func (s SourceStore) exists(key string) bool {
	return s.source != nil && s.source.Exists(key)
}

// kind does not rely on Type alone: not every nflex.Source reports
// Map and Slice through Type.
func (s SourceStore) kind(key string) nflex.NodeType {
	if !s.exists(key) {
		return nflex.Undefined
	}
	if _, err := s.source.Keys(key); err == nil {
		return nflex.Map
	}
	if _, err := s.source.Len(key); err == nil {
		return nflex.Slice
	}
	return s.source.Type(key)
}

func (s SourceStore) GetString(key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	switch s.kind(key) {
	case nflex.Map, nflex.Undefined, nflex.Nil:
		return "", false, nil
	case nflex.Slice:
		elements, ok := s.elements(key)
		if !ok {
			return "", false, nil
		}
		return strings.Join(elements, ","), true, nil
	default:
		return s.scalar(key)
	}
}

func (s SourceStore) GetCollection(key string) ([]string, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	switch s.kind(key) {
	case nflex.Map, nflex.Undefined, nflex.Nil:
		return nil, false, nil
	case nflex.Slice:
		elements, ok := s.elements(key)
		return elements, ok, nil
	default:
		value, ok, err := s.scalar(key)
		if err != nil || !ok {
			return nil, false, err
		}
		return splitCollection(value), true, nil
	}
}

func (s SourceStore) elements(key string) ([]string, bool) {
	length, err := s.source.Len(key)
	if err != nil {
		debug("nstore: len", key, err)
		return nil, false
	}
	elements := make([]string, 0, length)
	for i := 0; i < length; i++ {
		value, ok, _ := s.scalar(key, strconv.Itoa(i))
		if ok {
			elements = append(elements, value)
		}
	}
	return elements, true
}

// scalar prefers the raw string form.  JSON sources only provide
// strings for string nodes so numbers and booleans are converted.
func (s SourceStore) scalar(keys ...string) (string, bool, error) {
	if str, err := s.source.GetString(keys...); err == nil {
		return str, true, nil
	}
	switch s.source.Type(keys...) {
	case nflex.Int:
		i, err := s.source.GetInt(keys...)
		if err == nil {
			return strconv.FormatInt(i, 10), true, nil
		}
	case nflex.Float:
		f, err := s.source.GetFloat(keys...)
		if err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true, nil
		}
	case nflex.Bool:
		b, err := s.source.GetBool(keys...)
		if err == nil {
			return strconv.FormatBool(b), true, nil
		}
	}
	return "", false, nil
}

func (s SourceStore) Recurse(key string) (Store, error) {
	full, err := s.FullKey(key)
	if err != nil {
		return nil, err
	}
	var source nflex.Source
	if s.kind(key) == nflex.Map {
		source = s.source.Recurse(key)
	}
	return SourceStore{
		source: source,
		base:   full + Separator,
	}, nil
}

func (s SourceStore) Keys() []string {
	if s.source == nil {
		return []string{}
	}
	keys, err := s.source.Keys()
	if err != nil {
		debug("nstore: keys", s.base, err)
		return []string{}
	}
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	return sorted
}

func (s SourceStore) Empty() bool {
	return len(s.Keys()) == 0
}
