package nstore

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var _ Store = &TableStore{}

// TableStore is backed by a nested document as produced by TOML or
// HCL decoders: tables are map[string]any, arrays are []any.
type TableStore struct {
	table map[string]any
	base  string
}

func NewTableStore(table map[string]any) *TableStore {
	if table == nil {
		table = map[string]any{}
	}
	return &TableStore{
		table: table,
	}
}

func (s *TableStore) FullKey(key string) (string, error) {
	return fullKey(s.base, key)
}

// GetString returns scalars as text and arrays as comma-joined text.
// Tables are not values; use Recurse for those.
func (s *TableStore) GetString(key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	value, ok := s.table[key]
	if !ok || value == nil {
		return "", false, nil
	}
	switch v := value.(type) {
	case map[string]any:
		return "", false, nil
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = scalarText(e)
		}
		return strings.Join(parts, ","), true, nil
	default:
		return scalarText(v), true, nil
	}
}

func (s *TableStore) GetCollection(key string) ([]string, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	value, ok := s.table[key]
	if !ok || value == nil {
		return nil, false, nil
	}
	switch v := value.(type) {
	case map[string]any:
		return nil, false, nil
	case []any:
		elements := make([]string, len(v))
		for i, e := range v {
			elements[i] = scalarText(e)
		}
		return elements, true, nil
	default:
		return splitCollection(scalarText(v)), true, nil
	}
}

func (s *TableStore) Recurse(key string) (Store, error) {
	full, err := s.FullKey(key)
	if err != nil {
		return nil, err
	}
	sub, _ := s.table[key].(map[string]any)
	if sub == nil {
		sub = map[string]any{}
	}
	return &TableStore{
		table: sub,
		base:  full + Separator,
	}, nil
}

func (s *TableStore) Keys() []string {
	keys := make([]string, 0, len(s.table))
	for k := range s.table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *TableStore) Empty() bool { return len(s.table) == 0 }

func scalarText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
