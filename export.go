package nbind

import (
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/muir/commonerrors"
	"github.com/pkg/errors"
)

// Item is one key of an exported configuration template
type Item struct {
	Key   string
	Value interface{} // nil for unset values
	Text  string      // Value formatted the way a Binder would parse it
	Field Field
	// Required is true when the field and every enclosing field are
	// required.
	Required bool
}

// Items is the result of an export, ordered by key
type Items struct {
	items map[string]Item
	keys  []string
}

func (items *Items) Len() int { return len(items.items) }

// Keys returns the keys in lexicographic order
func (items *Items) Keys() []string {
	if len(items.keys) != len(items.items) {
		items.keys = make([]string, 0, len(items.items))
		for k := range items.items {
			items.keys = append(items.keys, k)
		}
		sort.Strings(items.keys)
	}
	return items.keys
}

func (items *Items) Get(key string) (Item, bool) {
	item, ok := items.items[key]
	return item, ok
}

// WriteTo writes the items as a properties template: each item's
// description as a comment block, then key=value, then a blank line.
// Items that are not required are commented out.
func (items *Items) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	for _, key := range items.Keys() {
		item := items.items[key]
		if strings.TrimSpace(item.Field.Desc) != "" {
			b.WriteString("#\n")
			for _, line := range strings.Split(item.Field.Desc, "\n") {
				b.WriteString("# " + line + "\n")
			}
			b.WriteString("#\n")
		}
		if !item.Required {
			b.WriteString("#")
		}
		b.WriteString(key + "=" + escape(item.Text) + "\n\n")
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), errors.WithStack(err)
}

var escaper = strings.NewReplacer(`\`, `\\`, " ", `\ `, "\n", `\n`)

func escape(s string) string { return escaper.Replace(s) }

// Exporter walks a model the way a Binder would and records, for each
// key, the value that the model currently holds.
type Exporter struct {
	options
}

func NewExporter(opts ...Option) *Exporter {
	return &Exporter{
		options: makeOptions(opts),
	}
}

// Export walks model, which must be a struct or a pointer to a struct.
// A nil pointer is replaced by a new instance with its defaults.  model
// itself is not modified.
func (e *Exporter) Export(model interface{}) (*Items, error) {
	v := reflect.ValueOf(model)
	var root reflect.Value
	switch {
	case !v.IsValid():
		return nil, commonerrors.ProgrammerError(errors.Errorf("Export requires a struct or pointer to struct"))
	case v.Kind() == reflect.Ptr && v.Type().Elem().Kind() == reflect.Struct:
		if v.IsNil() {
			root = instantiate(v.Type(), nil).Elem()
		} else {
			root = v.Elem()
		}
	case v.Kind() == reflect.Struct:
		root = addressable(v)
	default:
		return nil, commonerrors.ProgrammerError(errors.Errorf("Export requires a struct or pointer to struct, not %T", model))
	}
	w := exportWalk{
		Exporter: e,
		items:    &Items{items: make(map[string]Item)},
	}
	err := w.walkStruct("", root, true)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("exported configuration", "type", root.Type().String(), "items", w.items.Len())
	return w.items, nil
}

// ExportType exports a new T with its defaults
func ExportType[T any](e *Exporter) (*Items, error) {
	return e.Export((*T)(nil))
}

// ExportTo exports model and writes the template to w.  Nothing is
// written if the export fails.
func (e *Exporter) ExportTo(w io.Writer, model interface{}) error {
	items, err := e.Export(model)
	if err != nil {
		return err
	}
	_, err = items.WriteTo(w)
	return err
}

type exportWalk struct {
	*Exporter
	items *Items
}

func (w exportWalk) walkStruct(prefix string, v reflect.Value, required bool) error {
	m, err := describe(v.Type())
	if err != nil {
		return err
	}
	for _, f := range m.fields {
		err := w.value(prefix+f.Key, f, v.FieldByIndex(f.index), required && f.Required, false)
		if err != nil {
			return err
		}
	}
	return nil
}

// value records v at key.  entry is true for map values, which always
// get an item at their own key so that a binder can find them.
func (w exportWalk) value(key string, f Field, v reflect.Value, required bool, entry bool) error {
	switch s := w.registry.classify(v.Type()); s {
	case scalarShape, setShape:
		return w.add(key, f, v, w.format(v), required)
	case collectionShape:
		if w.registry.elementShape(v.Type()) == scalarShape {
			return w.add(key, f, v, w.format(v), required)
		}
		indexes := make([]string, v.Len())
		for i := range indexes {
			indexes[i] = strconv.Itoa(i)
		}
		err := w.add(key, f, v, strings.Join(indexes, ","), required)
		if err != nil {
			return err
		}
		for i, index := range indexes {
			err := w.object(key+"."+index, f, v.Index(i), required, false)
			if err != nil {
				return err
			}
		}
		return nil
	case mapShape:
		return w.mapItems(key, f, v, required, entry || w.mapKeySets)
	case objectShape:
		return w.object(key, f, v, required, entry)
	default:
		return unsupported(v.Type(), key)
	}
}

func (w exportWalk) object(key string, f Field, v reflect.Value, required bool, entry bool) error {
	switch v.Kind() {
	case reflect.Struct:
		if entry {
			if err := w.selector(key, f, "", required); err != nil {
				return err
			}
		}
		return w.walkStruct(key+".", addressable(v), required)
	case reflect.Ptr:
		if v.IsNil() {
			if err := w.selector(key, f, "", required); err != nil {
				return err
			}
			return w.walkStruct(key+".", instantiate(v.Type(), nil).Elem(), required)
		}
		if entry {
			if err := w.selector(key, f, "", required); err != nil {
				return err
			}
		}
		return w.walkStruct(key+".", v.Elem(), required)
	case reflect.Interface:
		if v.IsNil() {
			return w.selector(key, f, "", required)
		}
		concrete := v.Elem()
		if err := w.selector(key, f, w.registry.selectorFor(v.Type(), concrete.Type()), required); err != nil {
			return err
		}
		if concrete.Kind() == reflect.Ptr {
			return w.walkStruct(key+".", concrete.Elem(), required)
		}
		return w.walkStruct(key+".", addressable(concrete), required)
	}
	return unsupported(v.Type(), key)
}

// mapItems walks the entries of m.  With keySet, the entry names are also
// written at key itself.
func (w exportWalk) mapItems(key string, f Field, m reflect.Value, required bool, keySet bool) error {
	type entry struct {
		name  string
		value reflect.Value
	}
	entries := make([]entry, 0, m.Len())
	iter := m.MapRange()
	for iter.Next() {
		name := w.registry.Format(iter.Key())
		if name == "" || strings.Contains(name, ".") {
			return errors.Wrapf(ErrMalformedKey, "map %s entry '%s'", key, name)
		}
		entries = append(entries, entry{name: name, value: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	if keySet {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.name
		}
		if err := w.add(key, f, m, strings.Join(names, ","), required); err != nil {
			return err
		}
	}
	for _, e := range entries {
		err := w.value(key+"."+e.name, f, e.value, required, true)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w exportWalk) selector(key string, f Field, selector string, required bool) error {
	return w.put(Item{
		Key:      key,
		Value:    selector,
		Text:     selector,
		Field:    f,
		Required: required,
	})
}

func (w exportWalk) add(key string, f Field, v reflect.Value, text string, required bool) error {
	var value interface{}
	if v.IsValid() && v.CanInterface() && !isNil(v) {
		value = v.Interface()
	}
	return w.put(Item{
		Key:      key,
		Value:    value,
		Text:     text,
		Field:    f,
		Required: required,
	})
}

func (w exportWalk) put(item Item) error {
	if _, dup := w.items.items[item.Key]; dup {
		return errors.Wrapf(ErrDuplicateKey, "[%s]", item.Key)
	}
	w.items.items[item.Key] = item
	return nil
}

// format renders v as text that Binder parses back into v
func (w exportWalk) format(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if w.registry.IsSimple(v.Type()) {
		return w.registry.Format(v)
	}
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return ""
		}
		return w.format(v.Elem())
	case reflect.Slice, reflect.Array:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = w.format(v.Index(i))
		}
		return strings.Join(parts, ",")
	case reflect.Map:
		parts := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			parts = append(parts, w.registry.Format(k))
		}
		sort.Strings(parts)
		return strings.Join(parts, ",")
	}
	return w.registry.Format(v)
}
