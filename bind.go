package nbind

import (
	"encoding/base64"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/muir/commonerrors"
	"github.com/muir/nbind/nstore"
	"github.com/pkg/errors"
)

// Binder populates models from a Store.  Fields of a model participate
// when they carry a config tag (see TagName).  Depending on the field
// type, the value at the field's key is:
//
// Simple types (see Registry.IsSimple), and pointers to them, are
// parsed from the string at the key.
//
// Slices, arrays and sets (map[T]struct{}) are parsed from a
// comma-separated list.  When the elements are structs (or pointers to
// structs or interfaces) each list item names a sub-key: "a,b" binds
// elements from key.a and key.b.
//
// Maps are rebuilt from the direct children of the key.
//
// Structs, pointers to structs and interfaces are bound from the
// sub-keys of the key.  When the key itself has a value, it selects
// the concrete type: "@id" for a registered subtype id or the full
// name of a registered type.
type Binder struct {
	options
	store nstore.Store
}

func NewBinder(store nstore.Store, opts ...Option) *Binder {
	return &Binder{
		options: makeOptions(opts),
		store:   store,
	}
}

// FromMap binds from a flat map of dotted keys to values
func FromMap(values map[string]string, opts ...Option) *Binder {
	return NewBinder(nstore.NewFlatStore(values), opts...)
}

// Bind is a shortcut for NewBinder(store, opts...).Bind(model)
func Bind(store nstore.Store, model interface{}, opts ...Option) error {
	return NewBinder(store, opts...).Bind(model)
}

// Get creates a new T, applies its defaults and binds it
func Get[T any](b *Binder) (*T, error) {
	m := new(T)
	setDefaults(reflect.ValueOf(m))
	err := b.Bind(m)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (b *Binder) Store() nstore.Store { return b.store }

// Sub returns a binder for the part of the configuration under key
func (b *Binder) Sub(key string) (*Binder, error) {
	store, err := b.store.Recurse(key)
	if err != nil {
		return nil, err
	}
	return &Binder{
		options: b.options,
		store:   store,
	}, nil
}

// Bind fills in model which must be a pointer to a struct.  Fields that
// have no value in the store keep what they had.
func (b *Binder) Bind(model interface{}) error {
	v := reflect.ValueOf(model)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return commonerrors.ProgrammerError(errors.Errorf("Bind requires a non-nil pointer to a struct, not %T", model))
	}
	err := b.bindStruct(b.store, v.Elem())
	if err != nil {
		return err
	}
	if b.validator != nil {
		err := b.validator.Struct(model)
		if err != nil {
			return commonerrors.ConfigurationError(errors.Wrap(err, v.Elem().Type().String()))
		}
	}
	b.logger.Debug("bound configuration", "type", v.Elem().Type().String())
	return nil
}

func (b *Binder) bindStruct(store nstore.Store, v reflect.Value) error {
	m, err := describe(v.Type())
	if err != nil {
		return err
	}
	for _, f := range m.fields {
		err := b.bindField(store, f, v.FieldByIndex(f.index))
		if err != nil {
			return err
		}
	}
	if i, ok := v.Addr().Interface().(Initializer); ok {
		err := i.Init()
		if err != nil {
			return errors.Wrapf(err, "init %s", v.Type())
		}
	}
	return nil
}

func (b *Binder) bindField(store nstore.Store, f Field, v reflect.Value) error {
	full, err := store.FullKey(f.Key)
	if err != nil {
		return err
	}
	debug("bind", full, f.Type)
	switch s := b.registry.classify(f.Type); s {
	case scalarShape:
		text, ok, err := store.GetString(f.Key)
		if err != nil {
			return err
		}
		if !ok {
			return checkRequired(f.Required, full, v)
		}
		if f.Encrypted != "" {
			text, err = b.decrypt(full, f.Encrypted, text)
			if err != nil {
				return err
			}
		}
		nv, err := b.parse(f.Type, full, text)
		if err != nil {
			return err
		}
		v.Set(nv)
		return nil
	case collectionShape, setShape:
		return b.bindCollection(store, f.Key, s, f.Required, v)
	case mapShape:
		return b.bindMap(store, f.Key, f.Required, v)
	case objectShape:
		return b.bindObject(store, f.Key, f.Required, false, v)
	default:
		return unsupported(f.Type, full)
	}
}

// parse handles one level of pointer; blank text is a nil pointer
func (b *Binder) parse(t reflect.Type, full string, text string) (reflect.Value, error) {
	if t.Kind() == reflect.Ptr && !b.registry.IsSimple(t) {
		if text == "" {
			return reflect.Zero(t), nil
		}
		ev, err := b.registry.Parse(t.Elem(), text)
		if err != nil {
			return reflect.Value{}, ParseError(full, err)
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(ev)
		return p, nil
	}
	v, err := b.registry.Parse(t, text)
	if err != nil {
		return reflect.Value{}, ParseError(full, err)
	}
	return v, nil
}

func (b *Binder) bindCollection(store nstore.Store, key string, s shape, required bool, v reflect.Value) error {
	full, err := store.FullKey(key)
	if err != nil {
		return err
	}
	tokens, ok, err := store.GetCollection(key)
	if err != nil {
		return err
	}
	if !ok {
		return checkRequired(required, full, v)
	}
	t := v.Type()
	if s == setShape {
		m := v
		if m.IsNil() {
			m = reflect.MakeMapWithSize(t, len(tokens))
		} else {
			clearMap(m)
		}
		for _, token := range tokens {
			kv, err := b.parse(t.Key(), full, token)
			if err != nil {
				return err
			}
			m.SetMapIndex(kv, reflect.Zero(t.Elem()))
		}
		v.Set(m)
		return nil
	}
	elements := make([]reflect.Value, len(tokens))
	for i, token := range tokens {
		elements[i], err = b.element(store, key, full, t.Elem(), token)
		if err != nil {
			return err
		}
	}
	switch t.Kind() {
	case reflect.Array:
		if len(elements) > t.Len() {
			return ParseError(full, errors.Errorf("%d elements do not fit in %s", len(elements), t))
		}
		v.Set(reflect.Zero(t))
		for i, e := range elements {
			v.Index(i).Set(e)
		}
	case reflect.Slice:
		a := v
		if a.IsNil() {
			a = reflect.MakeSlice(t, 0, len(elements))
		} else {
			a = a.Slice(0, 0)
		}
		for _, e := range elements {
			a = reflect.Append(a, e)
		}
		v.Set(a)
	}
	return nil
}

// element parses a scalar element or binds an object element from the
// sub-key named by token.
func (b *Binder) element(store nstore.Store, key string, full string, t reflect.Type, token string) (reflect.Value, error) {
	if b.registry.classify(t) == scalarShape {
		return b.parse(t, full, token)
	}
	sub, err := store.Recurse(key)
	if err != nil {
		return reflect.Value{}, err
	}
	e := newElement(t)
	err = b.bindObject(sub, token, false, true, e)
	if err != nil {
		return reflect.Value{}, err
	}
	return e, nil
}

func (b *Binder) bindMap(store nstore.Store, key string, required bool, v reflect.Value) error {
	full, err := store.FullKey(key)
	if err != nil {
		return err
	}
	sub, err := store.Recurse(key)
	if err != nil {
		return err
	}
	entries := sub.Keys()
	if len(entries) == 0 && v.IsNil() {
		return checkRequired(required, full, v)
	}
	t := v.Type()
	m := v
	if m.IsNil() {
		m = reflect.MakeMapWithSize(t, len(entries))
	} else {
		clearMap(m)
	}
	es := b.registry.classify(t.Elem())
	for _, entry := range entries {
		entryFull, err := sub.FullKey(entry)
		if err != nil {
			return err
		}
		kv, err := b.parse(t.Key(), entryFull, entry)
		if err != nil {
			return err
		}
		ev := newElement(t.Elem())
		switch es {
		case scalarShape:
			text, ok, err := sub.GetString(entry)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			pv, err := b.parse(t.Elem(), entryFull, text)
			if err != nil {
				return err
			}
			ev.Set(pv)
		case collectionShape, setShape:
			err = b.bindCollection(sub, entry, es, false, ev)
		case mapShape:
			err = b.bindMap(sub, entry, false, ev)
			if err == nil && ev.IsNil() {
				ev.Set(reflect.MakeMap(ev.Type()))
			}
		case objectShape:
			err = b.bindObject(sub, entry, false, true, ev)
		default:
			err = unsupported(t.Elem(), entryFull)
		}
		if err != nil {
			return err
		}
		m.SetMapIndex(kv, ev)
	}
	v.Set(m)
	return checkRequired(required, full, m)
}

// bindObject binds a struct, pointer to struct, or interface.  The value
// at key, if any, selects the concrete type.  Unless force is set, nothing
// is created when there is no selector, no existing value, and nothing
// stored under key.
func (b *Binder) bindObject(store nstore.Store, key string, required bool, force bool, v reflect.Value) error {
	full, err := store.FullKey(key)
	if err != nil {
		return err
	}
	selector, hasSelector, err := store.GetString(key)
	if err != nil {
		return err
	}
	selector = strings.TrimSpace(selector)
	sub, err := store.Recurse(key)
	if err != nil {
		return err
	}
	existing := v.Kind() == reflect.Struct || !v.IsNil()
	if !hasSelector && !existing && !force && sub.Empty() {
		return checkRequired(required, full, v)
	}
	concrete := v.Type()
	var factory func() reflect.Value
	switch {
	case selector != "":
		st, err := b.registry.lookupSubtype(v.Type(), selector)
		if err != nil {
			return errors.Wrap(err, full)
		}
		concrete, factory = st.typ, st.factory
		b.logger.Debug("select configuration type", "key", full, "selector", selector, "type", concrete.String())
	case v.Kind() == reflect.Interface && existing:
		concrete = v.Elem().Type()
	case v.Kind() == reflect.Interface:
		return errors.Wrapf(ErrNoSubtype, "%s: no type selected for %s (want one of @%s)",
			full, v.Type(), strings.Join(b.registry.Subtypes(v.Type()), ", @"))
	}
	if existing {
		current := v
		if v.Kind() == reflect.Interface {
			current = v.Elem()
		}
		if current.Type() == concrete {
			bound, err := b.bindValue(sub, current)
			if err != nil {
				return err
			}
			if v.Kind() != reflect.Struct {
				v.Set(bound)
			}
			return nil
		}
	}
	bound, err := b.bindValue(sub, instantiate(concrete, factory))
	if err != nil {
		return err
	}
	v.Set(bound)
	return nil
}

// bindValue binds the struct inside v, copying it first if it is not
// addressable.
func (b *Binder) bindValue(store nstore.Store, v reflect.Value) (reflect.Value, error) {
	switch v.Kind() {
	case reflect.Ptr:
		return v, b.bindStruct(store, v.Elem())
	case reflect.Struct:
		v = addressable(v)
		return v, b.bindStruct(store, v)
	}
	return v, unsupported(v.Type(), "bind")
}

func (b *Binder) decrypt(full string, keyID string, text string) (string, error) {
	if b.decrypter == nil {
		return "", commonerrors.ProgrammerError(errors.Errorf("%s is encrypted but no decrypter was provided", full))
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return "", errors.Wrapf(ErrDecrypt, "%s: %s", full, err)
	}
	plain, err := b.decrypter.Decrypt(raw, keyID)
	if err != nil {
		return "", errors.Wrapf(ErrDecrypt, "%s with key %s: %s", full, keyID, err)
	}
	if !utf8.Valid(plain) {
		return "", errors.Wrapf(ErrDecrypt, "%s: plaintext is not utf-8", full)
	}
	return string(plain), nil
}

// instantiate creates a value of t, using factory when there is one.
// Structs created here get their defaults.
func instantiate(t reflect.Type, factory func() reflect.Value) reflect.Value {
	if factory != nil {
		return factory()
	}
	if t.Kind() == reflect.Ptr {
		p := reflect.New(t.Elem())
		setDefaults(p)
		return p
	}
	p := reflect.New(t)
	setDefaults(p)
	return p.Elem()
}

// newElement is the starting value for a map entry or collection
// element.  Struct values get their defaults like any other struct the
// binder creates.
func newElement(t reflect.Type) reflect.Value {
	if t.Kind() == reflect.Struct {
		return instantiate(t, nil)
	}
	return reflect.New(t).Elem()
}

func setDefaults(p reflect.Value) {
	if d, ok := p.Interface().(Defaulter); ok {
		d.SetDefaults()
	}
}

func checkRequired(required bool, full string, v reflect.Value) error {
	if !required {
		return nil
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		if v.Len() > 0 {
			return nil
		}
	default:
		if !v.IsZero() {
			return nil
		}
	}
	return RequiredError(full)
}
