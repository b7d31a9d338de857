package nbind

import (
	"encoding"
	"fmt"
	"net/netip"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/muir/commonerrors"
	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
)

// ParseFunc converts configuration text into a value of the registered type
type ParseFunc func(text string) (interface{}, error)

// FormatFunc converts a value of the registered type back into text
// that ParseFunc accepts.
type FormatFunc func(value interface{}) string

type codec struct {
	parse  ParseFunc
	format FormatFunc
}

type subtype struct {
	id      string
	typ     reflect.Type
	factory func() reflect.Value
}

// Registry knows which types are simple (bound from a single string)
// and which concrete types can stand in for an interface or pointer
// type when a configuration selects one.
//
// A Registry is safe for concurrent use.  Registration is expected
// to happen at startup but is not required to.
type Registry struct {
	lock     sync.RWMutex
	codecs   map[reflect.Type]codec
	subtypes map[reflect.Type][]subtype
}

var (
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	stringerType        = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// NewRegistry returns a registry that already knows the builtin scalar
// types, time.Duration, Address, FilePath, url.URL, netip.AddrPort and
// uuid.UUID.
func NewRegistry() *Registry {
	r := &Registry{
		codecs:   make(map[reflect.Type]codec),
		subtypes: make(map[reflect.Type][]subtype),
	}
	for _, t := range []reflect.Type{
		reflect.TypeOf(""),
		reflect.TypeOf(false),
		reflect.TypeOf(int(0)),
		reflect.TypeOf(int8(0)),
		reflect.TypeOf(int16(0)),
		reflect.TypeOf(int32(0)),
		reflect.TypeOf(int64(0)),
		reflect.TypeOf(uint(0)),
		reflect.TypeOf(uint8(0)),
		reflect.TypeOf(uint16(0)),
		reflect.TypeOf(uint32(0)),
		reflect.TypeOf(uint64(0)),
		reflect.TypeOf(float32(0)),
		reflect.TypeOf(float64(0)),
	} {
		r.Register(t, kindParser(t), nil)
	}
	RegisterType(r, time.ParseDuration, time.Duration.String)
	RegisterType(r, ParseAddress, Address.String)
	RegisterType(r, ParseFilePath, FilePath.String)
	RegisterType(r, func(s string) (url.URL, error) {
		u, err := url.Parse(s)
		if err != nil {
			return url.URL{}, err
		}
		return *u, nil
	}, func(u url.URL) string {
		return u.String()
	})
	RegisterType(r, func(s string) (netip.AddrPort, error) {
		if s == "" {
			return netip.AddrPort{}, nil
		}
		return netip.ParseAddrPort(s)
	}, func(a netip.AddrPort) string {
		if !a.IsValid() {
			return ""
		}
		return a.String()
	})
	RegisterType(r, uuid.Parse, uuid.UUID.String)
	return r
}

// Register adds (or replaces) the conversions for t.  A nil format means
// values are formatted with their String method when they have one and
// with fmt otherwise.
func (r *Registry) Register(t reflect.Type, parse ParseFunc, format FormatFunc) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.codecs[t] = codec{
		parse:  parse,
		format: format,
	}
}

// RegisterType is the typed form of Register
func RegisterType[T any](r *Registry, parse func(string) (T, error), format func(T) string) {
	var f FormatFunc
	if format != nil {
		f = func(v interface{}) string {
			return format(v.(T))
		}
	}
	r.Register(reflect.TypeOf((*T)(nil)).Elem(), func(s string) (interface{}, error) {
		v, err := parse(s)
		if err != nil {
			return nil, err
		}
		return v, nil
	}, f)
}

func (r *Registry) codec(t reflect.Type) (codec, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	c, ok := r.codecs[t]
	return c, ok
}

// IsSimple reports whether values of t are bound from a single string.
// Registered types, enums, types whose underlying kind is a builtin
// scalar, and encoding.TextUnmarshaler implementations are simple.
func (r *Registry) IsSimple(t reflect.Type) bool {
	if _, ok := r.codec(t); ok {
		return true
	}
	if _, ok := enumValues(t); ok {
		return true
	}
	if isScalarKind(t.Kind()) {
		return true
	}
	return t.Kind() != reflect.Interface && reflect.PtrTo(t).Implements(textUnmarshalerType)
}

// Parse converts text into a value of type t
func (r *Registry) Parse(t reflect.Type, text string) (reflect.Value, error) {
	if c, ok := r.codec(t); ok {
		i, err := c.parse(text)
		if err != nil {
			return reflect.Value{}, err
		}
		v := reflect.ValueOf(i)
		switch {
		case !v.IsValid():
			return reflect.Zero(t), nil
		case v.Type() == t:
			return v, nil
		case v.Type().ConvertibleTo(t):
			return v.Convert(t), nil
		default:
			return reflect.Value{}, commonerrors.ProgrammerError(errors.Errorf("parser registered for %s returned %s", t, v.Type()))
		}
	}
	if values, ok := enumValues(t); ok {
		names := make([]string, len(values))
		for i, v := range values {
			names[i] = v.Interface().(fmt.Stringer).String()
			if names[i] == text {
				return v, nil
			}
		}
		return reflect.Value{}, errors.Wrapf(ErrUnknownEnum, "no %s constant named '%s' (want one of %s)",
			t, text, strings.Join(names, ", "))
	}
	if t.Kind() != reflect.Interface && reflect.PtrTo(t).Implements(textUnmarshalerType) {
		p := reflect.New(t)
		err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text))
		if err != nil {
			return reflect.Value{}, errors.WithStack(err)
		}
		return p.Elem(), nil
	}
	if isScalarKind(t.Kind()) {
		v := reflect.New(t).Elem()
		if err := kindSetter(t)(v, text); err != nil {
			return reflect.Value{}, err
		}
		return v, nil
	}
	return reflect.Value{}, errors.Wrapf(ErrUnsupportedType, "%s is not a simple type", t)
}

// Format converts a value of a simple type back to text
func (r *Registry) Format(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if c, ok := r.codec(v.Type()); ok && c.format != nil {
		return c.format(v.Interface())
	}
	i := v.Interface()
	switch t := i.(type) {
	case encoding.TextMarshaler:
		b, err := t.MarshalText()
		if err == nil {
			return string(b)
		}
	case fmt.Stringer:
		return t.String()
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	if v.CanAddr() && v.Addr().Type().Implements(textMarshalerType) {
		b, err := v.Addr().Interface().(encoding.TextMarshaler).MarshalText()
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(i)
}

// RegisterSubtype makes the value returned by factory selectable for
// configuration fields declared as I.  A configuration selects it either
// with "@id" or with the full name of the concrete type, for example
// "github.com/example/app.LocalStore" or "*github.com/example/app.LocalStore".
func RegisterSubtype[I any](r *Registry, id string, factory func() I) error {
	declared := reflect.TypeOf((*I)(nil)).Elem()
	sample := reflect.ValueOf(factory())
	if !sample.IsValid() {
		return commonerrors.ProgrammerError(errors.Errorf("factory for subtype %s of %s returned nil", id, declared))
	}
	return r.RegisterSubtype(declared, id, sample.Type(), func() reflect.Value {
		return reflect.ValueOf(factory())
	})
}

// RegisterSubtype is the reflective form of the generic RegisterSubtype.
// Values returned by factory must have type concrete.
func (r *Registry) RegisterSubtype(declared reflect.Type, id string, concrete reflect.Type, factory func() reflect.Value) error {
	if id == "" || strings.ContainsAny(id, "@,. ") {
		return commonerrors.ProgrammerError(errors.Errorf("invalid subtype id '%s' for %s", id, declared))
	}
	if !concrete.AssignableTo(declared) {
		return commonerrors.ProgrammerError(errors.Errorf("subtype %s (%s) is not assignable to %s", id, concrete, declared))
	}
	if !isStructish(concrete) {
		return commonerrors.ProgrammerError(errors.Errorf("subtype %s (%s) of %s must be a struct or pointer to struct", id, concrete, declared))
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, s := range r.subtypes[declared] {
		if s.id == id {
			return commonerrors.ProgrammerError(errors.Errorf("subtype id %s already registered for %s", id, declared))
		}
	}
	r.subtypes[declared] = append(r.subtypes[declared], subtype{
		id:      id,
		typ:     concrete,
		factory: factory,
	})
	debug("register subtype", declared, id, concrete)
	return nil
}

// lookupSubtype resolves a selector: "@id" or a full type name.
func (r *Registry) lookupSubtype(declared reflect.Type, selector string) (subtype, error) {
	r.lock.RLock()
	candidates := r.subtypes[declared]
	r.lock.RUnlock()
	if id := strings.TrimPrefix(selector, "@"); id != selector {
		for _, s := range candidates {
			if s.id == id {
				return s, nil
			}
		}
		return subtype{}, errors.Wrapf(ErrNoSubtype, "no subtype with id %s for %s", selector, declared)
	}
	for _, s := range candidates {
		if typeName(s.typ) == selector || s.typ.String() == selector {
			return s, nil
		}
	}
	if declared.Kind() != reflect.Interface {
		static := declared
		if static.Kind() == reflect.Ptr {
			static = static.Elem()
		}
		for _, name := range []string{typeName(declared), declared.String(), typeName(static), static.String()} {
			if name == selector {
				return subtype{typ: declared}, nil
			}
		}
	}
	return subtype{}, errors.Wrapf(ErrNoSubtype, "no subtype named %s for %s", selector, declared)
}

// selectorFor returns the text that selects concrete for a field declared
// as declared: "@id" when concrete was registered with an id and the type
// name otherwise.
func (r *Registry) selectorFor(declared, concrete reflect.Type) string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, s := range r.subtypes[declared] {
		if s.typ == concrete {
			return "@" + s.id
		}
	}
	return typeName(concrete)
}

// Subtypes lists the ids registered for declared, sorted
func (r *Registry) Subtypes(declared reflect.Type) []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ids := make([]string, 0, len(r.subtypes[declared]))
	for _, s := range r.subtypes[declared] {
		ids = append(ids, s.id)
	}
	sort.Strings(ids)
	return ids
}

func typeName(t reflect.Type) string {
	if t.Kind() == reflect.Ptr && t.Name() == "" {
		return "*" + typeName(t.Elem())
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

func isStructish(t reflect.Type) bool {
	return t.Kind() == reflect.Struct || (t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct)
}

func kindSetter(t reflect.Type) func(reflect.Value, string) error {
	setter, err := reflectutils.MakeStringSetter(t)
	if err != nil {
		return func(reflect.Value, string) error {
			return errors.Wrapf(ErrUnsupportedType, "%s: %s", t, err)
		}
	}
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
	default:
		return setter
	}
	return func(v reflect.Value, text string) error {
		if err := checkRange(t, text); err != nil {
			return err
		}
		return setter(v, text)
	}
}

// checkRange rejects integers that do not fit in t.  The string setter
// parses with 64 bits and would otherwise truncate.
func checkRange(t reflect.Type, text string) error {
	var err error
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		_, err = strconv.ParseInt(text, 10, t.Bits())
	default:
		_, err = strconv.ParseUint(text, 10, t.Bits())
	}
	if errors.Is(err, strconv.ErrRange) {
		return errors.Errorf("%s does not fit in %s", text, t)
	}
	return nil
}

func kindParser(t reflect.Type) ParseFunc {
	setter := kindSetter(t)
	return func(text string) (interface{}, error) {
		v := reflect.New(t).Elem()
		if err := setter(v, text); err != nil {
			return nil, err
		}
		return v.Interface(), nil
	}
}

// enumValues recognizes types with a String method and an EnumValues
// method that returns every constant of the type.
func enumValues(t reflect.Type) ([]reflect.Value, bool) {
	if t.Kind() == reflect.Interface || t.Kind() == reflect.Ptr || !t.Implements(stringerType) {
		return nil, false
	}
	m, ok := t.MethodByName("EnumValues")
	if !ok || m.Type.NumIn() != 1 || m.Type.NumOut() != 1 || m.Type.Out(0) != reflect.SliceOf(t) {
		return nil, false
	}
	list := reflect.Zero(t).Method(m.Index).Call(nil)[0]
	values := make([]reflect.Value, list.Len())
	for i := range values {
		values[i] = list.Index(i)
	}
	return values, true
}
