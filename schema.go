package nbind

import (
	"reflect"
	"strings"
	"sync"

	"github.com/AlekSi/pointer"
	"github.com/muir/commonerrors"
	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
)

// TagName is the struct tag that marks a field as configuration.
// The first, positional, value is the key.  When it is empty, the
// key is derived from the field name: HelloWorld becomes hello-world.
// "-" excludes the field.
//
//	Port     int    `config:"port,required"`
//	Password string `config:",encrypted=main"`
//
// The description of a field, used when exporting a template, comes
// from a separate tag:
//
//	Port int `config:"port" desc:"port to listen on"`
const TagName = "config"

// DescTag holds field descriptions
const DescTag = "desc"

type configTag struct {
	Name      string `pt:"0"`
	Required  *bool  `pt:"required,!optional"`
	Encrypted string `pt:"encrypted"`
}

// Field describes one configuration field of a model
type Field struct {
	Name      string // Go field name
	Key       string // key relative to the enclosing model
	Required  bool
	Desc      string
	Encrypted string // key id, empty when the field is not encrypted
	Type      reflect.Type
	index     []int
}

type model struct {
	fields []Field
}

var models sync.Map // reflect.Type -> *model

// describe is cached per type.  Tag mistakes are programmer errors.
func describe(t reflect.Type) (*model, error) {
	if m, ok := models.Load(t); ok {
		return m.(*model), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, commonerrors.ProgrammerError(errors.Errorf("%s is not a struct", t))
	}
	m := &model{}
	err := describeInto(t, nil, m)
	if err != nil {
		return nil, err
	}
	actual, _ := models.LoadOrStore(t, m)
	return actual.(*model), nil
}

func describeInto(t reflect.Type, prefix []int, m *model) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := make([]int, len(prefix), len(prefix)+1)
		copy(index, prefix)
		index = append(index, i)
		raw, tagged := f.Tag.Lookup(TagName)
		if !tagged {
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				if err := describeInto(f.Type, index, m); err != nil {
					return err
				}
			}
			continue
		}
		if raw == "-" {
			continue
		}
		if !f.IsExported() {
			return commonerrors.ProgrammerError(errors.Errorf("%s.%s is tagged for configuration but is not exported", t, f.Name))
		}
		var tag configTag
		err := reflectutils.SplitTag(f.Tag).Set().Get(TagName).Fill(&tag)
		if err != nil {
			return commonerrors.ProgrammerError(errors.Wrapf(err, "%s.%s", t, f.Name))
		}
		key := tag.Name
		if key == "" {
			key = hyphenate(f.Name)
		}
		if strings.Contains(key, ".") {
			return commonerrors.ProgrammerError(errors.Wrapf(ErrMalformedKey, "%s.%s key '%s'", t, f.Name, key))
		}
		if tag.Encrypted != "" && reflectutils.NonPointer(f.Type).Kind() != reflect.String {
			return commonerrors.ProgrammerError(errors.Errorf("%s.%s is encrypted but is not a string", t, f.Name))
		}
		m.fields = append(m.fields, Field{
			Name:      f.Name,
			Key:       key,
			Required:  pointer.GetBool(tag.Required),
			Desc:      f.Tag.Get(DescTag),
			Encrypted: tag.Encrypted,
			Type:      f.Type,
			index:     index,
		})
	}
	return nil
}

type shape int

const (
	unsupportedShape shape = iota
	scalarShape
	collectionShape
	setShape
	mapShape
	objectShape
)

func (s shape) String() string {
	switch s {
	case scalarShape:
		return "scalar"
	case collectionShape:
		return "collection"
	case setShape:
		return "set"
	case mapShape:
		return "map"
	case objectShape:
		return "object"
	}
	return "unsupported"
}

var emptyStructType = reflect.TypeOf(struct{}{})

// classify decides how values of t are bound
func (r *Registry) classify(t reflect.Type) shape {
	switch {
	case r.IsSimple(t):
		return scalarShape
	case t.Kind() == reflect.Ptr && r.IsSimple(t.Elem()):
		return scalarShape
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		switch r.classify(t.Elem()) {
		case scalarShape, objectShape:
			return collectionShape
		}
	case reflect.Map:
		if !r.IsSimple(t.Key()) {
			return unsupportedShape
		}
		if t.Elem() == emptyStructType {
			return setShape
		}
		if r.classify(t.Elem()) != unsupportedShape {
			return mapShape
		}
	case reflect.Struct, reflect.Interface:
		return objectShape
	case reflect.Ptr:
		if t.Elem().Kind() == reflect.Struct {
			return objectShape
		}
	}
	return unsupportedShape
}

// elementShape is the shape of the elements of a collection, set or map
func (r *Registry) elementShape(t reflect.Type) shape {
	return r.classify(t.Elem())
}

func unsupported(t reflect.Type, where string) error {
	return commonerrors.ProgrammerError(errors.Wrapf(ErrUnsupportedType, "%s (%s)", t, where))
}
