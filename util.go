package nbind

import (
	"reflect"
	"strings"
	"unicode"
)

// hyphenate turns a Go field name into a configuration key:
// HelloWorld -> hello-world, HTTPServer -> http-server
func hyphenate(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsLower(prev), unicode.IsDigit(prev):
				b.WriteByte('-')
			case unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func clearMap(m reflect.Value) {
	for _, k := range m.MapKeys() {
		m.SetMapIndex(k, reflect.Value{})
	}
}
