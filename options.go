package nbind

import (
	"log/slog"
)

type options struct {
	registry   *Registry
	decrypter  Decrypter
	validator  Validate
	logger     *slog.Logger
	mapKeySets bool
}

// Option configures a Binder or an Exporter.  Options that do not apply
// to what is being built are ignored.
type Option func(*options)

// WithRegistry provides the registry of simple types and subtypes.
// Without it, a fresh NewRegistry() is used.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithDecrypter provides the decrypter for fields tagged encrypted=<keyID>.
// Without one, binding an encrypted field that has a value fails.
func WithDecrypter(d Decrypter) Option {
	return func(o *options) {
		o.decrypter = d
	}
}

// WithValidate runs v.Struct on the model after binding it
func WithValidate(v Validate) Option {
	return func(o *options) {
		o.validator = v
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMapKeySets makes the exporter also emit, for each map, an item
// at the map's own key listing the entry names.
func WithMapKeySets(b bool) Option {
	return func(o *options) {
		o.mapKeySets = b
	}
}

func makeOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
	}
	for _, f := range opts {
		f(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
