package nbind

import (
	"net"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// Address is a host and port, written as "host:port"
type Address struct {
	Host string
	Port int
}

// ParseAddress parses "host:port".  IPv6 hosts must be bracketed.
func ParseAddress(s string) (Address, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, errors.Wrapf(err, "parse address '%s'", s)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return Address{}, errors.Wrapf(err, "parse port of address '%s'", s)
	}
	if p < 0 || p > 65535 {
		return Address{}, errors.Errorf("port %d of address '%s' is out of range", p, s)
	}
	return Address{Host: host, Port: p}, nil
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// FilePath is a filesystem path
type FilePath string

func ParseFilePath(s string) (FilePath, error) {
	if s == "" {
		return "", nil
	}
	return FilePath(filepath.Clean(s)), nil
}

func (p FilePath) String() string { return string(p) }

// Defaulter is implemented by models that fill in their own defaults.
// SetDefaults is called on every struct the binder or exporter creates,
// before any configuration is applied to it.
type Defaulter interface {
	SetDefaults()
}

// Initializer is implemented by models that need to do work once they
// have been bound.  Init is called after all of the fields of the model
// (including nested models) have been bound.
type Initializer interface {
	Init() error
}

// Validate is a subset of the Validate provided by
// https://github.com/go-playground/validator, allowing
// other implementations to be provided if desired
type Validate interface {
	Struct(s interface{}) error
}
