package nbind

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type Mode int

const (
	Standalone Mode = iota
	Cluster
)

func (m Mode) String() string {
	switch m {
	case Standalone:
		return "STANDALONE"
	case Cluster:
		return "CLUSTER"
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

func (Mode) EnumValues() []Mode { return []Mode{Standalone, Cluster} }

type Storage interface {
	Kind() string
}

type LocalStorage struct {
	Path     FilePath `config:"path"`
	Capacity int      `config:"capacity"`
}

func (*LocalStorage) Kind() string { return "local" }

type RemoteStorage struct {
	Endpoint Address       `config:"endpoint,required"`
	Timeout  time.Duration `config:"timeout"`
}

func (*RemoteStorage) Kind() string { return "remote" }

// MemoryStorage is never registered
type MemoryStorage struct {
	Size int `config:"size"`
}

func (*MemoryStorage) Kind() string { return "memory" }

type Owner struct {
	Name string `config:"name"`
	Mail string `config:"mail"`
}

func testRegistry(t *testing.T) *Registry {
	r := NewRegistry()
	require.NoError(t, RegisterSubtype(r, "local", func() Storage { return &LocalStorage{} }), "local")
	require.NoError(t, RegisterSubtype(r, "remote", func() Storage {
		return &RemoteStorage{Timeout: 5 * time.Second}
	}), "remote")
	return r
}
