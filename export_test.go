package nbind

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mohae/deepcopy"
	"github.com/muir/nbind/nstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportModel() *serverConfig {
	weight := 4
	return &serverConfig{
		Port:    8080,
		Weight:  &weight,
		Limits:  Limits{Max: 3},
		Tags:    []string{"a", "b"},
		Ports:   map[int]struct{}{443: {}, 80: {}},
		Labels:  map[string]string{"b": "2", "a": "1"},
		Groups:  map[string][]int{"g": {1, 2}},
		Storage: &RemoteStorage{Endpoint: Address{Host: "127.0.0.1", Port: 9527}, Timeout: time.Second},
		Backups: []Storage{&LocalStorage{Path: "/a"}},
		Stores:  map[string]Storage{"x": &LocalStorage{Path: "/x"}},
		Owners:  map[string]Owner{"alice": {Name: "Alice"}},
		Admins:  []Owner{{Name: "Z"}},
	}
}

func TestExportItems(t *testing.T) {
	items, err := NewExporter(WithRegistry(testRegistry(t))).Export(exportModel())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"admins", "admins.0.mail", "admins.0.name",
		"backups", "backups.0", "backups.0.capacity", "backups.0.path",
		"debug", "endpoint", "groups.g", "labels.a", "labels.b",
		"limits.max", "limits.min", "mode", "name", "offset",
		"owner", "owner.mail", "owner.name",
		"owners.alice", "owners.alice.mail", "owners.alice.name",
		"port", "ports", "ratio",
		"storage", "storage.endpoint", "storage.timeout",
		"stores.x", "stores.x.capacity", "stores.x.path",
		"tags", "timeout", "weight",
	}, items.Keys())

	text := func(key string) string {
		item, ok := items.Get(key)
		require.True(t, ok, key)
		return item.Text
	}
	for key, want := range map[string]string{
		"admins":           "0",
		"admins.0.name":    "Z",
		"backups":          "0",
		"backups.0":        "@local",
		"backups.0.path":   "/a",
		"debug":            "false",
		"endpoint":         ":0",
		"groups.g":         "1,2",
		"labels.a":         "1",
		"mode":             "STANDALONE",
		"owner":            "",
		"owners.alice":     "",
		"port":             "8080",
		"ports":            "443,80",
		"storage":          "@remote",
		"storage.endpoint": "127.0.0.1:9527",
		"storage.timeout":  "1s",
		"stores.x":         "@local",
		"tags":             "a,b",
		"timeout":          "0s",
		"weight":           "4",
	} {
		assert.Equal(t, want, text(key), key)
	}

	port, _ := items.Get("port")
	assert.True(t, port.Required)
	assert.Equal(t, 8080, port.Value)
	assert.Equal(t, "Port", port.Field.Name)
	name, _ := items.Get("name")
	assert.Equal(t, "server name", name.Field.Desc)
	limitMax, _ := items.Get("limits.max")
	assert.True(t, limitMax.Field.Required)
	assert.False(t, limitMax.Required, "limits itself is optional")
	endpoint, _ := items.Get("storage.endpoint")
	assert.False(t, endpoint.Required)
}

func TestExportRequiredPropagation(t *testing.T) {
	type inner struct {
		Value string `config:"value,required"`
		Other string `config:"other"`
	}
	type outer struct {
		Needed   inner  `config:"needed,required"`
		Optional inner  `config:"optional"`
		Ptr      *inner `config:"ptr,required"`
	}
	items, err := NewExporter().Export(outer{})
	require.NoError(t, err)
	for key, want := range map[string]bool{
		"needed.value":   true,
		"needed.other":   false,
		"optional.value": false,
		"optional.other": false,
		"ptr":            true,
		"ptr.value":      true,
	} {
		item, ok := items.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, want, item.Required, key)
	}
}

func TestExportDefaults(t *testing.T) {
	items, err := ExportType[serverConfig](NewExporter(WithRegistry(testRegistry(t))))
	require.NoError(t, err)
	for key, want := range map[string]string{
		"name":       "default",
		"timeout":    "1s",
		"limits.max": "10",
		"storage":    "",
		"weight":     "",
		"tags":       "",
		"backups":    "",
	} {
		item, ok := items.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, want, item.Text, key)
	}
	_, ok := items.Get("storage.path")
	assert.False(t, ok, "nil interfaces are not walked")
	weight, _ := items.Get("weight")
	assert.Nil(t, weight.Value)
}

func TestExportUnregisteredSubtype(t *testing.T) {
	c := exportModel()
	c.Storage = &MemoryStorage{Size: 3}
	items, err := NewExporter(WithRegistry(testRegistry(t))).Export(c)
	require.NoError(t, err)
	storage, _ := items.Get("storage")
	assert.Equal(t, "*github.com/muir/nbind.MemoryStorage", storage.Text)
	size, _ := items.Get("storage.size")
	assert.Equal(t, "3", size.Text)
}

func TestExportMapKeySets(t *testing.T) {
	items, err := NewExporter(WithRegistry(testRegistry(t)), WithMapKeySets(true)).Export(exportModel())
	require.NoError(t, err)
	for key, want := range map[string]string{
		"labels": "a,b",
		"groups": "g",
		"owners": "alice",
		"stores": "x",
	} {
		item, ok := items.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, want, item.Text, key)
	}
}

func TestExportDuplicate(t *testing.T) {
	var dup struct {
		A int `config:"port"`
		B int `config:"port"`
	}
	var buf bytes.Buffer
	err := NewExporter().ExportTo(&buf, &dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Contains(t, err.Error(), "[port]")
	assert.Zero(t, buf.Len(), "nothing written")
}

func TestExportLeavesModelAlone(t *testing.T) {
	c := exportModel()
	snapshot := deepcopy.Copy(c).(*serverConfig)
	_, err := NewExporter(WithRegistry(testRegistry(t))).Export(c)
	require.NoError(t, err)
	assert.Nil(t, c.Owner)
	assert.Empty(t, cmp.Diff(snapshot, c, cmp.AllowUnexported(serverConfig{})))
}

func TestExportTemplate(t *testing.T) {
	type templateModel struct {
		Name string   `config:"name,required" desc:"server name\nshown in logs"`
		Port int      `config:"port"`
		Path FilePath `config:"path"`
	}
	var buf bytes.Buffer
	err := NewExporter().ExportTo(&buf, templateModel{
		Name: "my server",
		Port: 8080,
		Path: `C:\data`,
	})
	require.NoError(t, err)
	assert.Equal(t, `#
# server name
# shown in logs
#
name=my\ server

#path=C:\\data

#port=8080

`, buf.String())
}

// uncomment turns every commented out item of a template back into a
// live one
func uncomment(template string) string {
	lines := strings.Split(template, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "# ") && strings.Contains(line, "=") {
			lines[i] = line[1:]
		}
	}
	return strings.Join(lines, "\n")
}

func TestExportRoundTrip(t *testing.T) {
	registry := testRegistry(t)
	original := exportModel()
	original.Name = "my server\nC:\\x"
	original.Owner = &Owner{Name: "O", Mail: "o@example.com"}
	original.Mode = Cluster
	original.Ratio = 0.125

	var buf bytes.Buffer
	require.NoError(t, NewExporter(WithRegistry(registry)).ExportTo(&buf, original))

	values, err := nstore.ParseProperties([]byte(uncomment(buf.String())))
	require.NoError(t, err)
	bound, err := Get[serverConfig](NewBinder(nstore.NewFlatStore(values), WithRegistry(registry)))
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(original, bound, cmp.AllowUnexported(serverConfig{})))
}

func TestExportNestedMapRoundTrip(t *testing.T) {
	type nested struct {
		M     map[string]map[string]int `config:"m,required"`
		Empty map[string]map[string]int `config:"empty"`
	}
	original := nested{
		M: map[string]map[string]int{
			"a": {"x": 1, "y": 2},
			"b": {"z": 3},
		},
		Empty: map[string]map[string]int{"none": {}},
	}
	var buf bytes.Buffer
	require.NoError(t, NewExporter().ExportTo(&buf, original))
	assert.Contains(t, buf.String(), "\nm.a=x,y\n")
	assert.Contains(t, buf.String(), "\nm.a.x=1\n")

	values, err := nstore.ParseProperties([]byte(uncomment(buf.String())))
	require.NoError(t, err)
	var bound nested
	require.NoError(t, FromMap(values).Bind(&bound))
	assert.Equal(t, original, bound)
}
