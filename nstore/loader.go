package nstore

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/muir/nflex"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Format identifies the syntax of configuration files
type Format string

const (
	TOML       Format = "toml"
	Properties Format = "properties"
	HCL        Format = "hcl"
	YAML       Format = "yaml"
	JSON       Format = "json"
)

var extensions = map[string]Format{
	"toml":       TOML,
	"properties": Properties,
	"ini":        Properties,
	"hcl":        HCL,
	"yaml":       YAML,
	"yml":        YAML,
	"json":       JSON,
}

// FormatByExtension maps a file extension (with or without the leading
// dot, any case) to a Format.
func FormatByExtension(extension string) (Format, error) {
	format, ok := extensions[strings.ToLower(strings.TrimPrefix(extension, "."))]
	if !ok {
		return "", errors.Wrapf(ErrUnknownFormat, "unrecognized extension: %s", extension)
	}
	return format, nil
}

// Loader finds configuration files and turns them into a single Store.
type Loader struct {
	bundle fs.FS
	fsys   fs.FS
	logger *slog.Logger
}

type LoaderOpt func(*Loader)

// WithBundle provides files that ship with the program (usually an
// embed.FS).  Bundled files are preferred over files of the same name
// on the filesystem.
func WithBundle(bundle fs.FS) LoaderOpt {
	return func(l *Loader) {
		l.bundle = bundle
	}
}

// WithFS replaces the operating system filesystem.
func WithFS(fsys fs.FS) LoaderOpt {
	return func(l *Loader) {
		l.fsys = fsys
	}
}

func WithLogger(logger *slog.Logger) LoaderOpt {
	return func(l *Loader) {
		l.logger = logger
	}
}

func NewLoader(opts ...LoaderOpt) *Loader {
	l := &Loader{
		fsys:   unrestrictedFS{},
		logger: slog.Default(),
	}
	for _, f := range opts {
		f(l)
	}
	return l
}

// Load is NewLoader().Load(files...)
func Load(files ...string) (Store, error) {
	return NewLoader().Load(files...)
}

// Load reads files, all of which must share one extension, and
// combines them into one Store.  Later files override earlier ones.
func (l *Loader) Load(files ...string) (Store, error) {
	format, err := inferFormat(files)
	if err != nil {
		return nil, err
	}
	return l.LoadFormat(format, files...)
}

func inferFormat(files []string) (Format, error) {
	if len(files) == 0 {
		return "", errors.Wrap(ErrNotFound, "no configuration files provided")
	}
	seen := make(map[string]struct{})
	var extension string
	for _, file := range files {
		extension = strings.ToLower(strings.TrimPrefix(filepath.Ext(file), "."))
		seen[extension] = struct{}{}
	}
	if len(seen) != 1 {
		return "", errors.Wrapf(ErrAmbiguousFormat, "files %v do not share one extension", files)
	}
	return FormatByExtension(extension)
}

// LoadFormat reads files using an explicit format regardless of their
// extensions.
func (l *Loader) LoadFormat(format Format, files ...string) (Store, error) {
	if len(files) == 0 {
		return nil, errors.Wrap(ErrNotFound, "no configuration files provided")
	}
	switch format {
	case Properties:
		values := make(map[string]string)
		for _, file := range files {
			data, err := l.read(file)
			if err != nil {
				return nil, err
			}
			p, err := ParseProperties(data)
			if err != nil {
				return nil, errors.Wrapf(err, "parse %s", file)
			}
			overrideFlat(l.logger, values, p)
		}
		return NewFlatStore(values), nil
	case TOML, HCL:
		var table map[string]any
		for _, file := range files {
			data, err := l.read(file)
			if err != nil {
				return nil, err
			}
			var doc map[string]any
			if format == TOML {
				doc, err = l.parseTOML(file, data)
			} else {
				doc, err = parseHCL(l.logger, file, data)
			}
			if err != nil {
				return nil, err
			}
			table = deepMerge(l.logger, "", table, doc)
		}
		return NewTableStore(table), nil
	case YAML, JSON:
		sources := make([]nflex.Source, len(files))
		for i, file := range files {
			data, err := l.read(file)
			if err != nil {
				return nil, err
			}
			var source nflex.Source
			if format == YAML {
				source, err = nflex.UnmarshalYAML(data)
			} else {
				source, err = nflex.UnmarshalJSON(data)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "parse %s", file)
			}
			// a MultiSource answers from its first source that has a
			// key, so the last file goes first
			sources[len(files)-1-i] = source
		}
		return NewSourceStore(nflex.CombineSources(sources...)), nil
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "format '%s'", format)
	}
}

// parseTOML is permissive: a line that does not parse is logged and
// dropped, and the rest of the document is kept.  The document fails
// only when nothing in it can be read.
func (l *Loader) parseTOML(file string, data []byte) (map[string]any, error) {
	lines := strings.Split(string(data), "\n")
	var first error
	for {
		doc, err := decodeTOML(lines)
		if err == nil {
			if first != nil && len(doc) == 0 {
				return nil, errors.Wrapf(first, "parse %s", file)
			}
			return doc, nil
		}
		if first == nil {
			first = err
		}
		row := badLine(lines, err)
		l.logger.Warn("parse configuration failed", "file", file, "line", row, "error", err.Error())
		if row == 0 {
			return nil, errors.Wrapf(first, "parse %s", file)
		}
		lines[row-1] = ""
	}
}

func decodeTOML(lines []string) (map[string]any, error) {
	var doc map[string]any
	err := toml.Unmarshal([]byte(strings.Join(lines, "\n")), &doc)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	return doc, nil
}

// badLine returns the 1-based line that err is about, or 0 if that
// cannot be found.  Syntax errors carry their position.  Other errors,
// such as a key defined twice, belong to the first line whose prefix of
// the document fails without a syntax error.
func badLine(lines []string, err error) int {
	var decodeErr *toml.DecodeError
	row := 0
	if errors.As(err, &decodeErr) {
		row, _ = decodeErr.Position()
	} else {
		for i := 1; i <= len(lines); i++ {
			_, err := decodeTOML(lines[:i])
			if err != nil && !errors.As(err, &decodeErr) {
				row = i
				break
			}
		}
	}
	if row < 1 || row > len(lines) || strings.TrimSpace(lines[row-1]) == "" {
		return 0
	}
	return row
}

// read prefers the bundle over the filesystem and logs where the file
// was found.
func (l *Loader) read(file string) ([]byte, error) {
	if l.bundle != nil {
		data, err := fs.ReadFile(l.bundle, file)
		switch {
		case err == nil:
			l.logger.Info("load configuration", "file", file, "from", "bundle")
			return data, nil
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrInvalid):
			debug("not bundled", file)
		default:
			return nil, errors.Wrapf(err, "read bundled %s", file)
		}
	}
	data, err := fs.ReadFile(l.fsys, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, errors.Wrapf(ErrNotFound, "can not find configuration file: %s", file)
		}
		return nil, errors.Wrapf(err, "read %s", file)
	}
	l.logger.Info("load configuration", "file", file, "from", "filesystem")
	return data, nil
}

type unrestrictedFS struct{}

func (u unrestrictedFS) Open(name string) (fs.File, error) { return os.Open(name) }
