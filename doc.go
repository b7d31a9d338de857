/*
Package nbind uses reflection to bind hierarchical key/value configuration
onto structs, and to go the other way: write a commented template of the
configuration a struct expects.

Configuration comes from an nstore.Store.  Stores are usually built with
nstore.Load() from .properties, .toml, .hcl, .yaml, or .json files, or
from a plain map with FromMap().

Create a Binder with NewBinder() and call Bind() with a pointer to a
struct, or use Get() to create and bind in one step.  Only fields with a
"config" tag are bound:

	type Server struct {
		Name    string        `config:"name,required" desc:"name of this server"`
		Listen  nbind.Address `config:"listen"`
		Timeout time.Duration `config:",optional"`
		Store   Storage       `config:"store"`
		Peers   []nbind.Address `config:"peers"`
		Limits  map[string]int  `config:"limits"`
	}

The general form of the tag is config:"name,required,encrypted=keyID".

The name parameter, which is always first, is the key.  If you want to
derive the key from the field name, leave the name parameter empty.  Do
not skip it!  A comma is good enough.  Derived keys are lower case with
hyphens between words: TimeoutMs becomes timeout-ms.  Use "-" to skip a
field.

Keys are dotted paths: the Name field of a struct bound at "server" has
the key "server.name".

Required fields must end up with a value: either from the configuration
or a non-zero value that the struct already had.  Missing required
values are reported with their full key: "server.name is required".

Encrypted fields hold base64 encoded ciphertext.  They are decrypted with
the Decrypter provided with WithDecrypter().

Which types can be bound from a single string is decided by a Registry.
Use RegisterType() to add more.  Types with an EnumValues() method that
returns every value of the type are bound by matching String().

Fields declared as an interface (or a pointer) can be bound to any type
registered with RegisterSubtype().  The value at the field's own key picks
the type:

	store=@local
	store.path=/var/lib/data

Use NewExporter() to produce a template from defaults:

	nbind.NewExporter().ExportTo(os.Stdout, &Server{Name: "example"})

Debugging output for the binding process can be enabled with the build
tag "debugNbind".
*/
package nbind
