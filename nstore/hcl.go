package nstore

import (
	"log/slog"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
)

// parseHCL turns an HCL document into a table.  Attributes become
// values; blocks become tables keyed by their type and then by each
// label, so
//
//	server "alpha" {
//	  ip = "10.0.0.1"
//	}
//
// is the same as the TOML table [server.alpha].
//
// Parsing is permissive: diagnostics are logged and whatever the parser
// recovered is kept.  The document fails only when nothing was recovered.
func parseHCL(logger *slog.Logger, name string, data []byte) (map[string]any, error) {
	file, diags := hclsyntax.ParseConfig(data, name, hcl.InitialPos)
	logDiagnostics(logger, name, diags)
	if file == nil || file.Body == nil {
		return nil, errors.Wrapf(diags, "parse %s", name)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, errors.Errorf("parse %s: unexpected body type %T", name, file.Body)
	}
	table, err := bodyToTable(logger, name, body)
	if err != nil {
		return nil, err
	}
	if diags.HasErrors() && len(table) == 0 {
		return nil, errors.Wrapf(diags, "parse %s", name)
	}
	return table, nil
}

func bodyToTable(logger *slog.Logger, name string, body *hclsyntax.Body) (map[string]any, error) {
	table := make(map[string]any)
	for key, attr := range body.Attributes {
		value, diags := attr.Expr.Value(nil)
		logDiagnostics(logger, name, diags)
		if diags.HasErrors() {
			continue
		}
		native, err := ctyToNative(value)
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %s in %s", key, name)
		}
		table[key] = native
	}
	for _, block := range body.Blocks {
		sub, err := bodyToTable(logger, name, block.Body)
		if err != nil {
			return nil, err
		}
		path := append([]string{block.Type}, block.Labels...)
		target := table
		for _, p := range path[:len(path)-1] {
			next, ok := target[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				target[p] = next
			}
			target = next
		}
		last := path[len(path)-1]
		if existing, ok := target[last].(map[string]any); ok {
			target[last] = DeepMerge(existing, sub)
		} else {
			target[last] = sub
		}
	}
	return table, nil
}

func logDiagnostics(logger *slog.Logger, name string, diags hcl.Diagnostics) {
	for _, diag := range diags {
		switch diag.Severity {
		case hcl.DiagError:
			logger.Warn("parse configuration failed", "file", name, "error", diag.Error())
		case hcl.DiagWarning:
			logger.Warn("parse configuration", "file", name, "warning", diag.Error())
		}
	}
}

func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, accuracy := bf.Int64(); accuracy == 0 {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, e := it.Element()
			native, err := ctyToNative(e)
			if err != nil {
				return nil, err
			}
			slice = append(slice, native)
		}
		return slice, nil
	case ty.IsObjectType() || ty.IsMapType():
		table := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, e := it.Element()
			native, err := ctyToNative(e)
			if err != nil {
				return nil, errors.Wrapf(err, "in attribute '%s'", k.AsString())
			}
			table[k.AsString()] = native
		}
		return table, nil
	default:
		return nil, errors.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
