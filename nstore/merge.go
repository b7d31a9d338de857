package nstore

import (
	"log/slog"
	"sort"
)

// overrideFlat copies src into dst, logging every key that replaces
// an existing value.
func overrideFlat(logger *slog.Logger, dst map[string]string, src map[string]string) {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := dst[k]; ok {
			logger.Info("override configuration", "key", k, "value", src[k])
		}
		dst[k] = src[k]
	}
}

// DeepMerge recursively merges src into dst.  Values in src override
// values in dst.  Tables are merged recursively; anything else is
// replaced.
func DeepMerge(dst, src map[string]any) map[string]any {
	return deepMerge(nil, "", dst, src)
}

func deepMerge(logger *slog.Logger, base string, dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, srcVal := range src {
		dstVal, exists := dst[key]
		if !exists {
			dst[key] = srcVal
			continue
		}
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dstVal.(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = deepMerge(logger, base+key+Separator, dstMap, srcMap)
			continue
		}
		if logger != nil {
			logger.Info("override configuration", "key", base+key, "value", srcVal)
		}
		dst[key] = srcVal
	}
	return dst
}
