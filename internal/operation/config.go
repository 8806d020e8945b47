package operation

import (
	"fmt"
	"strconv"
)

// MergeConfig layers configuration maps. Earlier layers win: a key is taken
// from the first layer that has it. The result is a new map.
func MergeConfig(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out
}

// ConfigString returns cfg[key] as a string, or fallback when absent.
func ConfigString(cfg map[string]any, key, fallback string) string {
	v, ok := cfg[key]
	if !ok || v == nil {
		return fallback
	}
	if s, isString := v.(string); isString {
		return s
	}
	return fmt.Sprint(v)
}

// ConfigBool returns cfg[key] as a bool. Strings are parsed with strconv.ParseBool.
func ConfigBool(cfg map[string]any, key string, fallback bool) (bool, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return fallback, fmt.Errorf("config %q: %w", key, err)
		}
		return parsed, nil
	default:
		return fallback, fmt.Errorf("config %q: expected bool, got %T", key, v)
	}
}
