package resourcez

import (
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
)

// Resource is an immutable set of attributes describing what produced a
// telemetry signal. All operations return new values; a Resource is never
// modified after construction. A nil *Resource behaves as Empty.
type Resource struct {
	attrs   map[string]any
	dropped int
}

var emptyResource = &Resource{attrs: map[string]any{}}

// Empty returns a resource with no attributes.
func Empty() *Resource {
	return emptyResource
}

// Default returns the baseline attributes every provider carries.
func Default() *Resource {
	return &Resource{attrs: map[string]any{
		ServiceNameKey: "unknown_service:" + executableName(),
		SDKNameKey:     "resourcez",
		SDKLanguageKey: "go",
		SDKVersionKey:  Version,
	}}
}

func executableName() string {
	exe, err := os.Executable()
	if err != nil || exe == "" {
		return "go"
	}
	return filepath.Base(exe)
}

// NewResource builds a resource from attrs. Values are normalized to string,
// bool, int64, float64 or a slice of one of those. Anything else is dropped
// and counted in Dropped.
func NewResource(attrs map[string]any) *Resource {
	r := &Resource{attrs: make(map[string]any, len(attrs))}
	for k, v := range attrs {
		if k == "" {
			r.dropped++
			continue
		}
		nv, ok := normalize(v)
		if !ok {
			r.dropped++
			continue
		}
		r.attrs[k] = nv
	}
	return r
}

// normalize converts v into its canonical attribute type, copying slices.
func normalize(v any) (any, bool) {
	switch val := v.(type) {
	case string, bool, int64, float64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint32:
		return int64(val), true
	case float32:
		return float64(val), true
	case []string:
		return slices.Clone(val), true
	case []bool:
		return slices.Clone(val), true
	case []int64:
		return slices.Clone(val), true
	case []float64:
		return slices.Clone(val), true
	case []int:
		out := make([]int64, len(val))
		for i, n := range val {
			out[i] = int64(n)
		}
		return out, true
	case []any:
		return normalizeSlice(val)
	default:
		return nil, false
	}
}

// normalizeSlice handles decoder output such as []interface{} from TOML or
// YAML. Elements must share one scalar type.
func normalizeSlice(vals []any) (any, bool) {
	if len(vals) == 0 {
		return []string{}, true
	}
	first, ok := normalize(vals[0])
	if !ok {
		return nil, false
	}
	switch first.(type) {
	case string:
		return collect[string](vals)
	case bool:
		return collect[bool](vals)
	case int64:
		return collect[int64](vals)
	case float64:
		return collect[float64](vals)
	default:
		return nil, false
	}
}

func collect[T string | bool | int64 | float64](vals []any) (any, bool) {
	out := make([]T, 0, len(vals))
	for _, v := range vals {
		nv, ok := normalize(v)
		if !ok {
			return nil, false
		}
		tv, ok := nv.(T)
		if !ok {
			return nil, false
		}
		out = append(out, tv)
	}
	return out, true
}

// copyValue returns v with slices cloned so callers cannot reach internal state.
func copyValue(v any) any {
	switch val := v.(type) {
	case []string:
		return slices.Clone(val)
	case []bool:
		return slices.Clone(val)
	case []int64:
		return slices.Clone(val)
	case []float64:
		return slices.Clone(val)
	default:
		return val
	}
}

// Merge returns the union of r and other. Values from other win, except that
// an empty string in other never replaces a non-empty value in r.
func (r *Resource) Merge(other *Resource) *Resource {
	if other.Len() == 0 && other.Dropped() == 0 {
		if r == nil {
			return Empty()
		}
		return r
	}
	if r.Len() == 0 && r.Dropped() == 0 {
		return other
	}

	merged := &Resource{
		attrs:   make(map[string]any, r.Len()+other.Len()),
		dropped: r.Dropped() + other.dropped,
	}
	if r != nil {
		maps.Copy(merged.attrs, r.attrs)
	}
	for k, v := range other.attrs {
		if s, ok := v.(string); ok && s == "" {
			if prev, exists := merged.attrs[k]; exists && !isEmptyString(prev) {
				continue
			}
		}
		merged.attrs[k] = v
	}
	return merged
}

func isEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s == ""
}

// Without returns a resource lacking the given keys. When none of the keys is
// present the receiver itself is returned.
func (r *Resource) Without(keys ...string) *Resource {
	if r == nil {
		return Empty()
	}
	present := false
	for _, k := range keys {
		if _, ok := r.attrs[k]; ok {
			present = true
			break
		}
	}
	if !present {
		return r
	}

	out := &Resource{attrs: maps.Clone(r.attrs), dropped: r.dropped}
	for _, k := range keys {
		delete(out.attrs, k)
	}
	return out
}

// Get returns the value stored under key.
func (r *Resource) Get(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.attrs[key]
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// Attributes returns a deep copy of all attributes.
func (r *Resource) Attributes() map[string]any {
	out := make(map[string]any, r.Len())
	if r == nil {
		return out
	}
	for k, v := range r.attrs {
		out[k] = copyValue(v)
	}
	return out
}

// Keys returns the attribute keys in sorted order.
func (r *Resource) Keys() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.attrs))
}

// Len returns the number of attributes.
func (r *Resource) Len() int {
	if r == nil {
		return 0
	}
	return len(r.attrs)
}

// Dropped returns how many attributes were rejected during construction.
func (r *Resource) Dropped() int {
	if r == nil {
		return 0
	}
	return r.dropped
}

// Equal reports whether both resources hold the same attributes.
func (r *Resource) Equal(other *Resource) bool {
	if r.Len() != other.Len() {
		return false
	}
	if r.Len() == 0 {
		return true
	}
	return maps.EqualFunc(r.attrs, other.attrs, func(a, b any) bool {
		return reflect.DeepEqual(a, b)
	})
}

// String renders the attributes as sorted key=value pairs.
func (r *Resource) String() string {
	keys := r.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, r.attrs[k]))
	}
	return strings.Join(parts, ",")
}

// Environment variables read by FromEnv.
const (
	EnvResourceAttributes = "OTEL_RESOURCE_ATTRIBUTES"
	EnvServiceName        = "OTEL_SERVICE_NAME"
)

// FromEnv builds a resource from OTEL_RESOURCE_ATTRIBUTES and
// OTEL_SERVICE_NAME. Malformed pairs are skipped.
func FromEnv() *Resource {
	attrs := parseAttributeList(os.Getenv(EnvResourceAttributes))
	if name := strings.TrimSpace(os.Getenv(EnvServiceName)); name != "" {
		attrs[ServiceNameKey] = name
	}
	if len(attrs) == 0 {
		return Empty()
	}
	return NewResource(attrs)
}

// parseAttributeList parses "k1=v1,k2=v2" with percent-encoded values.
func parseAttributeList(raw string) map[string]any {
	attrs := make(map[string]any)
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		decoded, err := url.PathUnescape(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		attrs[key] = decoded
	}
	return attrs
}
