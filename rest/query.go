package rest

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Args are query or form arguments. Nested maps and slices are flattened
// into bracketed keys: {"a": []any{1, 2}} encodes as a[0]=1&a[1]=2 and
// {"f": map[string]any{"x": 1}} as f[x]=1. Booleans encode as 1 and 0 and
// nil values are skipped.
type Args map[string]any

// Encode returns args in application/x-www-form-urlencoded form with keys
// sorted.
func (a Args) Encode() string {
	pairs := a.pairs()
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = url.QueryEscape(p.key) + "=" + url.QueryEscape(p.value)
	}
	return strings.Join(parts, "&")
}

// Values returns the flattened arguments as url.Values.
func (a Args) Values() url.Values {
	v := make(url.Values)
	for _, p := range a.pairs() {
		v.Add(p.key, p.value)
	}
	return v
}

type pair struct {
	key   string
	value string
}

func (a Args) pairs() []pair {
	var out []pair
	for _, k := range sortedKeys(a) {
		flatten(k, a[k], &out)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func flatten(key string, v any, out *[]pair) {
	switch t := v.(type) {
	case nil:
		return
	case string:
		*out = append(*out, pair{key, t})
	case bool:
		*out = append(*out, pair{key, boolArg(t)})
	case fmt.Stringer:
		*out = append(*out, pair{key, t.String()})
	case Args:
		for _, k := range sortedKeys(t) {
			flatten(key+"["+k+"]", t[k], out)
		}
	case map[string]any:
		flatten(key, Args(t), out)
	case map[string]string:
		for _, k := range sortedKeys(t) {
			*out = append(*out, pair{key + "[" + k + "]", t[k]})
		}
	case []string:
		for i, s := range t {
			*out = append(*out, pair{key + "[" + strconv.Itoa(i) + "]", s})
		}
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				flatten(key+"["+strconv.Itoa(i)+"]", rv.Index(i).Interface(), out)
			}
		case reflect.Pointer:
			if rv.IsNil() {
				return
			}
			flatten(key, rv.Elem().Interface(), out)
		default:
			*out = append(*out, pair{key, fmt.Sprint(v)})
		}
	}
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
