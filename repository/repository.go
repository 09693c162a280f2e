package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// IDKey is the document key carrying the repository-assigned identity.
const IDKey = "_id"

// ErrNotFound is returned when an update targets a document that does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a schemaless record stored in a sandbox.
type Document map[string]any

// ID returns the document identity, or an empty string for new documents.
func (d Document) ID() string {
	id, _ := d[IDKey].(string)
	return id
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Filter selects documents whose fields equal every given value.
type Filter map[string]any

// Matches reports whether doc satisfies every constraint in f.
func (f Filter) Matches(doc Document) bool {
	for k, want := range f {
		got, ok := doc[k]
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	return true
}

// Key returns a canonical representation of the filter, stable across map orderings.
// Values are tagged with their kind, so true and "true" produce different keys while
// numbers of different Go types that Matches treats as equal share one.
func (f Filter) Key() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte('=')
		b.WriteString(keyValue(f[k]))
	}
	return b.String()
}

func keyValue(v any) string {
	if n, ok := toFloat(v); ok {
		return "num:" + strconv.FormatFloat(n, 'g', -1, 64)
	}
	if s, ok := v.(string); ok {
		return "str:" + strconv.Quote(s)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// equalValues compares scalars, treating numbers of different Go types as equal
// when their float64 values are, since decoded JSON turns every number into float64.
func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Accessor reads and writes documents within one sandbox.
type Accessor interface {
	// Search returns the documents matching filter in insertion order.
	Search(ctx context.Context, filter Filter) ([]Document, error)
	// Save inserts doc when it carries no id and merges it into the stored
	// document otherwise. It returns the document identity.
	Save(ctx context.Context, doc Document) (string, error)
	// RemoveSelection deletes every document matching filter and returns how many were removed.
	RemoveSelection(ctx context.Context, filter Filter) (int, error)
}

// Repository hands out accessors bound to a storage sandbox.
type Repository interface {
	Of(sandbox string) Accessor
}
