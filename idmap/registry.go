// Package idmap bridges the runtime type a database driver hands back for a
// generated key to the identifier type an entity declares.
//
// A Registry is a read-mostly table keyed by (database type, declared type).
// It is filled from Providers before first use and never changes after it has
// served its first lookup, so lookups need no locking.
package idmap

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
)

// Converter turns a value read from the database into the declared type.
type Converter interface {
	ToObject(src any) (any, error)
}

// ConverterFunc adapts a plain function to Converter.
type ConverterFunc func(src any) (any, error)

// ToObject calls f(src).
func (f ConverterFunc) ToObject(src any) (any, error) {
	return f(src)
}

// Mapping is one registry entry.
type Mapping struct {
	DBType       reflect.Type
	DeclaredType reflect.Type
	Converter    Converter
}

func (m Mapping) String() string {
	return fmt.Sprintf("%s -> %s", typeName(m.DBType), typeName(m.DeclaredType))
}

// Provider contributes a batch of mappings.
type Provider interface {
	Mappings() []Mapping
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func() []Mapping

// Mappings calls f().
func (f ProviderFunc) Mappings() []Mapping {
	return f()
}

type pair struct {
	db, declared reflect.Type
}

// Registry maps (database type, declared type) pairs to converters.
type Registry struct {
	mu      sync.Mutex
	sealed  atomic.Bool
	entries map[pair]Mapping
}

// New builds a registry from the given providers. Two providers supplying a
// converter for the same pair is a configuration error and is reported here,
// at construction, rather than resolved silently.
func New(providers ...Provider) (*Registry, error) {
	r := &Registry{entries: make(map[pair]Mapping)}
	for _, p := range providers {
		for _, m := range p.Mappings() {
			if err := r.add(m); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Register adds one converter. It fails with a *ConflictError if the pair is
// already taken and with ErrSealed after the registry served a lookup.
func (r *Registry) Register(dbType, declaredType reflect.Type, converter Converter) error {
	return r.add(Mapping{DBType: dbType, DeclaredType: declaredType, Converter: converter})
}

func (r *Registry) add(m Mapping) error {
	if m.DBType == nil || m.DeclaredType == nil || m.Converter == nil {
		return fmt.Errorf("idmap: incomplete mapping %s", m)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return ErrSealed
	}
	key := pair{m.DBType, m.DeclaredType}
	if _, ok := r.entries[key]; ok {
		return &ConflictError{DBType: m.DBType, DeclaredType: m.DeclaredType}
	}
	r.entries[key] = m
	return nil
}

func (r *Registry) seal() {
	if r.sealed.Load() {
		return
	}
	r.mu.Lock()
	r.sealed.Store(true)
	r.mu.Unlock()
}

// Lookup returns the converter for the pair or a *MappingNotFoundError naming
// both types.
func (r *Registry) Lookup(dbType, declaredType reflect.Type) (Converter, error) {
	r.seal()
	m, ok := r.entries[pair{dbType, declaredType}]
	if !ok {
		return nil, &MappingNotFoundError{DBType: dbType, DeclaredType: declaredType}
	}
	return m.Converter, nil
}

// Convert coerces src into declaredType. A value that already has the
// declared type is returned as is.
func (r *Registry) Convert(src any, declaredType reflect.Type) (any, error) {
	if src == nil {
		return nil, &ConversionError{Value: src, To: declaredType}
	}
	srcType := reflect.TypeOf(src)
	if srcType == declaredType {
		return src, nil
	}
	conv, err := r.Lookup(srcType, declaredType)
	if err != nil {
		return nil, err
	}
	return conv.ToObject(src)
}

// Mappings lists the registered entries ordered by database type, then by
// declared type.
func (r *Registry) Mappings() []Mapping {
	r.mu.Lock()
	out := make([]Mapping, 0, len(r.entries))
	for _, m := range r.entries {
		out = append(out, m)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := typeName(out[i].DBType), typeName(out[j].DBType)
		if a != b {
			return a < b
		}
		return typeName(out[i].DeclaredType) < typeName(out[j].DeclaredType)
	})
	return out
}

// As converts src to T through the registry.
func As[T any](r *Registry, src any) (T, error) {
	var zero T
	v, err := r.Convert(src, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, &ConversionError{Value: src, To: reflect.TypeOf((*T)(nil)).Elem()}
	}
	return out, nil
}

// =====================================
// Provider discovery
// =====================================

var (
	providersMu sync.Mutex
	providers   []Provider

	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// RegisterProvider makes p part of the default registry. It is meant to be
// called from init functions; providers registered after Default has run are
// ignored.
func RegisterProvider(p Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers = append(providers, p)
}

// Default returns the process-wide registry, building it from every
// registered provider on first use.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		providersMu.Lock()
		ps := make([]Provider, len(providers))
		copy(ps, providers)
		providersMu.Unlock()

		defaultRegistry, defaultErr = New(ps...)
	})
	return defaultRegistry, defaultErr
}
