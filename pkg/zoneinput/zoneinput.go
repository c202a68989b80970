package zoneinput

import (
	"context"
	"encoding/json"
	"fmt"
)

// Fetcher is the capability interface a zone input variant implements: it
// validates its own opaque configuration and knows how to retrieve the
// current zone content. New variants register a FactoryFunc under their
// input_type name; the rest of the system only ever depends on this
// interface, never on a concrete type.
type Fetcher interface {
	// Validate checks that data is well-formed for this variant. The
	// variant's FactoryFunc calls it when Registry.Build constructs the
	// zone's Fetcher.
	Validate(data json.RawMessage) error

	// Fetch retrieves the current zone content (typically a master file).
	Fetch(ctx context.Context) (string, error)
}

// FactoryFunc builds a Fetcher for one zone from its input_type-specific
// configuration and the zone's name.
type FactoryFunc func(zoneName string, data json.RawMessage) (Fetcher, error)

// Registry maps input_type names to the factory that builds a Fetcher for
// them, mirroring the teacher's pattern of a Checker interface with one
// concrete implementation per check type.
type Registry struct {
	factories map[string]FactoryFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FactoryFunc)}
}

// Register adds a variant under the given input_type name.
func (r *Registry) Register(inputType string, factory FactoryFunc) {
	r.factories[inputType] = factory
}

// Build constructs the Fetcher for a zone's configured input_type,
// validating data against that variant's rules first.
func (r *Registry) Build(inputType, zoneName string, data json.RawMessage) (Fetcher, error) {
	factory, ok := r.factories[inputType]
	if !ok {
		return nil, fmt.Errorf("zoneinput: unknown input_type %q", inputType)
	}
	return factory(zoneName, data)
}

// Default returns a Registry with every variant this build of ORR ships
// registered.
func Default() *Registry {
	r := NewRegistry()
	r.Register(InputTypeLimPluginDNS, NewLimPluginDNSFetcher)
	return r
}
