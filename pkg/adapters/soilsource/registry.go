package soilsource

import (
	"fmt"
	"sort"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
)

// Registry dispatches a source name to its adapter. It is built once at
// startup and read-only afterwards.
type Registry struct {
	adapters map[Code]Adapter
}

// NewRegistry registers adapters by their Info().Code. A later adapter with
// the same code replaces an earlier one.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Code]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Info().Code] = a
	}
	return r
}

// NewDefaultRegistry covers every Code in AllCodes.
func NewDefaultRegistry() *Registry {
	return NewRegistry(NewIRD(), NewAFSP(), NewWOSIS())
}

// Lookup returns the adapter for a source name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	if a, ok := r.adapters[Code(name)]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("source %q: %w", name, apperrors.ErrUnsupportedSource)
}

// Infos returns the registered adapters sorted by code.
func (r *Registry) Infos() []Info {
	result := make([]Info, 0, len(r.adapters))
	for _, a := range r.adapters {
		result = append(result, a.Info())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

// Validate returns the source names that have no adapter, in input order.
func (r *Registry) Validate(sourceNames []string) []string {
	var missing []string
	for _, name := range sourceNames {
		if _, ok := r.adapters[Code(name)]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
