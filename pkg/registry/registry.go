// Package registry implements the process-wide library registry (§4.6):
// a process-lifetime mapping from library id to library container.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ragcore/ragcore/internal/apierr"
	"github.com/ragcore/ragcore/internal/obslog"
	"github.com/ragcore/ragcore/pkg/index"
	"github.com/ragcore/ragcore/pkg/library"
)

// Registry is a process-wide id -> library container map, guarded by its
// own short-lived mutex. The registry lock is never held while
// library-level work executes: Get and operations derived from it release
// the lock once a handle is obtained (§5 registry lock).
type Registry struct {
	mu        sync.Mutex
	libraries map[string]*library.Library
	log       obslog.Logger
}

// New constructs an empty registry. Must be explicitly constructed at
// startup and torn down on shutdown (§9): it is never implicit ambient
// state.
func New(log obslog.Logger) *Registry {
	if log == nil {
		log = obslog.Nop()
	}
	return &Registry{
		libraries: make(map[string]*library.Library),
		log:       log,
	}
}

// Create allocates a fresh library id, constructs its container, and
// registers it.
func (r *Registry) Create(name string, indexType index.Type, params index.Params, metadata library.Metadata) (*library.Library, error) {
	id := uuid.NewString()
	if metadata.CreationTime.IsZero() {
		metadata.CreationTime = time.Now()
	}
	metadata.LastUpdate = metadata.CreationTime

	lib, err := library.New(id, name, indexType, params, metadata, r.log.With("library_id", id))
	if err != nil {
		return nil, apierr.Wrap("registry.create", err)
	}

	r.mu.Lock()
	r.libraries[id] = lib
	r.mu.Unlock()

	return lib, nil
}

// Get returns the library container for id.
func (r *Registry) Get(id string) (*library.Library, error) {
	r.mu.Lock()
	lib, exists := r.libraries[id]
	r.mu.Unlock()

	if !exists {
		return nil, apierr.Wrap("registry.get", apierr.ErrNotFound)
	}
	return lib, nil
}

// List returns every registered library container.
func (r *Registry) List() []*library.Library {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*library.Library, 0, len(r.libraries))
	for _, lib := range r.libraries {
		out = append(out, lib)
	}
	return out
}

// UpdateMetadata mutates the metadata of the named library's Username and
// Tags fields, bumping LastUpdate.
func (r *Registry) UpdateMetadata(id, username string, tags []string) error {
	lib, err := r.Get(id)
	if err != nil {
		return apierr.Wrap("registry.update_metadata", err)
	}
	lib.UpdateMetadata(username, tags)
	return nil
}

// Delete removes a library from the registry. It does not wait for
// operations already in flight: a caller that obtained the handle before
// the delete keeps a valid *library.Library and finishes against it under
// the library's own lock. The registry lock is only held for the map
// delete.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	_, exists := r.libraries[id]
	if exists {
		delete(r.libraries, id)
	}
	r.mu.Unlock()

	if !exists {
		return apierr.Wrap("registry.delete", apierr.ErrNotFound)
	}
	return nil
}
