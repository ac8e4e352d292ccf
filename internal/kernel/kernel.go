// Package kernel is the OKS file engine and concurrency boundary: file lifecycle, include resolution, load/reload/save, advisory
// locking and the query entry point. It owns the process-wide
// reader-writer lock that package schema and package objstore rely on
// instead of locking internally.
package kernel

import (
	"io"
	"sync"

	"oks/config"
	"oks/internal/objstore"
	"oks/internal/schema"
)

// Kernel is the top-level OKS runtime: one schema graph, one object store,
// the set of loaded files, and the lock serializing every mutation.
type Kernel struct {
	mu sync.RWMutex

	cfg     config.Config
	logger  *Logger
	profile *Profile

	schema *schema.Graph
	store  *objstore.Store

	files              map[string]*File // by absolute path
	includeCyclePolicy includeCyclePolicy
	duplicatedObjects  duplicatedObjectsPolicy

	// reloadExtendSchema controls whether Reload of a schema file may add
	// classes the kernel has not already seen; true unless
	// a caller opts out with SetReloadExtendSchema(false).
	reloadExtendSchema bool

	aliasTable *aliasTable

	bindClassesStatus string
	lastBindObjects   BindStatus
}

// duplicatedObjectsPolicy selects how Load reacts to a repeated (class, id)
// pair across loaded files.
type duplicatedObjectsPolicy int

const (
	DuplicatesReject duplicatedObjectsPolicy = iota
	DuplicatesKeepFirstWarn
	DuplicatesAutoRename
)

// New builds a Kernel from cfg, writing diagnostics to logOut.
func New(cfg config.Config, logOut io.Writer) *Kernel {
	g := schema.NewGraph()
	k := &Kernel{
		cfg:                cfg,
		logger:             NewLogger(logOut, cfg.Silence, cfg.Verbose),
		profile:            NewProfile(cfg.Profiling),
		schema:             g,
		store:              objstore.NewStore(g),
		files:              make(map[string]*File),
		includeCyclePolicy: IncludeCycleWarn,
		reloadExtendSchema: true,
		aliasTable:         newAliasTable(),
	}
	if cfg.AllowDuplicatedObjects {
		k.duplicatedObjects = DuplicatesKeepFirstWarn
	}
	k.store.SkipStringRange = cfg.SkipStringRange
	k.store.TestDuplicatesViaInheritance = cfg.TestDuplicatedObjectsViaInheritance
	k.store.Subscribe(func(ch objstore.Change) {
		switch ch.Kind {
		case objstore.ObjectCreated:
			k.profile.ObjectCreated()
		case objstore.ObjectDestroyed:
			k.profile.ObjectDestroyed()
		}
	})
	return k
}

// Schema returns the kernel's schema graph. Callers must hold a read or
// write lock (RLock/Lock) before using it.
func (k *Kernel) Schema() *schema.Graph { return k.schema }

// Store returns the kernel's object store. Same locking discipline as Schema.
func (k *Kernel) Store() *objstore.Store { return k.store }

// Config returns the kernel's configuration snapshot.
func (k *Kernel) Config() config.Config { return k.cfg }

// Logger returns the kernel's diagnostic sink.
func (k *Kernel) Logger() *Logger { return k.logger }

// Profile returns the kernel's operation counters.
func (k *Kernel) Profile() *Profile { return k.profile }

// SetReloadExtendSchema toggles whether a later Reload of a schema file may
// introduce classes the kernel has not already seen.
func (k *Kernel) SetReloadExtendSchema(allow bool) { k.reloadExtendSchema = allow }

// SetIncludeCyclePolicy selects whether a detected include cycle is raised
// as ErrIncludeCycle or downgraded to a warning (the default).
func (k *Kernel) SetIncludeCyclePolicy(p includeCyclePolicy) { k.includeCyclePolicy = p }

// SetDuplicatedObjectsPolicy selects how Load reacts to a repeated
// (class, id) pair.
func (k *Kernel) SetDuplicatedObjectsPolicy(p duplicatedObjectsPolicy) { k.duplicatedObjects = p }

// RLock acquires the kernel's reader lock. Multiple readers (queries,
// validation workers operating on private clones) may hold it concurrently.
func (k *Kernel) RLock()   { k.mu.RLock() }
func (k *Kernel) RUnlock() { k.mu.RUnlock() }

// Lock acquires the kernel's exclusive writer lock. Every mutating
// operation — load, reload, bind, save, schema/object edits — must hold it.
func (k *Kernel) Lock()   { k.mu.Lock() }
func (k *Kernel) Unlock() { k.mu.Unlock() }

// GetBindClassesStatus returns the most recent class-bind report: every
// relationship whose declared target class is still undeclared, or "" when
// all targets resolved.
func (k *Kernel) GetBindClassesStatus() string { return k.bindClassesStatus }

// GetBindObjectsStatus returns the outcome of the most recent BindObjects
// pass.
func (k *Kernel) GetBindObjectsStatus() BindStatus { return k.lastBindObjects }

// File looks up a tracked file by absolute path.
func (k *Kernel) File(path string) (*File, bool) {
	f, ok := k.files[path]
	return f, ok
}

// Files returns every file currently tracked by the kernel.
func (k *Kernel) Files() []*File {
	out := make([]*File, 0, len(k.files))
	for _, f := range k.files {
		out = append(out, f)
	}
	return out
}

// UpdateFileStatuses re-stats every tracked file, returning the files that
// transitioned to Externally-modified.
func (k *Kernel) UpdateFileStatuses() ([]*File, error) {
	var changed []*File
	for _, f := range k.files {
		before := f.State()
		if err := f.UpdateStatus(); err != nil {
			return nil, err
		}
		if before != StateExternallyModified && f.State() == StateExternallyModified {
			changed = append(changed, f)
		}
	}
	return changed, nil
}
