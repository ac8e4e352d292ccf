package kernel

import "sync/atomic"

// Profile holds the kernel's operation counters (objects created and
// destroyed, files loaded/saved/reloaded, query invocations), enabled by
// Config.Profiling. Counters only; there is no exporter.
type Profile struct {
	enabled bool

	objectsCreated   int64
	objectsDestroyed int64
	filesLoaded      int64
	filesSaved       int64
	filesReloaded    int64
	queriesRun       int64
}

// NewProfile returns a Profile that counts only if enabled is true.
func NewProfile(enabled bool) *Profile {
	return &Profile{enabled: enabled}
}

func (p *Profile) bump(counter *int64) {
	if p == nil || !p.enabled {
		return
	}
	atomic.AddInt64(counter, 1)
}

func (p *Profile) ObjectCreated()   { p.bump(&p.objectsCreated) }
func (p *Profile) ObjectDestroyed() { p.bump(&p.objectsDestroyed) }
func (p *Profile) FileLoaded()      { p.bump(&p.filesLoaded) }
func (p *Profile) FileSaved()       { p.bump(&p.filesSaved) }
func (p *Profile) FileReloaded()    { p.bump(&p.filesReloaded) }
func (p *Profile) QueryRun()        { p.bump(&p.queriesRun) }

// Snapshot is a point-in-time copy of every counter, safe to read
// concurrently with further increments.
type Snapshot struct {
	ObjectsCreated   int64
	ObjectsDestroyed int64
	FilesLoaded      int64
	FilesSaved       int64
	FilesReloaded    int64
	QueriesRun       int64
}

func (p *Profile) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	return Snapshot{
		ObjectsCreated:   atomic.LoadInt64(&p.objectsCreated),
		ObjectsDestroyed: atomic.LoadInt64(&p.objectsDestroyed),
		FilesLoaded:      atomic.LoadInt64(&p.filesLoaded),
		FilesSaved:       atomic.LoadInt64(&p.filesSaved),
		FilesReloaded:    atomic.LoadInt64(&p.filesReloaded),
		QueriesRun:       atomic.LoadInt64(&p.queriesRun),
	}
}
