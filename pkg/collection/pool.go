package collection

import (
	"sync"

	"github.com/cuemby/restpose/pkg/rperrors"
)

// entry is one collection's pooled state: the shared Collection handle plus
// the bookkeeping GetWritable needs to enforce single-writer-at-a-time.
type entry struct {
	coll        *Collection
	refs        int
	writerHeld  bool
	openErr     error
	openPending bool
}

// Pool leases Collections by name out of a shared data directory, opening
// each one at most once and handing every caller the same handle: spec
// §4.8's "readers see last-committed state concurrently, writers are
// serialized per collection" narrowed to what one shared indexstore.Store
// plus an internal RWMutex can express (see the package doc comment).
// Grounded on cuemby-warren's pkg/storage connection-pool shape, generalised
// from one shared *sql.DB to one shared handle per named collection.
type Pool struct {
	dir string

	mu      sync.Mutex
	cond    *sync.Cond
	entries map[string]*entry
}

// NewPool returns a Pool rooted at dir. It does not touch the filesystem;
// directories are created when a collection is first opened.
func NewPool(dir string) *Pool {
	p := &Pool{dir: dir, entries: make(map[string]*entry)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// entryFor returns name's entry, opening its Collection lazily on first
// access. Must be called with p.mu held; blocks (releasing p.mu while
// waiting) if another goroutine is already opening the same name.
func (p *Pool) entryFor(name string) (*entry, error) {
	for {
		e, ok := p.entries[name]
		if ok {
			if e.openPending {
				p.cond.Wait()
				continue
			}
			if e.openErr != nil {
				return nil, e.openErr
			}
			return e, nil
		}
		e = &entry{openPending: true}
		p.entries[name] = e
		p.mu.Unlock()
		coll, err := Open(p.dir, name, true)
		p.mu.Lock()
		e.openPending = false
		if err != nil {
			e.openErr = err
			p.cond.Broadcast()
			return nil, err
		}
		e.coll = coll
		p.cond.Broadcast()
		return e, nil
	}
}

// GetReadonly returns name's shared Collection for read-only use (DocCount,
// GetDocument, PerformSearch), opening it if this is the first access.
// Callers must call Release when done.
func (p *Pool) GetReadonly(name string) (*Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.entryFor(name)
	if err != nil {
		return nil, err
	}
	e.refs++
	return e.coll, nil
}

// GetWritable returns name's shared Collection for exclusive write access
// (RawUpdateDoc, RawDeleteDoc, Commit), blocking until any other writer
// holding name releases it, per spec §4.8's single-writer-per-collection
// rule. Callers must call ReleaseWritable when done.
func (p *Pool) GetWritable(name string) (*Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.entryFor(name)
	if err != nil {
		return nil, err
	}
	for e.writerHeld {
		p.cond.Wait()
	}
	e.writerHeld = true
	e.refs++
	return e.coll, nil
}

// Release gives back a handle obtained from GetReadonly.
func (p *Pool) Release(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked(name)
}

// ReleaseWritable gives back a handle obtained from GetWritable, freeing the
// name for the next writer.
func (p *Pool) ReleaseWritable(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[name]; ok {
		e.writerHeld = false
	}
	p.releaseLocked(name)
	p.cond.Broadcast()
}

func (p *Pool) releaseLocked(name string) {
	e, ok := p.entries[name]
	if !ok {
		return
	}
	e.refs--
}

// Names returns every collection name the pool has opened.
func (p *Pool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.entries))
	for name, e := range p.entries {
		if e.openErr == nil {
			out = append(out, name)
		}
	}
	return out
}

// Close closes every opened collection. It is an error to call Close while
// any handle is still outstanding (refs > 0).
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for name, e := range p.entries {
		if e.coll == nil {
			continue
		}
		if e.refs > 0 {
			if firstErr == nil {
				firstErr = rperrors.Invalidf("collection %q still has outstanding handles", name)
			}
			continue
		}
		if err := e.coll.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
