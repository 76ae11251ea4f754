// Package logqueue implements the background log drain described in spec
// §4.14: every caller appends to an in-memory FIFO under a mutex; a single
// background goroutine owns the actual write (here, a zerolog.Logger) and
// drains the FIFO. When the FIFO is full, records are dropped and the
// drain's single skip counter increments; the next record that is
// successfully appended carries that count, so a run of drops is never
// silently lost.
package logqueue

import (
	"sync"

	"github.com/rs/zerolog"
)

// record is one queued log line.
type record struct {
	level     zerolog.Level
	msg       string
	skipped   int
	component string
}

// Drain is the background-writer log queue.
type Drain struct {
	sink     zerolog.Logger
	capacity int

	mu        sync.Mutex
	cond      *sync.Cond
	fifo      []record
	skipCount int
	closed    bool

	wg sync.WaitGroup
}

// New creates a Drain writing to sink, with room for capacity queued
// records before entries start being dropped.
func New(sink zerolog.Logger, capacity int) *Drain {
	if capacity <= 0 {
		capacity = 1024
	}
	d := &Drain{sink: sink, capacity: capacity}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start launches the single writer goroutine. Call Stop to join it.
func (d *Drain) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop signals the writer to drain remaining records and exit, then waits
// for it to finish.
func (d *Drain) Stop() {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Drain) run() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		for len(d.fifo) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.fifo) == 0 && d.closed {
			d.mu.Unlock()
			return
		}
		rec := d.fifo[0]
		d.fifo = d.fifo[1:]
		d.mu.Unlock()

		d.write(rec)
	}
}

func (d *Drain) write(rec record) {
	ev := d.sink.WithLevel(rec.level)
	if rec.component != "" {
		ev = ev.Str("component", rec.component)
	}
	if rec.skipped > 0 {
		ev = ev.Int("dropped_log_records", rec.skipped)
	}
	ev.Msg(rec.msg)
}

// enqueue appends rec, or drops it and bumps the skip counter if the FIFO
// is at capacity.
func (d *Drain) enqueue(level zerolog.Level, component, msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if len(d.fifo) >= d.capacity {
		d.skipCount++
		return
	}

	rec := record{level: level, msg: msg, component: component, skipped: d.skipCount}
	d.skipCount = 0
	d.fifo = append(d.fifo, rec)
	d.cond.Signal()
}

func (d *Drain) Debug(component, msg string) { d.enqueue(zerolog.DebugLevel, component, msg) }
func (d *Drain) Info(component, msg string)  { d.enqueue(zerolog.InfoLevel, component, msg) }
func (d *Drain) Warn(component, msg string)  { d.enqueue(zerolog.WarnLevel, component, msg) }
func (d *Drain) Error(component, msg string) { d.enqueue(zerolog.ErrorLevel, component, msg) }

// Pending reports the number of records currently queued, for tests and
// metrics.
func (d *Drain) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fifo)
}
