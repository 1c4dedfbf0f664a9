// Package pool provides a fixed set of workers searching for values in parallel.
package pool

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"
)

// searchAlone runs f, which may return nil, until count elements are found
func searchAlone(f func() interface{}, count int) []interface{} {
	results := make([]interface{}, count)
	for i := range results {
		for results[i] == nil {
			results[i] = f()
		}
	}
	return results
}

// search is a command sent to every worker: keep evaluating f until ctr
// successes have been produced.
type search struct {
	// number of results that still need to be produced
	ctr     *int64
	f       func() interface{}
	results []interface{}
}

// worker runs search commands until the pool is torn down.
//
// Every success decrements the shared counter. Successes with a non-negative
// index are stored and signaled on ctrChanged, later ones are discarded.
func worker(commands <-chan search, ctrChanged chan<- struct{}) {
	for c := range commands {
		for atomic.LoadInt64(c.ctr) > 0 {
			res := c.f()
			if res == nil {
				continue
			}
			i := atomic.AddInt64(c.ctr, -1)
			if i < 0 {
				break
			}
			c.results[i] = res
			ctrChanged <- struct{}{}
		}
	}
}

// Pool is a set of workers used for parallel searches.
//
// A nil *Pool is valid, and searches on the current goroutine.
type Pool struct {
	commands    chan search
	ctrChanged  chan struct{}
	workerCount int
}

// NewPool creates a pool with count workers, or one per CPU if count <= 0.
func NewPool(count int) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	p := &Pool{
		commands:    make(chan search),
		ctrChanged:  make(chan struct{}),
		workerCount: count,
	}
	for i := 0; i < count; i++ {
		go worker(p.commands, p.ctrChanged)
	}
	return p
}

// TearDown stops the workers. The pool must not be used afterwards.
func (p *Pool) TearDown() {
	if p != nil {
		close(p.commands)
	}
}

// Workers is the number of goroutines searching, 1 for a nil pool.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workerCount
}

// Search evaluates f until count non nil results are found, and returns them.
//
// f tries a single candidate and may be called concurrently. Any value it reads
// from a shared io.Reader should go through a LockedReader.
func (p *Pool) Search(count int, f func() interface{}) []interface{} {
	if p == nil {
		return searchAlone(f, count)
	}
	results := make([]interface{}, count)
	ctr := int64(count)
	cmd := search{ctr: &ctr, f: f, results: results}
	for i := 0; i < p.workerCount; i++ {
		p.commands <- cmd
	}
	for i := 0; i < count; i++ {
		<-p.ctrChanged
	}
	return results
}

// LockedReader serializes reads from an underlying io.Reader, so that a single
// source can be shared between workers.
type LockedReader struct {
	reader io.Reader
	m      sync.Mutex
}

// NewLockedReader wraps r.
func NewLockedReader(r io.Reader) *LockedReader {
	return &LockedReader{reader: r}
}

// Read implements io.Reader.
func (r *LockedReader) Read(p []byte) (int, error) {
	r.m.Lock()
	defer r.m.Unlock()
	return r.reader.Read(p)
}
