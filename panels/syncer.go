package panels

import (
	"context"
	"sync"
)

type syncOp func(ctx context.Context)

// syncer runs persistence calls one at a time, in submission order, off the
// caller's goroutine. Calls are never cancelled once submitted.
type syncer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []syncOp
	busy    bool
	stopped bool

	wg sync.WaitGroup
}

func newSyncer() *syncer {
	s := &syncer{}
	s.cond = sync.NewCond(&s.mu)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s
}

func (s *syncer) loop() {
	ctx := context.Background()
	s.mu.Lock()
	for {
		for len(s.queue) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.stopped {
			s.mu.Unlock()
			return
		}
		op := s.queue[0]
		s.queue = s.queue[1:]
		s.busy = true
		s.mu.Unlock()

		op(ctx)

		s.mu.Lock()
		s.busy = false
		s.cond.Broadcast()
	}
}

// submit queues op; returns false once the syncer has been stopped.
func (s *syncer) submit(op syncOp) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.queue = append(s.queue, op)
	s.cond.Broadcast()
	return true
}

// flush blocks until every submitted op has run.
func (s *syncer) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 || s.busy {
		s.cond.Wait()
	}
}

// stop drains the queue and ends the worker.
func (s *syncer) stop() {
	s.mu.Lock()
	s.stopped = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}
