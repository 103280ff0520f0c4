package project

import (
	"context"
	"sync"
)

// Loader loads project views. *Aggregator satisfies it.
type Loader interface {
	Load(ctx context.Context, req Request, observer Observer) (*View, error)
}

// Session drives the loads of one viewer. Starting a new load cancels the
// previous one; updates from superseded loads are dropped.
type Session struct {
	loader Loader

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	view       *View
	wg         sync.WaitGroup
}

// NewSession creates a session backed by loader.
func NewSession(loader Loader) *Session {
	return &Session{loader: loader}
}

// Start begins loading req and returns its generation. obs receives the
// field updates of this generation followed by one Final update. obs runs
// with the session locked and must not call back into it.
func (s *Session) Start(ctx context.Context, req Request, obs Observer) uint64 {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	lctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	deliver := func(u Update) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen || obs == nil {
			return
		}
		u.Generation = gen
		obs(u)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		view, err := s.loader.Load(lctx, req, func(u Update) { deliver(u) })
		final := Update{Final: true}
		if view != nil {
			final.State = view.State()
		}
		if err != nil {
			final.Error = err.Error()
		}
		s.mu.Lock()
		if s.generation == gen && view != nil {
			s.view = view
		}
		s.mu.Unlock()
		deliver(final)
	}()
	return gen
}

// View returns the view of the last completed current-generation load.
func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Generation returns the generation of the latest Start.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Wait blocks until every started load has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels the running load and waits for it.
func (s *Session) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.mu.Unlock()
	s.wg.Wait()
}
