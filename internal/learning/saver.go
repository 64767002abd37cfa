package learning

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// saveTimeout bounds a single background save.
	saveTimeout = 10 * time.Second
)

// saver persists the store in the background with non-blocking requests.
// Requests coalesce: a save always writes the state current at the time it
// runs, so one pending request covers any number of mutations.
type saver struct {
	save     func(ctx context.Context) error
	requests chan struct{}
	flushes  chan chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      zerolog.Logger
}

func newSaver(save func(ctx context.Context) error, log zerolog.Logger) *saver {
	s := &saver{
		save:     save,
		requests: make(chan struct{}, 1),
		flushes:  make(chan chan struct{}),
		stopChan: make(chan struct{}),
		log:      log,
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// request schedules a save (non-blocking).
func (s *saver) request() {
	select {
	case s.requests <- struct{}{}:
	default:
		// A save is already pending.
	}
}

// flush waits until every request made before the call has been written.
func (s *saver) flush(ctx context.Context) error {
	ack := make(chan struct{})

	select {
	case s.flushes <- ack:
	case <-s.stopChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop writes any pending request and shuts down the worker.
func (s *saver) stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
}

func (s *saver) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.requests:
			s.write()

		case ack := <-s.flushes:
			s.drain()
			close(ack)

		case <-s.stopChan:
			s.drain()
			return
		}
	}
}

// drain writes a pending request, if any.
func (s *saver) drain() {
	select {
	case <-s.requests:
		s.write()
	default:
	}
}

func (s *saver) write() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.save(ctx); err != nil {
		s.log.Warn().Err(err).Msg("background save failed")
	}
}
