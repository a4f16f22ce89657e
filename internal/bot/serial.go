package bot

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrSerializerClosed is returned by Submit after Close has been called.
var ErrSerializerClosed = errors.New("serializer is closed")

type userQueue struct {
	tasks []func()
}

// Serializer runs tasks one at a time per key, in submission order. Tasks for
// different keys run concurrently.
type Serializer struct {
	mu     sync.Mutex
	queues map[int64]*userQueue
	closed bool
	wg     sync.WaitGroup
	log    *slog.Logger
}

// NewSerializer creates an empty Serializer.
func NewSerializer(log *slog.Logger) *Serializer {
	if log == nil {
		log = slog.Default()
	}

	return &Serializer{
		queues: make(map[int64]*userQueue),
		log:    log,
	}
}

// Submit enqueues task behind every task previously submitted for key.
func (s *Serializer) Submit(key int64, task func()) error {
	if task == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSerializerClosed
	}

	if q, ok := s.queues[key]; ok {
		q.tasks = append(q.tasks, task)
		return nil
	}

	q := &userQueue{tasks: []func(){task}}
	s.queues[key] = q

	s.wg.Add(1)
	go s.drain(key, q)

	return nil
}

// Pending returns the number of keys with queued or running tasks.
func (s *Serializer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// Close stops accepting tasks and waits for queued ones to finish or ctx to end.
func (s *Serializer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Serializer) drain(key int64, q *userQueue) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if len(q.tasks) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		s.mu.Unlock()

		s.run(key, task)
	}
}

func (s *Serializer) run(key int64, task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in serialized task",
				slog.Int64("key", key),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	task()
}
