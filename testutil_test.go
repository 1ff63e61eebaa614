package construct_test

import (
	"context"
	"sync/atomic"
)

// Shared test types. Constructors count invocations through atomic counters
// so tests can assert exactly-once semantics.

type IClock interface {
	Now() int64
}

type SystemClock struct {
	tick int64
}

func (c *SystemClock) Now() int64 { return c.tick }

type IRepo interface {
	Get(id string) string
}

type InMemoryRepo struct {
	data map[string]string
}

func (r *InMemoryRepo) Get(id string) string { return r.data[id] }

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{data: make(map[string]string)}
}

type DiskRepo struct {
	path string
}

func (r *DiskRepo) Get(id string) string { return r.path + "/" + id }

type IService interface {
	Clock() IClock
}

type Service struct {
	clock IClock
}

func (s *Service) Clock() IClock { return s.clock }

func NewService(clock IClock) *Service {
	return &Service{clock: clock}
}

// countingClock builds SystemClock instances and records how many times the
// constructor ran.
type countingClock struct {
	calls atomic.Int64
}

func (cc *countingClock) New() *SystemClock {
	cc.calls.Add(1)
	return &SystemClock{}
}

// startRecorder implements Startable and records Start invocations.
type startRecorder struct {
	starts  atomic.Int64
	fail    error
	started chan struct{}
	release chan struct{}
}

func newStartRecorder() *startRecorder {
	return &startRecorder{}
}

func (s *startRecorder) Start(ctx context.Context) error {
	s.starts.Add(1)

	if s.started != nil {
		close(s.started)
	}

	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return s.fail
}
