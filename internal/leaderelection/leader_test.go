package leaderelection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSession struct {
	mu       sync.Mutex
	acquire  bool
	lockErr  error
	pingErr  error
	closed   bool
	lockKeys []int64
}

func (s *fakeSession) TryLock(ctx context.Context, key int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockKeys = append(s.lockKeys, key)
	return s.acquire, s.lockErr
}

func (s *fakeSession) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) failPings(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type recordingMetrics struct {
	mu       sync.Mutex
	statuses []bool
	acquired int
	lost     []string
}

func (m *recordingMetrics) LeaderStatusChanged(isLeader bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, isLeader)
}

func (m *recordingMetrics) LeaderAcquired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquired++
}

func (m *recordingMetrics) LeaderLost(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lost = append(m.lost, reason)
}

func newTestElector(sess *fakeSession, onElected func(context.Context), onDemoted func()) *Elector {
	return &Elector{
		connect:           func(ctx context.Context) (Session, error) { return sess, nil },
		lockKey:           728380,
		retryInterval:     10 * time.Millisecond,
		heartbeatInterval: 5 * time.Millisecond,
		onElected:         onElected,
		onDemoted:         onDemoted,
	}
}

func TestElector_FollowerDoesNotRunDuties(t *testing.T) {
	sess := &fakeSession{acquire: false}
	elected := false
	e := newTestElector(sess, func(context.Context) { elected = true }, func() {})

	if reason := e.runOnce(context.Background()); reason != "" {
		t.Errorf("reason = %q, want empty when lock not acquired", reason)
	}
	if elected {
		t.Error("onElected called without holding the lock")
	}
	if !sess.isClosed() {
		t.Error("session should be closed after a failed attempt")
	}
	if len(sess.lockKeys) != 1 || sess.lockKeys[0] != 728380 {
		t.Errorf("lock keys = %v, want [728380]", sess.lockKeys)
	}
}

func TestElector_LockQueryError(t *testing.T) {
	sess := &fakeSession{lockErr: errors.New("connection reset")}
	e := newTestElector(sess, func(context.Context) { t.Error("unexpected election") }, func() {})

	if reason := e.runOnce(context.Background()); reason != "" {
		t.Errorf("reason = %q, want empty", reason)
	}
}

func TestElector_ConnectionLossDemotes(t *testing.T) {
	sess := &fakeSession{acquire: true}
	metrics := &recordingMetrics{}

	leaderCtxDone := make(chan struct{})
	var demoted sync.WaitGroup
	demoted.Add(1)

	e := newTestElector(sess, func(ctx context.Context) {
		sess.failPings(errors.New("broken pipe"))
		<-ctx.Done()
		close(leaderCtxDone)
	}, func() { demoted.Done() })
	e.WithMetrics(metrics)

	if reason := e.runOnce(context.Background()); reason != "conn_lost" {
		t.Errorf("reason = %q, want conn_lost", reason)
	}
	demoted.Wait()

	select {
	case <-leaderCtxDone:
	case <-time.After(time.Second):
		t.Fatal("leader context was not cancelled")
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.acquired != 1 {
		t.Errorf("acquired = %d, want 1", metrics.acquired)
	}
	if len(metrics.statuses) != 2 || !metrics.statuses[0] || metrics.statuses[1] {
		t.Errorf("statuses = %v, want [true false]", metrics.statuses)
	}
	if len(metrics.lost) != 1 || metrics.lost[0] != "conn_lost" {
		t.Errorf("lost = %v, want [conn_lost]", metrics.lost)
	}
}

func TestElector_RunStopsOnShutdown(t *testing.T) {
	sess := &fakeSession{acquire: true}
	elected := make(chan struct{})
	var once sync.Once
	demotions := 0
	var mu sync.Mutex

	e := newTestElector(sess, func(ctx context.Context) {
		once.Do(func() { close(elected) })
	}, func() {
		mu.Lock()
		demotions++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case <-elected:
	case <-time.After(time.Second):
		t.Fatal("never elected")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	if demotions != 1 {
		t.Errorf("demotions = %d, want 1", demotions)
	}
}
