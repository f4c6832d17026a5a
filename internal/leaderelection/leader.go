// Package leaderelection provides Postgres advisory lock-based leader election.
//
// Only the reconciler needs a single active instance: several workers may
// register orders concurrently, but overlapping reconcile scans would emit
// duplicate events. A session-scoped advisory lock picks the leader. The
// lock is held for the lifetime of a dedicated database connection; there
// is no renewal or TTL. If the connection dies, Postgres releases the lock
// server-side.
//
// The heartbeat ping exists solely to detect local connection death so the
// leader can stop its duties promptly. It does NOT renew the lock.
package leaderelection

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// MetricsSink defines the interface for recording leader election metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string) // reason: "shutdown", "conn_lost"
}

// Session is a dedicated connection that can hold a session-scoped lock.
type Session interface {
	TryLock(ctx context.Context, key int64) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Elector manages leader election using a Postgres advisory lock.
type Elector struct {
	connect           func(ctx context.Context) (Session, error)
	lockKey           int64
	retryInterval     time.Duration // follower: how often to attempt lock acquisition
	heartbeatInterval time.Duration // leader: how often to ping dedicated connection
	onElected         func(ctx context.Context)
	onDemoted         func()
	metrics           MetricsSink // optional, nil = disabled
}

// New creates a new Elector backed by db.
//
// onElected is called in a new goroutine when this instance acquires the lock.
// The provided context is cancelled when leadership is lost.
//
// onDemoted is called synchronously when leadership is lost.
// It should stop leader duties and block until they are fully stopped.
// It must be idempotent.
func New(
	db *sql.DB,
	lockKey int64,
	retryInterval, heartbeatInterval time.Duration,
	onElected func(ctx context.Context),
	onDemoted func(),
) *Elector {
	return &Elector{
		connect: func(ctx context.Context) (Session, error) {
			conn, err := db.Conn(ctx)
			if err != nil {
				return nil, err
			}
			return &pgSession{conn: conn}, nil
		},
		lockKey:           lockKey,
		retryInterval:     retryInterval,
		heartbeatInterval: heartbeatInterval,
		onElected:         onElected,
		onDemoted:         onDemoted,
	}
}

// WithMetrics attaches a metrics sink to the elector.
func (e *Elector) WithMetrics(sink MetricsSink) *Elector {
	e.metrics = sink
	return e
}

// Run starts the leader election loop. It blocks until ctx is cancelled.
func (e *Elector) Run(ctx context.Context) {
	log.Printf("leader: starting election loop (lock_key=%d, retry=%s, heartbeat=%s)",
		e.lockKey, e.retryInterval, e.heartbeatInterval)

	for {
		if ctx.Err() != nil {
			log.Println("leader: election loop stopped")
			return
		}

		reason := e.runOnce(ctx)

		if ctx.Err() != nil {
			log.Println("leader: election loop stopped")
			return
		}

		if reason != "" {
			log.Printf("leader: lost leadership (reason=%s), will retry in %s", reason, e.retryInterval)
		}

		timer := time.NewTimer(e.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("leader: election loop stopped")
			return
		case <-timer.C:
		}
	}
}

// runOnce attempts to acquire the advisory lock and hold it.
// Returns the reason leadership was lost ("" if lock was not acquired).
func (e *Elector) runOnce(ctx context.Context) string {
	// Advisory lock is session-scoped: must use a dedicated connection.
	sess, err := e.connect(ctx)
	if err != nil {
		log.Printf("leader: failed to acquire dedicated connection: %v", err)
		return ""
	}
	defer sess.Close()

	acquired, err := sess.TryLock(ctx, e.lockKey)
	if err != nil {
		log.Printf("leader: advisory lock query failed: %v", err)
		return ""
	}
	if !acquired {
		log.Printf("leader: lock %d held by another instance, retrying in %s", e.lockKey, e.retryInterval)
		return ""
	}

	log.Printf("leader: acquired advisory lock %d", e.lockKey)
	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(true)
		e.metrics.LeaderAcquired()
	}

	leaderCtx, cancelLeader := context.WithCancel(ctx)

	go e.onElected(leaderCtx)

	reason := e.holdLock(ctx, sess)

	cancelLeader()
	e.onDemoted()

	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(false)
		e.metrics.LeaderLost(reason)
	}

	log.Printf("leader: released advisory lock %d", e.lockKey)
	return reason
}

// holdLock blocks while pinging the dedicated connection.
// Returns the reason the lock was lost.
func (e *Elector) holdLock(ctx context.Context, sess Session) string {
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "shutdown"
		case <-ticker.C:
			if err := sess.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return "shutdown"
				}
				log.Printf("leader: dedicated connection ping failed: %v", err)
				return "conn_lost"
			}
		}
	}
}

type pgSession struct {
	conn   *sql.Conn
	key    int64
	locked bool
}

func (s *pgSession) TryLock(ctx context.Context, key int64) (bool, error) {
	var acquired bool
	if err := s.conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		return false, err
	}
	s.key, s.locked = key, acquired
	return acquired, nil
}

func (s *pgSession) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close unlocks before handing the connection back: a pooled connection
// keeps its session, and with it the lock.
func (s *pgSession) Close() error {
	if s.locked {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := s.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", s.key); err != nil {
			log.Printf("leader: advisory unlock failed: %v", err)
		}
		cancel()
	}
	return s.conn.Close()
}
