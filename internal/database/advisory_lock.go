package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UpdateLockID is the advisory lock key ("updt") shared by every CRM
// process booting against the same database.
const UpdateLockID int64 = 0x75706474

// LockedError is returned by UpdateLock.Acquire when another session owns
// the lock. It matches ErrLockNotAcquired with errors.Is.
type LockedError struct {
	// PID is the backend pid of the holder, 0 when it ended between the
	// two queries.
	PID int32
}

func (e *LockedError) Error() string {
	if e.PID == 0 {
		return ErrLockNotAcquired.Error()
	}

	return fmt.Sprintf("%s: held by backend pid %d", ErrLockNotAcquired, e.PID)
}

func (e *LockedError) Is(target error) bool { return target == ErrLockNotAcquired }

// UpdateLock keeps two processes from draining the updates directory at
// the same time. It is a session lock, so the pooled connection that took
// it stays checked out until Release.
type UpdateLock struct {
	pool *pgxpool.Pool
	key  int64
}

// NewUpdateLock returns the update lock on pool.
func NewUpdateLock(pool *pgxpool.Pool) *UpdateLock {
	return &UpdateLock{pool: pool, key: UpdateLockID}
}

// HeldLock is an acquired UpdateLock.
type HeldLock struct {
	conn *pgxpool.Conn
	key  int64
}

// Acquire takes the lock without waiting.
func (l *UpdateLock) Acquire(ctx context.Context) (*HeldLock, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for update lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&acquired); err != nil {
		conn.Release()

		return nil, fmt.Errorf("executing pg_try_advisory_lock: %w", err)
	}

	if acquired {
		return &HeldLock{conn: conn, key: l.key}, nil
	}

	defer conn.Release()

	holder, err := l.holder(ctx, conn)
	if err != nil {
		return nil, err
	}

	return nil, &LockedError{PID: holder}
}

// holder looks up the backend holding the lock. A bigint advisory key is
// stored in pg_locks split across classid and objid, with objsubid 1.
func (l *UpdateLock) holder(ctx context.Context, conn *pgxpool.Conn) (int32, error) {
	var pid int32

	err := conn.QueryRow(ctx, `
		SELECT pid FROM pg_locks
		WHERE locktype = 'advisory' AND granted
		  AND classid = ($1::bigint >> 32)::oid
		  AND objid = ($1::bigint & 4294967295)::oid
		  AND objsubid = 1
		LIMIT 1`, l.key).Scan(&pid)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("looking up update lock holder: %w", err)
	}

	return pid, nil
}

// Release unlocks and returns the connection to the pool. Calling it again,
// or on a nil HeldLock, is a no-op. ErrLockNotHeld means the server had
// already dropped the lock, e.g. after the session was terminated.
func (h *HeldLock) Release(ctx context.Context) error {
	if h == nil || h.conn == nil {
		return nil
	}

	conn := h.conn
	h.conn = nil

	defer conn.Release()

	var released bool
	if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", h.key).Scan(&released); err != nil {
		return fmt.Errorf("releasing update lock: %w", err)
	}

	if !released {
		return ErrLockNotHeld
	}

	return nil
}
