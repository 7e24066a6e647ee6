package repo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer models Postgres session locks: a lock belongs to the connection that took it.
type fakeServer struct {
	mu       sync.Mutex
	next     int
	owner    map[int64]int
	acquired int
	released int
}

type fakeConn struct {
	id  int
	srv *fakeServer
}

type boolRow struct {
	v   bool
	err error
}

func (r boolRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*bool) = r.v
	return nil
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	key := args[0].(int64)
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	owner, held := c.srv.owner[key]
	switch {
	case strings.Contains(sql, "pg_try_advisory_lock"):
		if held && owner != c.id {
			return boolRow{v: false}
		}
		c.srv.owner[key] = c.id
		return boolRow{v: true}
	case strings.Contains(sql, "pg_advisory_unlock"):
		if !held || owner != c.id {
			return boolRow{v: false}
		}
		delete(c.srv.owner, key)
		return boolRow{v: true}
	}
	return boolRow{err: errors.New("unexpected query")}
}

func (c *fakeConn) Release() {
	c.srv.mu.Lock()
	c.srv.released++
	c.srv.mu.Unlock()
}

// lockRepo hands out a fresh connection on every checkout, like a busy pool would.
func lockRepo(srv *fakeServer) *Repository {
	r := &Repository{log: zerolog.Nop(), held: map[int64]sessionConn{}}
	r.acquire = func(ctx context.Context) (sessionConn, error) {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		srv.next++
		srv.acquired++
		return &fakeConn{id: srv.next, srv: srv}, nil
	}
	return r
}

func TestAdvisoryLock_UnlocksOnTheSameSession(t *testing.T) {
	srv := &fakeServer{owner: map[int64]int{}}
	r := lockRepo(srv)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := r.TryAdvisoryLock(ctx, 42)
		require.NoError(t, err)
		require.True(t, ok, "run %d", i)
		require.NoError(t, r.AdvisoryUnlock(ctx, 42))
	}
	assert.Empty(t, srv.owner)
	assert.Equal(t, srv.acquired, srv.released)
}

func TestAdvisoryLock_HeldKeyIsBusy(t *testing.T) {
	srv := &fakeServer{owner: map[int64]int{}}
	r := lockRepo(srv)
	ctx := context.Background()

	ok, err := r.TryAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.TryAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, srv.acquired)

	// another process holding the key
	other := lockRepo(srv)
	ok, err = other.TryAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, srv.acquired-1, srv.released, "only the winning session stays checked out")

	require.NoError(t, r.AdvisoryUnlock(ctx, 7))
	ok, err = other.TryAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdvisoryUnlock_NotHeld(t *testing.T) {
	r := lockRepo(&fakeServer{owner: map[int64]int{}})
	assert.Error(t, r.AdvisoryUnlock(context.Background(), 1))
}
