package source

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lateness-sim/internal/db"
)

// silentListener accepts connections and never answers, like a database
// host that has stopped responding.
func silentListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestGTFSDB_UnresponsiveDatabaseTimesOut(t *testing.T) {
	sqlDB, err := db.Open("postgres://u:p@" + silentListener(t) + "/gtfs?sslmode=disable")
	require.NoError(t, err)
	defer sqlDB.Close()

	m := &recordingMetrics{}
	g := NewGTFSDB(sqlDB, "8", time.UTC, 200*time.Millisecond,
		WithClock(func() time.Time { return fixedNow }),
		WithMetrics(m),
	)

	start := time.Now()
	got := g.FetchFutureArrivals(context.Background(), "822")
	elapsed := time.Since(start)

	assert.Empty(t, got)
	assert.Less(t, elapsed, 3*time.Second)
	assert.Equal(t, []string{"822"}, m.failed)
	assert.Equal(t, 1, m.observed)
}
