package cache

import (
	"math/rand"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// A mixed workload of concurrent Set/Get/AddOrUpdate/TryRemove/GetAt on
// random keys, for every policy. Should pass under `-race` without detector
// reports.
func TestRace_Mixed(t *testing.T) {
	for name, f := range policies() {
		t.Run(name, func(t *testing.T) {
			const capacity = 512
			c := newCache[[]byte](t, capacity, f)

			workers := 4 * runtime.GOMAXPROCS(0)
			keyspace := 4_096
			deadline := time.Now().Add(300 * time.Millisecond)

			var g errgroup.Group
			for w := 0; w < workers; w++ {
				g.Go(func() error {
					r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*9973))
					for time.Now().Before(deadline) {
						k := "k:" + strconv.Itoa(r.Intn(keyspace))
						switch r.Intn(100) {
						case 0, 1, 2, 3, 4: // ~5% Remove
							c.TryRemove(k)
						case 5, 6, 7, 8, 9: // ~5% AddOrUpdate
							c.AddOrUpdate(k, []byte("a"), func(_ string, old []byte) []byte { return old })
						case 10, 11, 12: // ~3% positional
							_, _ = c.GetAt(r.Intn(capacity))
						case 13, 14, 15, 16, 17, 18, 19: // ~7% Set
							c.Set(k, []byte("x"))
						default: // ~80% Get
							_, _ = c.TryGet(k)
						}
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())
			assert.LessOrEqual(t, c.Len(), capacity)
			assert.Len(t, c.Keys(), c.Len())
		})
	}
}
