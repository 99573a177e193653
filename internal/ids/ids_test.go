package ids

import (
	"sort"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestNewIsParseableAndUnique(t *testing.T) {
	const n = 500
	seen := make(map[string]struct{}, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := New()
			_, err := ulid.Parse(id)
			require.NoError(t, err)
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, n)
}

func TestNewIsMonotonic(t *testing.T) {
	got := make([]string, 100)
	for i := range got {
		got[i] = New()
	}
	require.True(t, sort.StringsAreSorted(got))
}
