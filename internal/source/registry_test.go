package source

import (
	"errors"
	"sync"
	"testing"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptors(aliases ...string) []domain.Descriptor {
	out := make([]domain.Descriptor, 0, len(aliases))
	for _, a := range aliases {
		out = append(out, domain.Descriptor{Alias: a, Kind: domain.SQLite, ConnectionString: a + ".db"})
	}
	return out
}

func TestRegistry_ResetReplacesWholesale(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	r.Reset(descriptors("a", "b", "c"))
	r.Reset(descriptors("z", "y"))

	assert.Equal(t, descriptors("z", "y"), r.Sources())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ResetCopiesInput(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	in := descriptors("a")
	r.Reset(in)
	in[0].Alias = "mutated"

	got, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, "a", got.Alias)
}

func TestRegistry_DefaultAndLookup(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	_, err := r.Default()
	assert.True(t, errors.Is(err, domain.ErrNoSources))

	r.Reset(descriptors("main", "replica"))
	d, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, "main", d.Alias)

	d, err = r.Lookup("replica")
	require.NoError(t, err)
	assert.Equal(t, "replica.db", d.ConnectionString)

	_, err = r.Lookup("missing")
	assert.True(t, errors.Is(err, domain.ErrSourceNotFound))
}

func TestRegistry_ReadersSeeCompleteLists(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	small, large := descriptors("a"), descriptors("a", "b", "c", "d")
	r.Reset(small)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				r.Reset(large)
			} else {
				r.Reset(small)
			}
		}
	}()

	for range 1000 {
		n := len(r.Sources())
		assert.True(t, n == 1 || n == 4, "observed partial list of %d", n)
	}
	close(stop)
	wg.Wait()
}
