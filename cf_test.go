package snkv

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCloseCFConcurrentWithPut exercises CloseCF (otherwise never called by
// any other test) racing against Put on the same CF from another goroutine.
// CloseCF must take cf.mu before s.mu, same as Put, or the two can deadlock
// AB-BA; run with -race to also catch any data-race regression.
func TestCloseCFConcurrentWithPut(t *testing.T) {
	s := openTestStore(t)
	cf, err := s.CreateCF("widgets")
	require.NoError(t, err)

	const iterations = 200
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_ = s.Put(cf, []byte("k"), []byte("v"))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			cf.retain()
			s.CloseCF(cf)
		}
	}()

	wg.Wait()
}
