package dialog

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultSlotFirstWriteWins(t *testing.T) {
	s := NewResultSlot()

	require.True(t, s.Put(Confirmed([]byte("1234"))), "first Put must win")
	assert.False(t, s.Put(Cancelled()), "second Put must be rejected")

	res := s.Wait()
	assert.Equal(t, ResultConfirmed, res.Kind)
	assert.Equal(t, "1234", string(res.Secret))
}

func TestResultSlotBuffersEarlyWrite(t *testing.T) {
	s := NewResultSlot()
	s.Put(Cancelled())

	// The write landed before anyone waited; Wait must still observe it.
	assert.Equal(t, ResultCancelled, s.Wait().Kind)

	res, ok := s.TryGet()
	require.True(t, ok)
	assert.Equal(t, ResultCancelled, res.Kind)
}

func TestResultSlotEmptyTryGet(t *testing.T) {
	s := NewResultSlot()
	_, ok := s.TryGet()
	assert.False(t, ok, "TryGet on an empty slot")

	select {
	case <-s.Done():
		t.Error("Done closed before any Put")
	default:
	}
}

func TestResultSlotConcurrentWriters(t *testing.T) {
	s := NewResultSlot()

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Put(Errored(errors.New("writer"))) {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load(), "exactly one writer may succeed")
	assert.Equal(t, ResultError, s.Wait().Kind)
}
