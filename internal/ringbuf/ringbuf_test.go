package ringbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestOrderingHoldsAfterAllCommits exercises spec §8 scenario C: producer A
// claims before producer B, but only B commits initially. The consumer must
// not observe B until A also commits, and then must see A before B.
func TestOrderingHoldsAfterAllCommits(t *testing.T) {
	rb := New(4096)

	claimA, err := rb.TryClaim(1, 4)
	require.NoError(t, err)
	copy(rb.WriteAt(claimA), []byte("AAAA"))

	claimB, err := rb.TryClaim(2, 4)
	require.NoError(t, err)
	copy(rb.WriteAt(claimB), []byte("BBBB"))
	rb.Commit(claimB)

	var seen []int32
	delivered := rb.Read(func(typeID int32, buf []byte, offset, length int) bool {
		seen = append(seen, typeID)
		return true
	})
	require.Equal(t, 0, delivered, "consumer must not see B while A is still uncommitted")
	require.Empty(t, seen)

	rb.Commit(claimA)

	delivered = rb.Read(func(typeID int32, buf []byte, offset, length int) bool {
		seen = append(seen, typeID)
		return true
	})
	require.Equal(t, 2, delivered)
	require.Equal(t, []int32{1, 2}, seen)
}

// TestByteConservationAcrossInterleavings is spec §8 testable property 5:
// claimed-and-committed bytes minus consumed bytes equals pending bytes,
// across arbitrary producer/consumer interleavings.
func TestByteConservationAcrossInterleavings(t *testing.T) {
	rb := New(1 << 16)

	const producers = 8
	const perProducer = 200
	var wg sync.WaitGroup
	var consumed int64

	done := make(chan struct{})
	consumerDone := make(chan struct{})
	count := func(_ int32, _ []byte, _ int, length int) bool { consumed += int64(length); return true }
	go func() {
		defer close(consumerDone)
		for {
			select {
			case <-done:
				rb.Read(count)
				return
			default:
				rb.Read(count)
			}
		}
	}()

	payload := make([]byte, 12)
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				for {
					ci, err := rb.TryClaim(1, len(payload))
					if err == ErrFull {
						continue
					}
					require.NoError(t, err)
					copy(rb.WriteAt(ci), payload)
					rb.Commit(ci)
					break
				}
			}
		}()
	}
	wg.Wait()
	close(done)
	<-consumerDone

	require.Equal(t, rb.PendingBytes(), int64(0), "everything committed must eventually be fully consumed")
	require.Equal(t, int64(producers*perProducer*len(payload)), consumed)
}

func TestAbortedClaimIsSkipped(t *testing.T) {
	rb := New(1024)

	ci1, err := rb.TryClaim(5, 4)
	require.NoError(t, err)
	copy(rb.WriteAt(ci1), []byte("junk"))
	rb.Abort(ci1)

	ci2, err := rb.TryClaim(6, 4)
	require.NoError(t, err)
	copy(rb.WriteAt(ci2), []byte("good"))
	rb.Commit(ci2)

	var seen []int32
	rb.Read(func(typeID int32, buf []byte, offset, length int) bool {
		seen = append(seen, typeID)
		require.Equal(t, "good", string(buf[offset:offset+length]))
		return true
	})
	require.Equal(t, []int32{6}, seen)
}

func TestTryClaimFullReturnsDistinctError(t *testing.T) {
	rb := New(32)
	_, err := rb.TryClaim(1, 64)
	require.ErrorIs(t, err, ErrInvalidLength)

	ci, err := rb.TryClaim(1, 16)
	require.NoError(t, err)
	rb.Commit(ci)

	_, err = rb.TryClaim(1, 16)
	require.ErrorIs(t, err, ErrFull)
}
