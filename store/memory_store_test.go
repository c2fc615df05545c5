package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wxcuop/pyfixmsg-plus/fix"
)

func testSessionID() fix.SessionID {
	return fix.SessionID{BeginString: "FIX.4.4", SenderCompID: "BANZAI", TargetCompID: "EXEC"}
}

func TestMemoryStoreArchiveOnOverwrite(t *testing.T) {
	s := NewMemoryStore()
	id := testSessionID()

	require.NoError(t, s.Store(id, 10, Outbound, []byte("B1"), time.Now()))
	require.NoError(t, s.Store(id, 10, Outbound, []byte("B2"), time.Now()))

	rec, err := s.Get(id, 10, Outbound)
	require.NoError(t, err)
	require.Equal(t, "B2", string(rec.Raw))

	sess := s.session(id)
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	require.Len(t, sess.archive, 1)
	require.Equal(t, "B1", string(sess.archive[0].Raw))
}

func TestMemoryStoreDirectionDoesNotCollide(t *testing.T) {
	s := NewMemoryStore()
	id := testSessionID()

	require.NoError(t, s.Store(id, 5, Inbound, []byte("in"), time.Now()))
	require.NoError(t, s.Store(id, 5, Outbound, []byte("out"), time.Now()))

	in, err := s.Get(id, 5, Inbound)
	require.NoError(t, err)
	require.Equal(t, "in", string(in.Raw))

	out, err := s.Get(id, 5, Outbound)
	require.NoError(t, err)
	require.Equal(t, "out", string(out.Raw))
}

func TestMemoryStoreSequenceCounters(t *testing.T) {
	s := NewMemoryStore()
	id := testSessionID()

	next, err := s.NextOutgoing(id)
	require.NoError(t, err)
	require.Equal(t, 1, next)

	require.NoError(t, s.Store(id, 1, Outbound, []byte("x"), time.Now()))
	next, err = s.NextOutgoing(id)
	require.NoError(t, err)
	require.Equal(t, 2, next)

	require.NoError(t, s.ResetBoth(id))
	next, err = s.NextOutgoing(id)
	require.NoError(t, err)
	require.Equal(t, 1, next)
}

func TestMemoryStoreRangeInclusive(t *testing.T) {
	s := NewMemoryStore()
	id := testSessionID()

	for seq := 5; seq <= 8; seq++ {
		require.NoError(t, s.Store(id, seq, Inbound, []byte("m"), time.Now()))
	}

	recs, err := s.Range(id, Inbound, 5, 7)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, 5, recs[0].SeqNum)
	require.Equal(t, 7, recs[2].SeqNum)

	all, err := s.Range(id, Inbound, 5, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestMemoryStoreGetMissingIsNotFound(t *testing.T) {
	s := NewMemoryStore()
	id := testSessionID()

	_, err := s.Get(id, 1, Inbound)
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}
