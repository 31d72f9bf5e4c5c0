package devstat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func record(id DeviceID, readOps uint64) Record {
	r := Record{ID: id}
	r.PerClass[OpRead].Ops = readOps
	return r
}

func TestSnapshotRecordsAreIsolated(t *testing.T) {
	in := []Record{record(1, 10), record(2, 20)}
	snap := NewSnapshot(Bintime{Sec: 5}, in)

	// Mutating the input after construction must not change the snapshot.
	in[0].PerClass[OpRead].Ops = 999
	require.Equal(t, uint64(10), snap.Records()[0].PerClass[OpRead].Ops)

	// Each Records call yields an independent slice, so iteration restarts
	// cleanly and mutation does not leak back in.
	first := snap.Records()
	first[1].PerClass[OpRead].Ops = 777
	require.Equal(t, uint64(20), snap.Records()[1].PerClass[OpRead].Ops)

	require.Equal(t, 2, snap.Len())
	require.Equal(t, Bintime{Sec: 5}, snap.Timestamp())
}

func TestIterPairPositional(t *testing.T) {
	cur := NewSnapshot(Bintime{Sec: 2}, []Record{record(1, 100), record(2, 200), record(3, 300)})
	prev := NewSnapshot(Bintime{Sec: 1}, []Record{record(1, 50), record(2, 60)})

	pairs := cur.IterPair(prev)
	require.Len(t, pairs, 3)
	require.Equal(t, uint64(50), pairs[0].Prev.PerClass[OpRead].Ops)
	require.Equal(t, uint64(60), pairs[1].Prev.PerClass[OpRead].Ops)
	// Current series is longer; the tail pairs with nothing.
	require.Nil(t, pairs[2].Prev)
}

func TestIterPairNoPrevious(t *testing.T) {
	cur := NewSnapshot(Bintime{}, []Record{record(1, 1)})
	pairs := cur.IterPair(nil)
	require.Len(t, pairs, 1)
	require.Nil(t, pairs[0].Prev)
}

// A device inserted between acquisitions shifts every later positional
// pairing onto the wrong device; identity pairing is immune. This documents
// the divergence from the purely positional kernel-table behavior.
func TestPairByIDSurvivesDeviceArrival(t *testing.T) {
	prev := NewSnapshot(Bintime{Sec: 1}, []Record{record(10, 100), record(20, 200)})
	cur := NewSnapshot(Bintime{Sec: 2}, []Record{record(10, 150), record(15, 5), record(20, 260)})

	positional := cur.IterPair(prev)
	// Device 15 is positionally paired with device 20's old record.
	require.Equal(t, DeviceID(15), positional[1].Cur.ID)
	require.Equal(t, uint64(200), positional[1].Prev.PerClass[OpRead].Ops)

	byID := cur.PairByID(prev)
	require.Equal(t, DeviceID(15), byID[1].Cur.ID)
	require.Nil(t, byID[1].Prev, "new device must pair with nil, not a shifted record")
	require.Equal(t, uint64(200), byID[2].Prev.PerClass[OpRead].Ops)
}

func TestPairByIDDepartedDeviceDropped(t *testing.T) {
	prev := NewSnapshot(Bintime{Sec: 1}, []Record{record(10, 100), record(20, 200)})
	cur := NewSnapshot(Bintime{Sec: 2}, []Record{record(20, 220)})

	pairs := cur.PairByID(prev)
	require.Len(t, pairs, 1)
	require.Equal(t, DeviceID(20), pairs[0].Cur.ID)
	require.Equal(t, uint64(200), pairs[0].Prev.PerClass[OpRead].Ops)
}
