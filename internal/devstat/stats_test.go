package devstat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func busyRecord(busy Bintime) Record {
	return Record{BusyTime: busy}
}

func TestComputeEndToEnd(t *testing.T) {
	cur := Record{BlockSize: 512}
	cur.PerClass[OpRead] = ClassCounters{
		Ops:      1000,
		Bytes:    4_096_000,
		Duration: Bintime{Sec: 2},
	}
	prev := Record{BlockSize: 512}
	prev.PerClass[OpRead] = ClassCounters{
		Ops:      500,
		Bytes:    2_048_000,
		Duration: Bintime{Sec: 1},
	}

	s := Compute(cur, &prev, 10.0)

	require.Equal(t, uint64(500), s.Transfers(OpRead))
	require.Equal(t, uint64(2_048_000), s.Bytes(OpRead))
	require.InDelta(t, 50.0, s.TransfersPerSecond(OpRead), 1e-12)
	require.InDelta(t, 0.1953125, s.MBPerSecond(OpRead), 1e-12)
	require.InDelta(t, 4.0, s.KBPerTransfer(OpRead), 1e-12)
	require.InDelta(t, 2.0, s.MsPerTransfer(OpRead), 1e-9)
}

func TestComputeZeroElapsed(t *testing.T) {
	cur := Record{}
	cur.PerClass[OpWrite] = ClassCounters{Ops: 10, Bytes: 5120, Duration: Bintime{Sec: 1}}
	cur.BusyTime = Bintime{Sec: 3}

	s := Compute(cur, nil, 0)

	values := []float64{
		s.TotalTransfersPerSecond(),
		s.TransfersPerSecond(OpWrite),
		s.BlocksPerSecond(OpWrite),
		s.TotalBlocksPerSecond(),
		s.MBPerSecond(OpWrite),
		s.TotalMBPerSecond(),
		s.BusyPct(),
	}
	for i, v := range values {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "value %d is not finite", i)
		require.Zero(t, v, "value %d", i)
	}

	// Count-based metrics do not depend on elapsed time.
	require.InDelta(t, 0.5, s.KBPerTransfer(OpWrite), 1e-12)
	require.InDelta(t, 100.0, s.MsPerTransfer(OpWrite), 1e-12)
}

func TestComputeZeroCounts(t *testing.T) {
	s := Compute(Record{}, nil, 5.0)

	for c := OpClass(0); c < NumOpClasses; c++ {
		require.Zero(t, s.KBPerTransfer(c))
		require.Zero(t, s.MsPerTransfer(c))
		require.Zero(t, s.TransfersPerSecond(c))
	}
	require.Zero(t, s.TotalKBPerTransfer())
	require.Zero(t, s.TotalMsPerTransfer())
}

func TestComputeNoPreviousEqualsZeroedRecord(t *testing.T) {
	cur := Record{BlockSize: 4096, StartCount: 9, EndCount: 5, BusyTime: Bintime{Sec: 7, Frac: 1 << 63}}
	for c := OpClass(0); c < NumOpClasses; c++ {
		cur.PerClass[c] = ClassCounters{
			Ops:      uint64(100 * (c + 1)),
			Bytes:    uint64(4096 * 100 * (c + 1)),
			Duration: Bintime{Sec: int64(c), Frac: uint64(c) << 60},
		}
	}

	zeroed := Record{BlockSize: cur.BlockSize, StartCount: cur.StartCount, EndCount: cur.EndCount}
	sinceBoot := Compute(cur, nil, 12.5)
	viaZeroed := Compute(cur, &zeroed, 12.5)

	require.Equal(t, sinceBoot, viaZeroed)
}

func TestComputeAggregateConsistency(t *testing.T) {
	cur := Record{BlockSize: 512}
	prev := Record{BlockSize: 512}
	for c := OpClass(0); c < NumOpClasses; c++ {
		cur.PerClass[c] = ClassCounters{
			Ops:      uint64(1000 + 37*int(c)),
			Bytes:    uint64(1 << (20 + c)),
			Duration: Bintime{Sec: int64(c + 1), Frac: uint64(c) * 0x1000},
		}
		prev.PerClass[c] = ClassCounters{
			Ops:      uint64(400 + 11*int(c)),
			Bytes:    uint64(1 << (18 + c)),
			Duration: Bintime{Sec: int64(c)},
		}
	}

	s := Compute(cur, &prev, 3.0)

	var sumTransfers, sumBytes uint64
	var sumDuration float64
	for c := OpClass(0); c < NumOpClasses; c++ {
		sumTransfers += s.Transfers(c)
		sumBytes += s.Bytes(c)
		sumDuration += s.Duration(c)
	}
	require.Equal(t, sumTransfers, s.TotalTransfers())
	require.Equal(t, sumBytes, s.TotalBytes())
	require.InDelta(t, sumDuration, s.TotalDuration(), 1e-9)
}

func TestComputeBlockDenominator(t *testing.T) {
	cur := Record{}
	cur.PerClass[OpRead] = ClassCounters{Ops: 1, Bytes: 8192}

	// Unknown block size falls back to 512.
	s := Compute(cur, nil, 1)
	require.Equal(t, uint64(16), s.Blocks(OpRead))
	require.Equal(t, uint64(16), s.TotalBlocks())

	cur.BlockSize = 4096
	s = Compute(cur, nil, 1)
	require.Equal(t, uint64(2), s.Blocks(OpRead))
}

func TestQueueLengthWraparound(t *testing.T) {
	s := Compute(Record{StartCount: 5, EndCount: 2}, nil, 1)
	require.Equal(t, uint32(3), s.QueueLength())

	// start_count wrapped past zero while end_count has not yet.
	s = Compute(Record{StartCount: 2, EndCount: 0xFFFF_FFFE}, nil, 1)
	require.Equal(t, uint32(4), s.QueueLength())
}

func TestBusyPct(t *testing.T) {
	prev := busyRecord(Bintime{Sec: 1})
	cur := busyRecord(Bintime{Sec: 1, Frac: 1 << 63})

	s := Compute(cur, &prev, 1.0)
	require.InDelta(t, 50.0, s.BusyPct(), 1e-9)

	// Negative skew clamps to zero.
	s = Compute(prev, &cur, 1.0)
	require.Zero(t, s.BusyPct())

	// Values above 100 pass through untouched.
	cur = busyRecord(Bintime{Sec: 3})
	prev = busyRecord(Bintime{Sec: 1})
	s = Compute(cur, &prev, 1.0)
	require.InDelta(t, 200.0, s.BusyPct(), 1e-9)

	// Absolute busy time reflects the current record only.
	require.InDelta(t, 3.0, s.BusyTime(), 1e-12)
}

func TestComputeIsPure(t *testing.T) {
	cur := Record{BlockSize: 512, StartCount: 3, EndCount: 1, BusyTime: Bintime{Sec: 2, Frac: 99}}
	cur.PerClass[OpWrite] = ClassCounters{Ops: 77, Bytes: 1 << 16, Duration: Bintime{Sec: 1, Frac: 5}}
	prev := cur
	prev.PerClass[OpWrite].Ops = 33

	a := Compute(cur, &prev, 2.0)
	b := Compute(cur, &prev, 2.0)
	require.Equal(t, a, b)
}
