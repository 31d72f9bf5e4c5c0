package devstat

// Stats holds the metrics derived from two counter records of the same
// device. Compute is a pure function of its inputs; a Stats value has no
// identity of its own and can be recomputed at will.
//
// Every accessor that divides guards its denominator and returns 0 instead
// of NaN or Inf, so output is always printable.
type Stats struct {
	etime float64

	transfers [NumOpClasses]uint64
	bytes     [NumOpClasses]uint64
	blocks    [NumOpClasses]uint64
	duration  [NumOpClasses]float64

	totalTransfers uint64
	totalBytes     uint64
	totalBlocks    uint64
	totalDuration  float64

	busyDelta   float64
	busyTime    float64
	queueLength uint32
}

// Compute derives statistics between two records, which must correspond to
// the same device and should come from two separate snapshots.
//
// If prev is nil, cumulative statistics since device attach are returned.
// etime is the elapsed time in seconds between the two snapshots (or since
// boot for the nil-prev case); it is supplied by the caller, not derived
// here. etime <= 0 zeroes every per-second metric.
//
// A prev record that was actually captured for a different device is not
// detectable here and yields well-typed nonsense; pairing correctness is the
// caller's contract.
func Compute(cur Record, prev *Record, etime float64) Stats {
	s := Stats{
		etime:       etime,
		busyTime:    cur.BusyTime.Seconds(),
		queueLength: cur.StartCount - cur.EndCount,
	}

	blockDenom := uint64(512)
	if cur.BlockSize > 0 {
		blockDenom = uint64(cur.BlockSize)
	}

	for c := OpClass(0); c < NumOpClasses; c++ {
		var old ClassCounters
		if prev != nil {
			old = prev.PerClass[c]
		}
		now := cur.PerClass[c]

		s.transfers[c] = now.Ops - old.Ops
		s.bytes[c] = now.Bytes - old.Bytes
		s.blocks[c] = s.bytes[c] / blockDenom
		s.duration[c] = now.Duration.Sub(old.Duration).Seconds()

		s.totalTransfers += s.transfers[c]
		s.totalBytes += s.bytes[c]
		s.totalDuration += s.duration[c]
	}
	s.totalBlocks = s.totalBytes / blockDenom

	var oldBusy Bintime
	if prev != nil {
		oldBusy = prev.BusyTime
	}
	s.busyDelta = cur.BusyTime.Sub(oldBusy).Seconds()

	return s
}

// Transfers returns the number of class-c operations completed in the
// interval.
func (s *Stats) Transfers(c OpClass) uint64 { return s.transfers[c] }

// Bytes returns the number of bytes moved by class-c operations in the
// interval.
func (s *Stats) Bytes(c OpClass) uint64 { return s.bytes[c] }

// Blocks returns Bytes(c) divided by the device block size (512 when the
// device reports none).
func (s *Stats) Blocks(c OpClass) uint64 { return s.blocks[c] }

// Duration returns the seconds the device spent on class-c operations in
// the interval.
func (s *Stats) Duration(c OpClass) float64 { return s.duration[c] }

func (s *Stats) TotalTransfers() uint64 { return s.totalTransfers }
func (s *Stats) TotalBytes() uint64     { return s.totalBytes }
func (s *Stats) TotalBlocks() uint64    { return s.totalBlocks }
func (s *Stats) TotalDuration() float64 { return s.totalDuration }

func (s *Stats) TransfersPerSecond(c OpClass) float64 { return s.perSecond(s.transfers[c]) }
func (s *Stats) TotalTransfersPerSecond() float64     { return s.perSecond(s.totalTransfers) }

func (s *Stats) BlocksPerSecond(c OpClass) float64 { return s.perSecond(s.blocks[c]) }
func (s *Stats) TotalBlocksPerSecond() float64     { return s.perSecond(s.totalBlocks) }

// MBPerSecond returns class-c throughput in MiB/s.
func (s *Stats) MBPerSecond(c OpClass) float64 { return s.perSecond(s.bytes[c]) / (1 << 20) }
func (s *Stats) TotalMBPerSecond() float64     { return s.perSecond(s.totalBytes) / (1 << 20) }

// KBPerTransfer returns the average class-c transfer size in KiB.
func (s *Stats) KBPerTransfer(c OpClass) float64 {
	return kbPerTransfer(s.bytes[c], s.transfers[c])
}

func (s *Stats) TotalKBPerTransfer() float64 {
	return kbPerTransfer(s.totalBytes, s.totalTransfers)
}

// MsPerTransfer returns the average class-c latency in milliseconds.
func (s *Stats) MsPerTransfer(c OpClass) float64 {
	return msPerTransfer(s.duration[c], s.transfers[c])
}

func (s *Stats) TotalMsPerTransfer() float64 {
	return msPerTransfer(s.totalDuration, s.totalTransfers)
}

// BusyTime returns the absolute cumulative busy time of the current record,
// in seconds. Not a delta.
func (s *Stats) BusyTime() float64 { return s.busyTime }

// BusyPct returns the percentage of the interval during which the device had
// one or more outstanding transactions. Clamped at zero because counter or
// clock skew can produce a small negative artifact; values above 100 are
// preserved since they signal a measurement irregularity the caller may want
// to see.
func (s *Stats) BusyPct() float64 {
	if s.etime <= 0 {
		return 0
	}
	pct := s.busyDelta / s.etime * 100
	if pct < 0 {
		return 0
	}
	return pct
}

// QueueLength returns the number of transactions outstanding when the
// current record was captured. Instantaneous, not a delta; the unsigned
// wrapping difference is correct even across counter wraparound.
func (s *Stats) QueueLength() uint32 { return s.queueLength }

func (s *Stats) perSecond(v uint64) float64 {
	if s.etime > 0 {
		return float64(v) / s.etime
	}
	return 0
}

func kbPerTransfer(bytes, transfers uint64) float64 {
	if transfers > 0 {
		return float64(bytes) / (1 << 10) / float64(transfers)
	}
	return 0
}

func msPerTransfer(duration float64, transfers uint64) float64 {
	if transfers > 0 {
		return duration * 1000 / float64(transfers)
	}
	return 0
}
