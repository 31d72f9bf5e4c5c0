package devstat

// OpClass is one of the four operation classes the kernel accounts
// separately. The numeric values match the table's index order
// (DEVSTAT_NO_DATA, DEVSTAT_READ, DEVSTAT_WRITE, DEVSTAT_FREE) and must not
// be reordered.
type OpClass int

const (
	// OpOther covers operations that move no payload (flush, ioctl).
	OpOther OpClass = iota
	OpRead
	OpWrite
	// OpFree covers deallocation (TRIM-style) operations.
	OpFree

	NumOpClasses
)

func (c OpClass) String() string {
	switch c {
	case OpOther:
		return "other"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpFree:
		return "free"
	}
	return "unknown"
}

// DeviceID is an opaque correlation key assigned by the counter source. It
// is stable for the lifetime of one acquisition session and is never
// interpreted here; topology resolution happens outside this package.
type DeviceID uint64

// ClassCounters are one operation class's cumulative counters.
type ClassCounters struct {
	Ops      uint64
	Bytes    uint64
	Duration Bintime
}

// Record is an immutable copy of one device's cumulative counters at one
// instant. All values count from device attach.
type Record struct {
	ID       DeviceID
	PerClass [NumOpClasses]ClassCounters

	// BusyTime is the cumulative time the device had at least one
	// outstanding transaction.
	BusyTime Bintime

	// StartCount and EndCount are lifetime counts of transactions started
	// and completed; their wrapping difference is the instantaneous queue
	// length.
	StartCount uint32
	EndCount   uint32

	// BlockSize is the device's logical block size; 0 means unknown.
	BlockSize uint32
}
