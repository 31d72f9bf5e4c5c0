package devstat

// Snapshot is one acquisition of the kernel's device counter table: an
// ordered series of records plus the instant the table was read. Records are
// fully materialized at acquisition time and immutable afterward.
//
// The kernel does not freeze the table while it is read, so a snapshot is
// only weakly consistent across devices.
type Snapshot struct {
	taken   Bintime
	records []Record
}

// NewSnapshot copies records into a fresh snapshot taken at the given time.
func NewSnapshot(taken Bintime, records []Record) *Snapshot {
	return &Snapshot{
		taken:   taken,
		records: append([]Record(nil), records...),
	}
}

// Timestamp returns the instant the series was acquired.
func (s *Snapshot) Timestamp() Bintime { return s.taken }

// Len returns the number of devices in the snapshot.
func (s *Snapshot) Len() int { return len(s.records) }

// Records returns the records in acquisition order. The slice is a copy, so
// callers can iterate, re-iterate, or mutate it without touching the
// snapshot.
func (s *Snapshot) Records() []Record {
	return append([]Record(nil), s.records...)
}

// Pair couples a current record with the matching record of a previous
// snapshot, if one exists.
type Pair struct {
	Cur  Record
	Prev *Record
}

// IterPair zips s against an optional previous snapshot positionally: the
// k-th record of s pairs with the k-th record of prev. This matches the
// kernel's own pairing model and relies on the table keeping a stable device
// order between consecutive acquisitions; a device arriving or departing
// between the two shifts every later pairing. Prefer PairByID unless
// bug-for-bug positional behavior is required.
func (s *Snapshot) IterPair(prev *Snapshot) []Pair {
	pairs := make([]Pair, len(s.records))
	for i := range s.records {
		pairs[i] = Pair{Cur: s.records[i]}
		if prev != nil && i < len(prev.records) {
			pairs[i].Prev = &prev.records[i]
		}
	}
	return pairs
}

// PairByID matches records by device identity instead of table position.
// Devices present only in the current snapshot pair with nil (since-attach
// semantics); devices present only in the previous snapshot are dropped.
// Costs one map allocation per call.
func (s *Snapshot) PairByID(prev *Snapshot) []Pair {
	var byID map[DeviceID]*Record
	if prev != nil {
		byID = make(map[DeviceID]*Record, len(prev.records))
		for i := range prev.records {
			byID[prev.records[i].ID] = &prev.records[i]
		}
	}
	pairs := make([]Pair, len(s.records))
	for i := range s.records {
		pairs[i] = Pair{Cur: s.records[i], Prev: byID[s.records[i].ID]}
	}
	return pairs
}
