package source

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"geomstat-agent/internal/devstat"
)

func putBintime(b []byte, bt devstat.Bintime) {
	binary.LittleEndian.PutUint64(b, uint64(bt.Sec))
	binary.LittleEndian.PutUint64(b[8:], bt.Frac)
}

func buildRawRecord(t *testing.T, rec devstat.Record, name string) []byte {
	t.Helper()
	b := make([]byte, devstatRecSize)
	binary.LittleEndian.PutUint32(b[offStartCount:], rec.StartCount)
	binary.LittleEndian.PutUint32(b[offEndCount:], rec.EndCount)
	copy(b[offDeviceName:offUnitNumber], name)
	for c := devstat.OpClass(0); c < devstat.NumOpClasses; c++ {
		i := int(c)
		binary.LittleEndian.PutUint64(b[offBytes+8*i:], rec.PerClass[c].Bytes)
		binary.LittleEndian.PutUint64(b[offOperations+8*i:], rec.PerClass[c].Ops)
		putBintime(b[offDuration+16*i:], rec.PerClass[c].Duration)
	}
	putBintime(b[offBusyTime:], rec.BusyTime)
	binary.LittleEndian.PutUint32(b[offBlockSize:], rec.BlockSize)
	binary.LittleEndian.PutUint64(b[offID:], uint64(rec.ID))
	return b
}

func TestParseDevstatTable(t *testing.T) {
	want := devstat.Record{
		ID:         devstat.DeviceID(0xfffff80003b17a00),
		StartCount: 1201,
		EndCount:   1199,
		BlockSize:  512,
		BusyTime:   devstat.Bintime{Sec: 42, Frac: 1 << 63},
	}
	want.PerClass[devstat.OpRead] = devstat.ClassCounters{
		Ops:      1000,
		Bytes:    4_096_000,
		Duration: devstat.Bintime{Sec: 2, Frac: 7},
	}
	want.PerClass[devstat.OpWrite] = devstat.ClassCounters{
		Ops:      500,
		Bytes:    2_048_000,
		Duration: devstat.Bintime{Sec: 1},
	}
	want.PerClass[devstat.OpFree] = devstat.ClassCounters{Ops: 3}

	buf := make([]byte, devstatGenSize)
	binary.LittleEndian.PutUint64(buf, 17)
	buf = append(buf, buildRawRecord(t, want, "ada0")...)
	buf = append(buf, buildRawRecord(t, devstat.Record{ID: 2}, "cd0")...)

	gen, records, err := parseDevstatTable(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(17), gen)
	require.Len(t, records, 2)
	require.Equal(t, want, records[0])
	require.Equal(t, devstat.DeviceID(2), records[1].ID)
}

func TestParseDevstatTableBadSizes(t *testing.T) {
	_, _, err := parseDevstatTable([]byte{1, 2, 3})
	require.Error(t, err)

	// Generation present but a torn record follows.
	buf := make([]byte, devstatGenSize+devstatRecSize-1)
	_, _, err = parseDevstatTable(buf)
	require.Error(t, err)
}

func TestParseDevstatTableEmpty(t *testing.T) {
	buf := make([]byte, devstatGenSize)
	binary.LittleEndian.PutUint64(buf, 3)
	gen, records, err := parseDevstatTable(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(3), gen)
	require.Empty(t, records)
}

func TestDeviceName(t *testing.T) {
	raw := buildRawRecord(t, devstat.Record{}, "nvd1")
	require.Equal(t, "nvd1", deviceName(raw))
}
