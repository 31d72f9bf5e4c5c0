package source

import (
	"encoding/binary"
	"fmt"

	"geomstat-agent/internal/devstat"
)

// Layout of the kern.devstat.all sysctl payload on 64-bit little-endian
// FreeBSD (amd64, arm64): an 8-byte generation count followed by a packed
// array of struct devstat. The offsets below replicate sys/sys/devicestat.h
// field order with natural C alignment; the id field is the kernel pointer
// that doubles as the device identity in the GEOM confxml tree.
const (
	devstatGenSize = 8
	devstatRecSize = 288

	offStartCount = 8   // u_int start_count
	offEndCount   = 12  // u_int end_count
	offDeviceName = 44  // char device_name[16]
	offUnitNumber = 60  // int unit_number
	offBytes      = 64  // u_int64_t bytes[4]
	offOperations = 96  // u_int64_t operations[4]
	offDuration   = 128 // struct bintime duration[4]
	offBusyTime   = 192 // struct bintime busy_time
	offBlockSize  = 224 // u_int32_t block_size
	offID         = 272 // const void *id
)

// parseDevstatTable decodes the sysctl payload into records plus the
// kernel's table generation number.
func parseDevstatTable(buf []byte) (uint64, []devstat.Record, error) {
	if len(buf) < devstatGenSize {
		return 0, nil, fmt.Errorf("devstat table truncated: %d bytes", len(buf))
	}
	gen := binary.LittleEndian.Uint64(buf)
	body := buf[devstatGenSize:]
	if len(body)%devstatRecSize != 0 {
		return 0, nil, fmt.Errorf("devstat table body is %d bytes, not a multiple of %d (layout mismatch?)",
			len(body), devstatRecSize)
	}

	records := make([]devstat.Record, 0, len(body)/devstatRecSize)
	for off := 0; off < len(body); off += devstatRecSize {
		records = append(records, parseDevstatRecord(body[off:off+devstatRecSize]))
	}
	return gen, records, nil
}

func parseDevstatRecord(b []byte) devstat.Record {
	var r devstat.Record
	r.StartCount = binary.LittleEndian.Uint32(b[offStartCount:])
	r.EndCount = binary.LittleEndian.Uint32(b[offEndCount:])
	for c := devstat.OpClass(0); c < devstat.NumOpClasses; c++ {
		i := int(c)
		r.PerClass[c] = devstat.ClassCounters{
			Bytes:    binary.LittleEndian.Uint64(b[offBytes+8*i:]),
			Ops:      binary.LittleEndian.Uint64(b[offOperations+8*i:]),
			Duration: parseBintime(b[offDuration+16*i:]),
		}
	}
	r.BusyTime = parseBintime(b[offBusyTime:])
	r.BlockSize = binary.LittleEndian.Uint32(b[offBlockSize:])
	r.ID = devstat.DeviceID(binary.LittleEndian.Uint64(b[offID:]))
	return r
}

func parseBintime(b []byte) devstat.Bintime {
	return devstat.Bintime{
		Sec:  int64(binary.LittleEndian.Uint64(b)),
		Frac: binary.LittleEndian.Uint64(b[8:]),
	}
}

// deviceName extracts the NUL-terminated name embedded in a raw record.
// Only used for diagnostics; display names come from topology resolution.
func deviceName(b []byte) string {
	name := b[offDeviceName:offUnitNumber]
	for i, c := range name {
		if c == 0 {
			return string(name[:i])
		}
	}
	return string(name)
}
