package source

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	golibvirt "github.com/digitalocean/go-libvirt"

	"geomstat-agent/internal/devstat"
	"geomstat-agent/internal/topology"
)

// LibvirtSource exposes every virtual block device of every libvirt domain
// as a counter record. Read/write/flush request counts, byte counts and
// nanosecond latency totals come from the domain block stats; flush maps to
// the no-payload class and the deallocation class stays at zero because
// libvirt publishes no TRIM counter.
type LibvirtSource struct {
	conn   *connManager
	logger *slog.Logger

	mu    sync.Mutex
	ids   map[string]devstat.DeviceID // "domain/disk" -> session-stable identity
	infos topology.Static
}

// OpenLibvirt dials the hypervisor once so misconfiguration surfaces at
// startup. Reconnects afterwards are handled internally with backoff.
func OpenLibvirt(ctx context.Context, uri string, retryWait, maxJitter time.Duration, logger *slog.Logger) (*LibvirtSource, error) {
	conn := newConnManager(uri, retryWait, maxJitter, logger)
	if err := conn.Connect(ctx); err != nil {
		return nil, &AcquisitionError{Op: "connect libvirt", Err: err}
	}
	return &LibvirtSource{
		conn:   conn,
		logger: logger,
		ids:    map[string]devstat.DeviceID{},
		infos:  topology.Static{},
	}, nil
}

func (s *LibvirtSource) Acquire(ctx context.Context) (*devstat.Snapshot, error) {
	client, err := s.conn.Client(ctx)
	if err != nil {
		return nil, &AcquisitionError{Op: "libvirt client", Err: err}
	}

	doms, _, err := client.ConnectListAllDomains(0, 0)
	if err != nil {
		return nil, &AcquisitionError{Op: "ConnectListAllDomains", Err: err}
	}

	taken := devstat.FromNanoseconds(uint64(time.Now().UnixNano()))
	if len(doms) == 0 {
		return devstat.NewSnapshot(taken, nil), nil
	}

	statsMask := uint32(golibvirt.DomainStatsBlock)
	recs, err := client.ConnectGetAllDomainStats(doms, statsMask, 0)
	if err != nil {
		return nil, &AcquisitionError{Op: "ConnectGetAllDomainStats", Err: err}
	}

	var records []devstat.Record
	s.mu.Lock()
	for _, rec := range recs {
		uintFields := map[string]uint64{}
		strFields := map[string]string{}
		for _, p := range rec.Params {
			if v, ok := p.Value.I.(string); ok {
				strFields[p.Field] = v
				continue
			}
			uintFields[p.Field] = asUint64(p.Value.I)
		}
		for _, disk := range buildDiskRecords(rec.Dom.Name, uintFields, strFields) {
			r := disk.rec
			r.ID = s.idForLocked(disk.name)
			records = append(records, r)
		}
	}
	s.mu.Unlock()

	return devstat.NewSnapshot(taken, records), nil
}

// idForLocked hands out one identity per device name and keeps it for the
// session, so pairing by identity survives domains being listed in a
// different order between acquisitions.
func (s *LibvirtSource) idForLocked(name string) devstat.DeviceID {
	if id, ok := s.ids[name]; ok {
		return id
	}
	id := devstat.DeviceID(len(s.ids) + 1)
	s.ids[name] = id
	s.infos[id] = topology.Info{IsProvider: true, Name: name, Rank: 1}
	return id
}

func (s *LibvirtSource) Resolver(context.Context) (topology.Resolver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(topology.Static, len(s.infos))
	for id, info := range s.infos {
		out[id] = info
	}
	return out, nil
}

// Uptime is unknown for virtual disks: their counters accumulate since
// domain boot, which the agent cannot observe. Returning 0 zeroes the
// per-second metrics of the first cycle; deltas take over from the second.
func (s *LibvirtSource) Uptime() (float64, error) { return 0, nil }

func (s *LibvirtSource) Healthy(ctx context.Context) error {
	if err := s.conn.Healthy(ctx); err != nil {
		s.logger.Warn("libvirt health check failed, reconnecting", "error", err)
		if recErr := s.conn.Reconnect(ctx); recErr != nil {
			return fmt.Errorf("libvirt reconnect: %w", recErr)
		}
	}
	return nil
}

func (s *LibvirtSource) Close() error { return s.conn.Close() }

type diskStat struct {
	name string
	rec  devstat.Record
}

// buildDiskRecords converts one domain's typed-param field maps into per-disk
// counter records. Field keys look like "block.0.rd.bytes"; "block.0.name"
// carries the disk name.
func buildDiskRecords(domain string, uintFields map[string]uint64, strFields map[string]string) []diskStat {
	names := map[string]string{}
	for key, value := range strFields {
		idx, field, ok := splitBlockField(key)
		if ok && field == "name" {
			names[idx] = strings.TrimSpace(value)
		}
	}

	byIdx := map[string]*devstat.Record{}
	get := func(idx string) *devstat.Record {
		if r, ok := byIdx[idx]; ok {
			return r
		}
		r := &devstat.Record{}
		byIdx[idx] = r
		return r
	}

	for key, value := range uintFields {
		idx, field, ok := splitBlockField(key)
		if !ok {
			continue
		}
		switch field {
		case "rd.reqs":
			get(idx).PerClass[devstat.OpRead].Ops = value
		case "rd.bytes":
			get(idx).PerClass[devstat.OpRead].Bytes = value
		case "rd.times":
			get(idx).PerClass[devstat.OpRead].Duration = devstat.FromNanoseconds(value)
		case "wr.reqs":
			get(idx).PerClass[devstat.OpWrite].Ops = value
		case "wr.bytes":
			get(idx).PerClass[devstat.OpWrite].Bytes = value
		case "wr.times":
			get(idx).PerClass[devstat.OpWrite].Duration = devstat.FromNanoseconds(value)
		case "fl.reqs":
			get(idx).PerClass[devstat.OpOther].Ops = value
		case "fl.times":
			get(idx).PerClass[devstat.OpOther].Duration = devstat.FromNanoseconds(value)
		}
	}

	idxs := make([]string, 0, len(byIdx))
	for idx := range byIdx {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool {
		a, _ := strconv.Atoi(idxs[i])
		b, _ := strconv.Atoi(idxs[j])
		return a < b
	})

	out := make([]diskStat, 0, len(idxs))
	for _, idx := range idxs {
		name := names[idx]
		if name == "" {
			name = "blk" + idx
		}
		out = append(out, diskStat{
			name: domain + "/" + name,
			rec:  *byIdx[idx],
		})
	}
	return out
}

// splitBlockField splits "block.<idx>.<field>" into its index and field
// parts; anything else (including the "block.count" total) is rejected.
func splitBlockField(key string) (idx, field string, ok bool) {
	rest, found := strings.CutPrefix(key, "block.")
	if !found {
		return "", "", false
	}
	idx, field, found = strings.Cut(rest, ".")
	if !found || idx == "" || field == "" {
		return "", "", false
	}
	if _, err := strconv.Atoi(idx); err != nil {
		return "", "", false
	}
	return idx, field, true
}

func asUint64(v any) uint64 {
	switch t := v.(type) {
	case uint64:
		return t
	case uint32:
		return uint64(t)
	case uint16:
		return uint64(t)
	case uint8:
		return uint64(t)
	case int64:
		if t < 0 {
			return 0
		}
		return uint64(t)
	case int32:
		if t < 0 {
			return 0
		}
		return uint64(t)
	case int:
		if t < 0 {
			return 0
		}
		return uint64(t)
	case float64:
		if t < 0 {
			return 0
		}
		return uint64(t)
	case float32:
		if t < 0 {
			return 0
		}
		return uint64(t)
	default:
		return 0
	}
}
