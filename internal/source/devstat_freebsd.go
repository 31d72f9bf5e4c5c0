//go:build freebsd

package source

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"geomstat-agent/internal/devstat"
	"geomstat-agent/internal/topology"
)

const (
	sysctlDevstatAll = "kern.devstat.all"
	sysctlGeomConf   = "kern.geom.confxml"
	sysctlBoottime   = "kern.boottime"
)

// DevstatSource reads the kernel's device statistics table through the
// kern.devstat.all sysctl and resolves identities through the GEOM confxml
// tree. One value per process is plenty, but nothing stops callers from
// opening several.
type DevstatSource struct {
	logger  *slog.Logger
	lastGen uint64
}

// OpenDevstat probes the stats channel once so a missing or incompatible
// kernel fails fast at startup instead of on the first tick.
func OpenDevstat(logger *slog.Logger) (*DevstatSource, error) {
	buf, err := unix.SysctlRaw(sysctlDevstatAll)
	if err != nil {
		return nil, &AcquisitionError{Op: "open " + sysctlDevstatAll, Err: err}
	}
	if _, _, err := parseDevstatTable(buf); err != nil {
		return nil, &AcquisitionError{Op: "probe " + sysctlDevstatAll, Err: err}
	}
	return &DevstatSource{logger: logger}, nil
}

func (s *DevstatSource) Acquire(_ context.Context) (*devstat.Snapshot, error) {
	buf, err := unix.SysctlRaw(sysctlDevstatAll)
	if err != nil {
		return nil, &AcquisitionError{Op: "read " + sysctlDevstatAll, Err: err}
	}
	gen, records, err := parseDevstatTable(buf)
	if err != nil {
		return nil, &AcquisitionError{Op: "decode " + sysctlDevstatAll, Err: err}
	}
	if gen != s.lastGen {
		s.logger.Debug("devstat table generation changed",
			"generation", gen, "devices", len(records))
		s.lastGen = gen
	}
	taken := devstat.FromNanoseconds(uint64(time.Now().UnixNano()))
	return devstat.NewSnapshot(taken, records), nil
}

func (s *DevstatSource) Resolver(_ context.Context) (topology.Resolver, error) {
	buf, err := unix.SysctlRaw(sysctlGeomConf)
	if err != nil {
		return nil, &AcquisitionError{Op: "read " + sysctlGeomConf, Err: err}
	}
	resolver, err := topology.ParseGeomConfXML(buf)
	if err != nil {
		return nil, &AcquisitionError{Op: "decode " + sysctlGeomConf, Err: err}
	}
	return resolver, nil
}

func (s *DevstatSource) Uptime() (float64, error) {
	tv, err := unix.SysctlTimeval(sysctlBoottime)
	if err != nil {
		return 0, &AcquisitionError{Op: "read " + sysctlBoottime, Err: err}
	}
	boot := time.Unix(tv.Sec, tv.Usec*1000)
	return time.Since(boot).Seconds(), nil
}

func (s *DevstatSource) Healthy(_ context.Context) error {
	if _, err := unix.SysctlRaw(sysctlDevstatAll); err != nil {
		return &AcquisitionError{Op: "probe " + sysctlDevstatAll, Err: err}
	}
	return nil
}

func (s *DevstatSource) Close() error { return nil }
