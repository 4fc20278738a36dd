package jobapi

import "fmt"

// Build constructs the backend named by Backend. BackendAuto probes
// the job device first, then the cgroup hierarchy, and degrades to the
// noop facility when neither is usable. Explicitly requested backends
// fail instead of degrading.
func (b Builder) Build() (Facility, error) {
	b = b.withDefaults()
	log := b.Logger.Named("jobapi")

	switch b.Backend {
	case BackendAuto:
		d, err := OpenDevice(b.Device, b.ProcRoot, log)
		if err == nil {
			log.Debug("using job device", "device", b.Device)
			return d, nil
		}
		log.Debug("job device unavailable", "device", b.Device, "error", err)

		c, err := OpenCgroup(b.Prefix, b.ProcRoot, log)
		if err == nil {
			log.Debug("using cgroup hierarchy", "prefix", b.Prefix)
			return c, nil
		}
		log.Debug("cgroup hierarchy unavailable", "error", err)

		log.Info("no job container facility available, tracking disabled")
		return NewNoop(), nil
	case BackendJobdev:
		return OpenDevice(b.Device, b.ProcRoot, log)
	case BackendCgroup:
		return OpenCgroup(b.Prefix, b.ProcRoot, log)
	case BackendNoop:
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("jobapi: unknown backend %q", b.Backend)
	}
}
