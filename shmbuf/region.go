// Package shmbuf manages the shared memory behind a surface: a mapped
// memory region, the wl_buffer carved from it, and the replacement of both
// when the surface changes size.
package shmbuf

import (
	"os"

	"github.com/BurntSushi/wlgb"
	memfd "github.com/justincormack/go-memfd"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// AllocationError is returned when any step of building a region or buffer
// fails. Whatever had been acquired by then has been released.
type AllocationError struct {
	Op  string
	Err error
}

func (e *AllocationError) Error() string {
	return "shm " + e.Op + ": " + e.Err.Error()
}

func (e *AllocationError) Unwrap() error { return e.Err }

// errUnsupported marks a probe whose mechanism the platform lacks. The next
// probe is tried instead.
var errUnsupported = errors.New("not supported on this system")

// A probe opens an empty file that can back a shared mapping.
type probe struct {
	name string
	open func() (*os.File, error)
}

// probes are tried in order; the first one that is supported wins.
var probes = []probe{
	{"memfd", openMemfd},
	{"tmpfile", openTempFile},
}

func openMemfd() (*os.File, error) {
	mfd, err := memfd.Create()
	if err != nil {
		if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EOPNOTSUPP) {
			return nil, errors.Wrap(errUnsupported, err.Error())
		}
		return nil, err
	}
	return mfd.File, nil
}

// openTempFile creates a file and unlinks it at once: the descriptor keeps
// the storage alive and nothing is left on disk once it is closed.
func openTempFile() (*os.File, error) {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if len(dir) == 0 {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "wlgb-shm-*")
	if err != nil {
		return nil, err
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func openBacking() (*os.File, string, error) {
	for _, p := range probes {
		f, err := p.open()
		if err == nil {
			return f, p.name, nil
		}
		if errors.Is(err, errUnsupported) {
			wlgb.Logger.Debug("shm probe unsupported", "probe", p.name, "err", err)
			continue
		}
		return nil, p.name, errors.Wrap(err, p.name)
	}
	return nil, "", errors.New("no way to create shared memory")
}

// Region is a shared memory segment mapped read/write into this process.
// It owns both the descriptor and the mapping; Close releases whichever of
// them is still held, exactly once.
type Region struct {
	file  *os.File
	data  []byte
	probe string
}

// NewRegion creates and maps a region of size bytes. Any failure releases
// everything acquired so far.
func NewRegion(size int) (r *Region, err error) {
	if size <= 0 {
		return nil, &AllocationError{"region", errors.Errorf("invalid size %d", size)}
	}

	f, name, err := openBacking()
	if err != nil {
		return nil, &AllocationError{"open", err}
	}
	r = &Region{file: f, probe: name}
	defer func() {
		if err != nil {
			r.Close()
			r = nil
		}
	}()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, &AllocationError{"truncate", err}
	}
	if name == "memfd" {
		// The compositor maps the same memory; forbid shrinking it under
		// its feet.
		_, serr := unix.FcntlInt(f.Fd(), unix.F_ADD_SEALS,
			unix.F_SEAL_SHRINK|unix.F_SEAL_SEAL)
		if serr != nil {
			wlgb.Logger.Debug("could not seal shm region", "err", serr)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &AllocationError{"mmap", err}
	}
	r.data = data
	return r, nil
}

// Fd returns the descriptor backing the region, or -1 once it has been
// released.
func (r *Region) Fd() int {
	if r.file == nil {
		return -1
	}
	return int(r.file.Fd())
}

// Bytes returns the mapped memory.
func (r *Region) Bytes() []byte { return r.data }

// Size returns the size of the mapping in bytes.
func (r *Region) Size() int { return len(r.data) }

// Probe names the mechanism that created the region.
func (r *Region) Probe() string { return r.probe }

// ReleaseFile closes the descriptor and keeps the mapping. Once the
// compositor has its own copy of the descriptor, ours is no longer needed.
func (r *Region) ReleaseFile() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Close unmaps the memory and closes the descriptor if still open.
func (r *Region) Close() error {
	var err error
	if r.data != nil {
		err = unix.Munmap(r.data)
		r.data = nil
	}
	if ferr := r.ReleaseFile(); err == nil {
		err = ferr
	}
	return err
}
