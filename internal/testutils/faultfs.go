package testutils

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// ErrInjected is the cause of every fault a FaultFs injects without an
// explicit error.
var ErrInjected = errors.New("injected fault")

// Op names a filesystem operation a FaultFs can fail.
type Op string

const (
	OpCreate Op = "create"
	OpOpen   Op = "open"
	OpMkdir  Op = "mkdir"
	OpRename Op = "rename"
	OpChmod  Op = "chmod"
	OpRemove Op = "remove"
)

// Fault fails one operation on every path containing Match.
type Fault struct {
	Op    Op
	Match string
	Err   error
	Delay time.Duration

	// Remaining injections; -1 for unlimited.
	Remaining int64
	Count     int64
}

// Times limits the fault to n injections.
func (f *Fault) Times(n int64) *Fault {
	f.Remaining = n
	return f
}

// WithDelay sleeps before failing, to widen race windows.
func (f *Fault) WithDelay(d time.Duration) *Fault {
	f.Delay = d
	return f
}

// FaultFs wraps an afero.Fs and fails selected operations.
type FaultFs struct {
	afero.Fs

	mu     sync.Mutex
	faults []*Fault
}

// NewFaultFs wraps base.
func NewFaultFs(base afero.Fs) *FaultFs {
	return &FaultFs{Fs: base}
}

// Inject fails op on every path containing match until the fault is
// exhausted. A nil err injects ErrInjected.
func (f *FaultFs) Inject(op Op, match string, err error) *Fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	fault := &Fault{Op: op, Match: match, Err: err, Remaining: -1}
	f.faults = append(f.faults, fault)
	return fault
}

// Injected reports how many times op was failed.
func (f *FaultFs) Injected(op Op) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, fault := range f.faults {
		if fault.Op == op {
			n += fault.Count
		}
	}
	return n
}

// Clear removes every fault.
func (f *FaultFs) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

func (f *FaultFs) check(op Op, path string) error {
	f.mu.Lock()
	var hit *Fault
	for _, fault := range f.faults {
		if fault.Op != op || fault.Remaining == 0 || !strings.Contains(path, fault.Match) {
			continue
		}
		fault.Count++
		if fault.Remaining > 0 {
			fault.Remaining--
		}
		hit = fault
		break
	}
	f.mu.Unlock()

	if hit == nil {
		return nil
	}
	if hit.Delay > 0 {
		time.Sleep(hit.Delay)
	}
	err := hit.Err
	if err == nil {
		err = ErrInjected
	}
	return &os.PathError{Op: string(op), Path: path, Err: err}
}

func (f *FaultFs) Create(name string) (afero.File, error) {
	if err := f.check(OpCreate, name); err != nil {
		return nil, err
	}
	return f.Fs.Create(name)
}

func (f *FaultFs) Open(name string) (afero.File, error) {
	if err := f.check(OpOpen, name); err != nil {
		return nil, err
	}
	return f.Fs.Open(name)
}

func (f *FaultFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	op := OpOpen
	if flag&os.O_CREATE != 0 {
		op = OpCreate
	}
	if err := f.check(op, name); err != nil {
		return nil, err
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *FaultFs) Mkdir(name string, perm os.FileMode) error {
	if err := f.check(OpMkdir, name); err != nil {
		return err
	}
	return f.Fs.Mkdir(name, perm)
}

func (f *FaultFs) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check(OpMkdir, path); err != nil {
		return err
	}
	return f.Fs.MkdirAll(path, perm)
}

// Rename matches the destination path.
func (f *FaultFs) Rename(oldname, newname string) error {
	if err := f.check(OpRename, newname); err != nil {
		return err
	}
	return f.Fs.Rename(oldname, newname)
}

func (f *FaultFs) Chmod(name string, mode os.FileMode) error {
	if err := f.check(OpChmod, name); err != nil {
		return err
	}
	return f.Fs.Chmod(name, mode)
}

func (f *FaultFs) Remove(name string) error {
	if err := f.check(OpRemove, name); err != nil {
		return err
	}
	return f.Fs.Remove(name)
}

func (f *FaultFs) RemoveAll(path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}
	return f.Fs.RemoveAll(path)
}

func (f *FaultFs) Name() string {
	return "FaultFs(" + f.Fs.Name() + ")"
}
