//go:build windows

package lockfile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// Held reports whether path exists and cannot be opened without sharing,
// which is how the solver keeps its lock file busy on Windows.
func Held(path string) (bool, error) {
	h, err := openExclusive(path, windows.OPEN_EXISTING)
	if err != nil {
		if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) || errors.Is(err, windows.ERROR_PATH_NOT_FOUND) {
			return false, nil
		}
		return true, nil
	}
	windows.CloseHandle(h)
	return false, nil
}

// Lock is an exclusive hold on a lock file.
type Lock struct {
	h    windows.Handle
	path string
}

// Acquire creates path if needed and holds it without sharing until Release.
func Acquire(path string) (*Lock, error) {
	h, err := openExclusive(path, windows.OPEN_ALWAYS)
	if err != nil {
		return nil, fmt.Errorf("lockfile: lock %s: %w", path, err)
	}
	return &Lock{h: h, path: path}, nil
}

// Release drops the hold and removes the file, the way the solver does on
// a clean exit.
func (l *Lock) Release() error {
	if l == nil || l.h == 0 {
		return nil
	}
	err := windows.CloseHandle(l.h)
	l.h = 0
	if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

func openExclusive(path string, disposition uint32) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	return windows.CreateFile(p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, // no sharing
		nil,
		disposition,
		windows.FILE_ATTRIBUTE_NORMAL,
		0)
}
