//go:build windows

package failure

import (
	"errors"
	"io/fs"
	"syscall"
)

// Win32 error codes surfaced by file operations.
const (
	errorPathNotFound       syscall.Errno = 3
	errorHandleDiskFull     syscall.Errno = 39
	errorDiskFull           syscall.Errno = 112
	errorFilenameExcedRange syscall.Errno = 206
	errorDirectory          syscall.Errno = 267
)

func isDiskFull(err error) bool {
	return errors.Is(err, errorDiskFull) || errors.Is(err, errorHandleDiskFull)
}

func isNameTooLong(err error) bool {
	return errors.Is(err, errorFilenameExcedRange)
}

func isPathNotFound(err error) bool {
	return errors.Is(err, errorPathNotFound) || errors.Is(err, errorDirectory) || errors.Is(err, fs.ErrNotExist)
}
