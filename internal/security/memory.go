// Package security provides secure memory handling for wayentry.
//
// This package implements:
// - Secure memory wiping (prevents PIN recovery from process memory)
// - Memory locking for the entry buffer (prevents swapping, best effort)
package security

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Wipe overwrites a byte slice with zeros.
// Uses an explicit loop so the compiler does not elide the writes.
func Wipe(data []byte) {
	if len(data) == 0 {
		return
	}
	for i := range data {
		data[i] = 0
	}
	runtime.KeepAlive(data)
}

// WipeRunes overwrites a rune slice with zeros.
// The dialog's text buffer stores the secret as code points; wiping it is
// part of session teardown, not an optimization.
func WipeRunes(data []rune) {
	if len(data) == 0 {
		return
	}
	for i := range data {
		data[i] = 0
	}
	runtime.KeepAlive(data)
}

// Lock pins a byte slice into RAM so it cannot be swapped out.
// Failure is non-fatal: unprivileged processes may exceed RLIMIT_MEMLOCK.
func Lock(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Mlock(data)
}

// Unlock releases a previous Lock. The slice should be wiped first.
func Unlock(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munlock(data)
}
