//go:build unix

package platform

import (
	"bytes"

	"golang.org/x/sys/unix"
)

// machine returns the kernel machine name (uname -m).
func machine() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return ""
	}
	return string(bytes.TrimRight(u.Machine[:], "\x00"))
}
