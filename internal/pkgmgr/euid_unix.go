//go:build unix

package pkgmgr

import "golang.org/x/sys/unix"

var effectiveUID = unix.Geteuid
