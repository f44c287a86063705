package platform

import (
	"bytes"
	"debug/elf"
	"path/filepath"
	"strings"
)

// DetectLibc reports "musl" or "glibc" for the running linux system.
//
// The ELF interpreter of /bin/sh is authoritative. When it cannot be read
// the presence of a musl dynamic loader under /lib decides.
func DetectLibc() string {
	if libc := libcFromInterpreter("/bin/sh"); libc != "" {
		return libc
	}
	return DetectLibcWithRoot("")
}

// libcFromInterpreter returns "" for static binaries and unreadable files.
func libcFromInterpreter(path string) string {
	f, err := elf.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_INTERP {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return ""
		}
		if strings.Contains(string(bytes.TrimRight(data, "\x00")), "musl") {
			return "musl"
		}
		return "glibc"
	}
	return ""
}

// DetectLibcWithRoot looks for lib/ld-musl-*.so.1 under root.
// An empty root means the real filesystem root.
func DetectLibcWithRoot(root string) string {
	matches, _ := filepath.Glob(filepath.Join(root, "lib", "ld-musl-*.so.1"))
	if len(matches) > 0 {
		return "musl"
	}
	return "glibc"
}
