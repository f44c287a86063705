package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDetectLibcWithRoot(t *testing.T) {
	tests := []struct {
		name   string
		loader string
		want   string
	}{
		{"musl x86_64", "ld-musl-x86_64.so.1", "musl"},
		{"musl aarch64", "ld-musl-aarch64.so.1", "musl"},
		{"glibc", "ld-linux-x86-64.so.2", "glibc"},
		{"empty", "", "glibc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.loader != "" {
				libDir := filepath.Join(root, "lib")
				if err := os.MkdirAll(libDir, 0755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(libDir, tt.loader), nil, 0644); err != nil {
					t.Fatal(err)
				}
			}
			if got := DetectLibcWithRoot(root); got != tt.want {
				t.Errorf("DetectLibcWithRoot() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLibcFromInterpreter_NotELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	if got := libcFromInterpreter(path); got != "" {
		t.Errorf("libcFromInterpreter(non-ELF) = %q, want empty", got)
	}
}

func TestDetectLibc_Linux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("libc detection only applies to linux")
	}
	got := DetectLibc()
	if got != "glibc" && got != "musl" {
		t.Errorf("DetectLibc() = %q, want glibc or musl", got)
	}
}
