// Package archive unpacks upstream release archives and installs their
// headers and shared library into a fixed include/lib prefix.
//
// This is the only package that writes outside the scratch directory. The
// install root is shared and unversioned: a later install overwrites an
// earlier one, and the linker cache refresh on linux cannot be undone.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tsukumogami/nativedep/internal/log"
	"github.com/tsukumogami/nativedep/internal/platform"
	"github.com/tsukumogami/nativedep/internal/sysexec"
)

// Installed is where the header and library ended up.
type Installed struct {
	HeaderPath  string
	LibraryDir  string
	LibraryFile string
}

// Installer copies archive contents into IncludeDir and LibDir.
type Installer struct {
	IncludeDir string
	LibDir     string

	// Header is the header file name expected under include/, e.g. "z3.h".
	Header string
	// Library is the base library name, e.g. "z3".
	Library string

	OS     platform.OSFamily
	Runner sysexec.Runner
	Logger log.Logger
}

func (in *Installer) logger() log.Logger {
	if in.Logger == nil {
		return log.Default()
	}
	return in.Logger
}

// Install extracts archivePath under workDir and copies the include tree
// and the shared library into the install root. Nothing is copied unless
// the archive has exactly one top-level directory.
func (in *Installer) Install(ctx context.Context, archivePath string, format Format, workDir string) (*Installed, error) {
	extractDir := filepath.Join(workDir, "extract")
	if err := Extract(archivePath, format, extractDir); err != nil {
		return nil, &Error{Kind: UnexpectedLayout, Path: archivePath, Err: err}
	}

	root, err := topLevelDir(extractDir)
	if err != nil {
		return nil, &Error{Kind: UnexpectedLayout, Path: archivePath, Err: err}
	}
	in.logger().Debug("extracted archive", "root", root)

	return in.InstallTree(ctx, root)
}

// InstallTree installs from an already extracted release directory
// containing include/ and bin/ or lib/.
func (in *Installer) InstallTree(ctx context.Context, root string) (*Installed, error) {
	libFile := SharedLibraryName(in.OS, in.Library)

	srcInclude := filepath.Join(root, "include")
	if info, err := os.Stat(srcInclude); err == nil && info.IsDir() {
		if err := copyTree(srcInclude, in.IncludeDir); err != nil {
			return nil, classify(in.IncludeDir, err)
		}
	}

	if src := findLibrary(root, libFile); src != "" {
		dst := filepath.Join(in.LibDir, libFile)
		if err := copyFileAtomic(src, dst); err != nil {
			return nil, classify(dst, err)
		}
		in.logger().Info("installed library", "path", dst)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in.refreshLinkerCache(ctx)

	result := &Installed{
		HeaderPath:  filepath.Join(in.IncludeDir, in.Header),
		LibraryDir:  in.LibDir,
		LibraryFile: filepath.Join(in.LibDir, libFile),
	}
	if err := Verify(result); err != nil {
		return nil, err
	}
	return result, nil
}

// Verify checks that the header and library exist and are readable.
func Verify(r *Installed) error {
	if err := readable(r.HeaderPath); err != nil {
		return &Error{Kind: MissingHeader, Path: r.HeaderPath, Err: err}
	}
	if err := readable(r.LibraryFile); err != nil {
		return &Error{Kind: MissingLibrary, Path: r.LibraryFile, Err: err}
	}
	return nil
}

func readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// refreshLinkerCache runs ldconfig on linux. A failure only costs the
// cache entry; the exported search path still finds the library.
func (in *Installer) refreshLinkerCache(ctx context.Context) {
	if in.OS != platform.Linux || in.Runner == nil {
		return
	}
	if _, err := in.Runner.LookPath("ldconfig"); err != nil {
		in.logger().Warn("ldconfig not found, skipping linker cache refresh")
		return
	}
	if err := in.Runner.Run(ctx, "ldconfig"); err != nil {
		in.logger().Warn("linker cache refresh failed", "error", err)
	}
}

// topLevelDir returns the single directory directly under dir.
func topLevelDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return "", fmt.Errorf("expected exactly one top-level directory, found %d entries %v", len(entries), names)
	}
	if !entries[0].IsDir() {
		return "", fmt.Errorf("top-level entry %s is not a directory", entries[0].Name())
	}
	return filepath.Join(dir, entries[0].Name()), nil
}

// findLibrary looks in bin/ first, where upstream ships shared objects on
// every platform, then lib/.
func findLibrary(root, name string) string {
	for _, sub := range []string{"bin", "lib"} {
		p := filepath.Join(root, sub, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

func classify(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return &Error{Kind: PermissionDenied, Path: path, Err: err}
	}
	return &Error{Kind: IO, Path: path, Err: err}
}

// copyTree mirrors src into dst. Symlinks are resolved; special permission
// bits are dropped.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFileAtomic(path, target)
	})
}

// copyFileAtomic writes to a temporary sibling and renames it over dst so
// a process with the old library mapped keeps a consistent file.
func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm() | 0o444); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
