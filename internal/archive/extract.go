package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// maxLinkHops bounds symlink resolution during extraction.
const maxLinkHops = 40

// Extract unpacks archivePath into dest. Entries that would land outside
// dest, absolute symlinks and symlinks escaping dest are rejected. Paths
// are resolved against the links already extracted, so a chain of
// relative links cannot climb out of dest either.
func Extract(archivePath string, format Format, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	dest, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return err
	}
	if format == Zip {
		return extractZip(archivePath, dest)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r, closeFn, err := decompressor(format, f)
	if err != nil {
		return err
	}
	defer closeFn()
	return extractTar(tar.NewReader(r), dest)
}

func decompressor(format Format, r io.Reader) (io.Reader, func(), error) {
	nop := func() {}
	switch format {
	case Tar:
		return r, nop, nil
	case TarGz:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nop, fmt.Errorf("gzip: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case TarXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nop, fmt.Errorf("xz: %w", err)
		}
		return xr, nop, nil
	case TarZst:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nop, fmt.Errorf("zstd: %w", err)
		}
		return zr, zr.Close, nil
	case TarLz:
		lr, err := lzip.NewReader(r)
		if err != nil {
			return nil, nop, fmt.Errorf("lzip: %w", err)
		}
		return lr, nop, nil
	}
	return nil, nop, fmt.Errorf("unsupported format %q", format)
}

func extractTar(tr *tar.Reader, dest string) error {
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		target, err := entryPath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := makeDir(dest, target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(dest, target, tr, fs.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(dest, target, hdr.Linkname); err != nil {
				return err
			}
		}
	}
}

func extractZip(archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("zip: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, zf := range zr.File {
		target, err := entryPath(dest, zf.Name)
		if err != nil {
			return err
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := makeDir(dest, target); err != nil {
				return err
			}
		case mode&fs.ModeSymlink != 0:
			link, err := readZipEntry(zf)
			if err != nil {
				return err
			}
			if err := writeSymlink(dest, target, string(link)); err != nil {
				return err
			}
		default:
			rc, err := zf.Open()
			if err != nil {
				return fmt.Errorf("zip entry %s: %w", zf.Name, err)
			}
			err = writeFile(dest, target, rc, mode)
			_ = rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func readZipEntry(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(io.LimitReader(rc, 4096))
}

// entryPath maps an archive member name to a path under dest.
func entryPath(dest, name string) (string, error) {
	clean := strings.TrimPrefix(filepath.ToSlash(name), "./")
	target := filepath.Join(dest, filepath.FromSlash(clean))
	if !within(target, dest) || filepath.IsAbs(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return target, nil
}

func within(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// resolve walks rel from base one component at a time and follows the
// symlinks it meets, failing as soon as the path leaves root. Components
// that do not exist yet are taken literally.
func resolve(root, base, rel string, hops *int) (string, error) {
	cur := base
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
		default:
			next := filepath.Join(cur, part)
			fi, err := os.Lstat(next)
			if err == nil && fi.Mode()&fs.ModeSymlink != 0 {
				if *hops++; *hops > maxLinkHops {
					return "", fmt.Errorf("too many levels of symbolic links: %s", next)
				}
				link, err := os.Readlink(next)
				if err != nil {
					return "", err
				}
				if filepath.IsAbs(link) {
					return "", fmt.Errorf("absolute symlink not allowed: %s -> %s", next, link)
				}
				if next, err = resolve(root, cur, link, hops); err != nil {
					return "", err
				}
			}
			cur = next
		}
		if !within(cur, root) {
			return "", fmt.Errorf("path escapes destination: %s", filepath.Join(base, rel))
		}
	}
	return cur, nil
}

// resolveEntry maps target, a lexical path under dest, to the resolved path
// it resolves to.
func resolveEntry(dest, target string) (string, error) {
	rel, err := filepath.Rel(dest, target)
	if err != nil {
		return "", err
	}
	var hops int
	return resolve(dest, dest, rel, &hops)
}

func makeDir(dest, target string) error {
	resolved, err := resolveEntry(dest, target)
	if err != nil {
		return err
	}
	return os.MkdirAll(resolved, 0o755)
}

func writeFile(dest, target string, r io.Reader, mode fs.FileMode) error {
	resolved, err := resolveEntry(dest, target)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(resolved, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return f.Close()
}

func writeSymlink(dest, target, link string) error {
	if filepath.IsAbs(link) {
		return fmt.Errorf("absolute symlink not allowed: %s -> %s", target, link)
	}
	parent, err := resolveEntry(dest, filepath.Dir(target))
	if err != nil {
		return err
	}
	var hops int
	if _, err := resolve(dest, parent, link, &hops); err != nil {
		return fmt.Errorf("symlink escapes destination: %s -> %s", target, link)
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	path := filepath.Join(parent, filepath.Base(target))
	_ = os.Remove(path)
	return os.Symlink(link, path)
}
