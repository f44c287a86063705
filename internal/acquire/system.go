package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsukumogami/nativedep/internal/archive"
	"github.com/tsukumogami/nativedep/internal/pkgmgr"
)

// SystemPackage installs a distribution package through the detected
// package manager and reads the paths from the manager's standard layout.
type SystemPackage struct {
	Paths

	// Packages maps each manager to the package names carrying the
	// headers and shared library.
	Packages map[pkgmgr.Kind][]string
}

func (s *SystemPackage) Name() Name { return System }

func (s *SystemPackage) Available(env *Env) error {
	if env.Manager == nil {
		return errors.New("no system package manager found")
	}
	if len(s.Packages[env.Manager.Kind()]) == 0 {
		return fmt.Errorf("no package configured for %s", env.Manager.Kind())
	}
	return nil
}

func (s *SystemPackage) Acquire(ctx context.Context, env *Env) (*Result, error) {
	m := env.Manager
	pkgs := s.Packages[m.Kind()]
	env.logger().Info("installing system package", "manager", m.Kind(), "packages", pkgs)

	if err := m.Install(ctx, env.Runner, pkgs...); err != nil {
		return nil, fail(System, StageInstall, fmt.Errorf("%w (try: %s)", err, m.Describe(pkgs...)))
	}

	loc := m.Locations(ctx, env.Runner, env.Profile)
	header := findFile(loc.IncludeDirs, s.Header)
	if header == "" {
		return nil, fail(System, StageLocate, &archive.Error{
			Kind: archive.MissingHeader,
			Err:  fmt.Errorf("%s not found in %v", s.Header, loc.IncludeDirs),
		})
	}
	libName := archive.SharedLibraryName(env.Profile.OS, s.Library)
	lib := findFile(loc.LibDirs, libName)
	if lib == "" {
		return nil, fail(System, StageLocate, &archive.Error{
			Kind: archive.MissingLibrary,
			Err:  fmt.Errorf("%s not found in %v", libName, loc.LibDirs),
		})
	}

	return &Result{
		HeaderPath:  header,
		LibraryDir:  filepath.Dir(lib),
		LibraryFile: lib,
		Strategy:    System,
		Source:      fmt.Sprintf("%s:%v", m.Kind(), pkgs),
	}, nil
}

// findFile returns the first dirs[i]/name that exists.
func findFile(dirs []string, name string) string {
	for _, d := range dirs {
		p := filepath.Join(d, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
