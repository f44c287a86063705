package acquire

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tsukumogami/nativedep/internal/archive"
	"github.com/tsukumogami/nativedep/internal/fetch"
	"github.com/tsukumogami/nativedep/internal/release"
)

// LanguageWheel installs the Python wheel that bundles the shared library
// and derives the paths from the interpreter's site-packages directory.
//
// The paths depend on the wheel's internal layout (<purelib>/<Module>/include
// and <purelib>/<Module>/lib), which upstream could change between releases.
type LanguageWheel struct {
	Paths

	// Module is the top-level package directory inside site-packages.
	Module string

	// PipArgs are appended to the install command, e.g.
	// --break-system-packages on distributions that mark the system
	// interpreter as externally managed.
	PipArgs []string

	Resolver Resolver
	Fetcher  Fetcher
}

func (s *LanguageWheel) Name() Name { return Wheel }

func (s *LanguageWheel) Available(env *Env) error {
	if _, err := s.python(env); err != nil {
		return err
	}
	return nil
}

func (s *LanguageWheel) python(env *Env) (string, error) {
	for _, name := range []string{"python3", "python"} {
		if p, err := env.Runner.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", errors.New("no python interpreter on PATH")
}

func (s *LanguageWheel) Acquire(ctx context.Context, env *Env) (*Result, error) {
	python, err := s.python(env)
	if err != nil {
		return nil, fail(Wheel, StageInstall, err)
	}

	rel, err := s.Resolver.Resolve(ctx, env.Profile, release.Wheel)
	if err != nil {
		return nil, fail(Wheel, StageResolve, err)
	}

	scratch, err := fetch.NewScratch()
	if err != nil {
		return nil, fail(Wheel, StageFetch, err)
	}
	defer func() { _ = scratch.Close() }()

	wheel, err := s.Fetcher.Fetch(ctx, fetch.Target{
		URL:  rel.Asset.DownloadURL,
		Name: rel.Asset.Name,
		Size: rel.Asset.Size,
	}, scratch.Dir())
	if err != nil {
		return nil, fail(Wheel, StageFetch, err)
	}

	argv := s.installCommand(env, python, wheel)
	env.logger().Info("installing wheel", "wheel", rel.Asset.Name, "installer", argv[0])
	if err := env.Runner.Run(ctx, argv[0], argv[1:]...); err != nil {
		return nil, fail(Wheel, StageInstall, err)
	}

	out, err := env.Runner.Output(ctx, python, "-c", "import sysconfig; print(sysconfig.get_paths()['purelib'])")
	if err != nil {
		return nil, fail(Wheel, StageLocate, err)
	}
	purelib := strings.TrimSpace(string(out))
	if purelib == "" {
		return nil, fail(Wheel, StageLocate, errors.New("interpreter reported an empty purelib directory"))
	}

	base := filepath.Join(purelib, s.Module)
	result := &Result{
		HeaderPath:  filepath.Join(base, "include", s.Header),
		LibraryDir:  filepath.Join(base, "lib"),
		LibraryFile: filepath.Join(base, "lib", archive.SharedLibraryName(env.Profile.OS, s.Library)),
		Strategy:    Wheel,
		Version:     rel.Tag,
		Source:      rel.Asset.Name,
	}
	if err := archive.Verify(&archive.Installed{
		HeaderPath:  result.HeaderPath,
		LibraryDir:  result.LibraryDir,
		LibraryFile: result.LibraryFile,
	}); err != nil {
		return nil, fail(Wheel, StageLocate, fmt.Errorf("wheel layout under %s: %w", base, err))
	}
	return result, nil
}

// installCommand prefers uv, which is what CI images that ship it expect,
// and falls back to the interpreter's own pip.
func (s *LanguageWheel) installCommand(env *Env, python, wheel string) []string {
	var argv []string
	if uv, err := env.Runner.LookPath("uv"); err == nil {
		argv = []string{uv, "pip", "install", "--system", "--python", python}
	} else {
		argv = []string{python, "-m", "pip", "install", "--no-input"}
	}
	argv = append(argv, s.PipArgs...)
	return append(argv, wheel)
}
