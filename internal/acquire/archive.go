package acquire

import (
	"context"

	"github.com/tsukumogami/nativedep/internal/archive"
	"github.com/tsukumogami/nativedep/internal/fetch"
	"github.com/tsukumogami/nativedep/internal/release"
)

// ReleaseArchive resolves the upstream binary archive for the platform,
// downloads it into scratch space and installs it under IncludeDir and
// LibDir.
type ReleaseArchive struct {
	Paths
	IncludeDir string
	LibDir     string

	Resolver Resolver
	Fetcher  Fetcher
}

func (s *ReleaseArchive) Name() Name { return Archive }

// Available always succeeds; the archive path needs only network access.
func (s *ReleaseArchive) Available(*Env) error { return nil }

func (s *ReleaseArchive) Acquire(ctx context.Context, env *Env) (*Result, error) {
	rel, err := s.Resolver.Resolve(ctx, env.Profile, release.Archive)
	if err != nil {
		return nil, fail(Archive, StageResolve, err)
	}

	scratch, err := fetch.NewScratch()
	if err != nil {
		return nil, fail(Archive, StageFetch, err)
	}
	defer func() { _ = scratch.Close() }()

	path, err := s.Fetcher.Fetch(ctx, fetch.Target{
		URL:  rel.Asset.DownloadURL,
		Name: rel.Asset.Name,
		Size: rel.Asset.Size,
	}, scratch.Dir())
	if err != nil {
		return nil, fail(Archive, StageFetch, err)
	}

	format, err := archive.DetectFormat(rel.Asset.Name)
	if err != nil {
		return nil, fail(Archive, StageInstall, &archive.Error{Kind: archive.UnexpectedLayout, Path: path, Err: err})
	}

	in := &archive.Installer{
		IncludeDir: s.IncludeDir,
		LibDir:     s.LibDir,
		Header:     s.Header,
		Library:    s.Library,
		OS:         env.Profile.OS,
		Runner:     env.Runner,
		Logger:     env.logger(),
	}
	installed, err := in.Install(ctx, path, format, scratch.Dir())
	if err != nil {
		return nil, fail(Archive, StageInstall, err)
	}

	return &Result{
		HeaderPath:  installed.HeaderPath,
		LibraryDir:  installed.LibraryDir,
		LibraryFile: installed.LibraryFile,
		Strategy:    Archive,
		Version:     rel.Tag,
		Source:      rel.Asset.Name,
	}, nil
}
