package main

import (
	"errors"
	"os"

	"github.com/tsukumogami/nativedep/internal/acquire"
	"github.com/tsukumogami/nativedep/internal/archive"
	"github.com/tsukumogami/nativedep/internal/envfile"
	"github.com/tsukumogami/nativedep/internal/fetch"
	"github.com/tsukumogami/nativedep/internal/lock"
	"github.com/tsukumogami/nativedep/internal/provision"
	"github.com/tsukumogami/nativedep/internal/release"
)

// Exit codes for different error types.
// These enable CI scripts to distinguish between failure modes.
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0

	// ExitGeneral indicates a general error
	ExitGeneral = 1

	// ExitUsage indicates invalid arguments, flags or profile
	ExitUsage = 2

	// ExitProbe indicates the host could not be described or no
	// strategy applies to it
	ExitProbe = 3

	// ExitResolution indicates the release asset could not be resolved
	ExitResolution = 4

	// ExitFetch indicates the download failed
	ExitFetch = 5

	// ExitInstall indicates installation or validation failed
	ExitInstall = 6

	// ExitExport indicates the environment file could not be written
	ExitExport = 7

	// ExitLocked indicates another run holds the lock
	ExitLocked = 8
)

// usageError marks errors caused by the invocation itself.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitCodeFor maps an error to the exit code for its failure class. The
// most specific cause wins: a strategy error wrapping a download failure
// exits with ExitFetch.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		usage      usageError
		probeErr   *provision.ProbeError
		releaseErr *release.Error
		fetchErr   *fetch.Error
		archiveErr *archive.Error
		exportErr  *envfile.Error
		acquireErr *acquire.Error
	)
	switch {
	case errors.As(err, &usage):
		return ExitUsage
	case errors.Is(err, lock.ErrBusy):
		return ExitLocked
	case errors.As(err, &probeErr):
		return ExitProbe
	case errors.As(err, &releaseErr):
		return ExitResolution
	case errors.As(err, &fetchErr):
		return ExitFetch
	case errors.As(err, &archiveErr):
		return ExitInstall
	case errors.As(err, &exportErr):
		return ExitExport
	case errors.As(err, &acquireErr):
		return ExitInstall
	}
	return ExitGeneral
}

// exitWithCode exits with the specified exit code
func exitWithCode(code int) {
	os.Exit(code)
}
