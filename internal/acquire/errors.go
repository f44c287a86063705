package acquire

import (
	"errors"
	"fmt"

	"github.com/tsukumogami/nativedep/internal/archive"
	"github.com/tsukumogami/nativedep/internal/release"
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageInstall  Stage = "install"
	StageResolve  Stage = "resolve"
	StageFetch    Stage = "fetch"
	StageLocate   Stage = "locate"
	StageValidate Stage = "validate"
)

// Error wraps a strategy failure with where it happened.
type Error struct {
	Strategy Name
	Stage    Stage
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s strategy failed at %s: %v", e.Strategy, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(s Name, stage Stage, err error) error {
	return &Error{Strategy: s, Stage: stage, Err: err}
}

// CallerCorrectable reports failures that retrying another strategy cannot
// fix: the operator has to pick a different target or fix permissions.
func CallerCorrectable(err error) bool {
	return errors.Is(err, release.ErrUnsupportedArchitecture) ||
		errors.Is(err, archive.ErrPermissionDenied)
}
