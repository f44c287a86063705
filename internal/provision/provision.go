// Package provision runs one provisioning pass: describe the host, pick
// and run an acquisition strategy, then hand the result to the build
// through the environment file.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tsukumogami/nativedep/internal/acquire"
	"github.com/tsukumogami/nativedep/internal/config"
	"github.com/tsukumogami/nativedep/internal/envfile"
	"github.com/tsukumogami/nativedep/internal/fetch"
	"github.com/tsukumogami/nativedep/internal/lock"
	"github.com/tsukumogami/nativedep/internal/log"
	"github.com/tsukumogami/nativedep/internal/pkgmgr"
	"github.com/tsukumogami/nativedep/internal/platform"
	"github.com/tsukumogami/nativedep/internal/release"
	"github.com/tsukumogami/nativedep/internal/state"
	"github.com/tsukumogami/nativedep/internal/sysexec"
	"github.com/tsukumogami/nativedep/internal/userconfig"
)

// Options are the per-run switches from the command line.
type Options struct {
	// Arch overrides the detected architecture when non-empty.
	Arch string

	// Strategies overrides the configured priority order when non-empty.
	Strategies []acquire.Name

	// EnvFile overrides the configured environment file path.
	EnvFile string

	// Force ignores a matching state record.
	Force bool

	// Fallback continues with the next strategy after a failure that is
	// not caller-correctable.
	Fallback bool
}

// Status is the outcome of one strategy in a run.
type Status string

const (
	Skipped   Status = "skipped"
	Failed    Status = "failed"
	Succeeded Status = "succeeded"
	Reused    Status = "reused"
)

// Event reports progress to the caller.
type Event struct {
	Strategy acquire.Name
	Status   Status
	Err      error
}

// Report describes a successful run.
type Report struct {
	Result   acquire.Result
	Profile  platform.Profile
	Manager  pkgmgr.Kind
	EnvFile  string
	Reused   bool
	Events   []Event
	Duration time.Duration
}

// Provisioner wires the components together. Construct with New.
type Provisioner struct {
	cfg      *userconfig.Config
	paths    *config.Config
	runner   sysexec.Runner
	managers []pkgmgr.Manager
	resolver acquire.Resolver
	fetcher  acquire.Fetcher
	detect   func() (platform.Profile, error)
	store    *state.Store
	notify   func(Event)
	progress io.Writer
	logger   log.Logger
	now      func() time.Time
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithRunner replaces the subprocess runner.
func WithRunner(r sysexec.Runner) Option {
	return func(p *Provisioner) { p.runner = r }
}

// WithManagers replaces the package manager probe list.
func WithManagers(m []pkgmgr.Manager) Option {
	return func(p *Provisioner) { p.managers = m }
}

// WithResolver replaces the release resolver.
func WithResolver(r acquire.Resolver) Option {
	return func(p *Provisioner) { p.resolver = r }
}

// WithFetcher replaces the asset fetcher.
func WithFetcher(f acquire.Fetcher) Option {
	return func(p *Provisioner) { p.fetcher = f }
}

// WithDetector replaces host detection.
func WithDetector(fn func() (platform.Profile, error)) Option {
	return func(p *Provisioner) { p.detect = fn }
}

// WithNotify receives an Event for every strategy considered.
func WithNotify(fn func(Event)) Option {
	return func(p *Provisioner) { p.notify = fn }
}

// WithProgress draws download progress on w when it is a terminal.
func WithProgress(w io.Writer) Option {
	return func(p *Provisioner) { p.progress = w }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Provisioner) { p.logger = l }
}

// New builds a Provisioner for cfg, keeping state and lock under paths.
// The release resolver and fetcher default to the GitHub API and HTTPS
// downloads configured through the environment.
func New(cfg *userconfig.Config, paths *config.Config, opts ...Option) (*Provisioner, error) {
	p := &Provisioner{
		cfg:      cfg,
		paths:    paths,
		managers: pkgmgr.Default(),
		detect:   platform.Detect,
		store:    state.NewStore(paths.StateFile),
		notify:   func(Event) {},
		logger:   log.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runner == nil {
		p.runner = sysexec.NewExec(p.logger)
	}

	if p.resolver == nil {
		r, err := release.New(cfg.Repo,
			release.WithBaseURL(config.GetAPIBase()),
			release.WithToken(config.GetGitHubToken()),
			release.WithTable(release.DefaultTable().Merge(cfg.Assets)),
			release.WithMinVersion(cfg.MinVersion),
			release.WithTimeout(config.GetAPITimeout()),
			release.WithRetryDelay(config.GetRetryDelay()),
			release.WithLogger(p.logger),
		)
		if err != nil {
			return nil, err
		}
		p.resolver = r
	}
	if p.fetcher == nil {
		fopts := []fetch.Option{
			fetch.WithRetryDelay(config.GetRetryDelay()),
			fetch.WithLogger(p.logger),
		}
		if p.progress != nil {
			fopts = append(fopts, fetch.WithProgress(p.progress))
		}
		p.fetcher = fetch.New(config.GetDownloadTimeout(), fopts...)
	}
	return p, nil
}

// Strategy builds the named strategy from the profile.
func (p *Provisioner) Strategy(name acquire.Name) acquire.Strategy {
	paths := acquire.Paths{Header: p.cfg.Header, Library: p.cfg.Library}
	switch name {
	case acquire.System:
		return &acquire.SystemPackage{Paths: paths, Packages: userconfig.PackagesByKind(p.cfg.Packages)}
	case acquire.Wheel:
		return &acquire.LanguageWheel{
			Paths:    paths,
			Module:   p.cfg.Wheel.Module,
			PipArgs:  p.cfg.Wheel.PipArgs,
			Resolver: p.resolver,
			Fetcher:  p.fetcher,
		}
	case acquire.Archive:
		return &acquire.ReleaseArchive{
			Paths:      paths,
			IncludeDir: p.cfg.IncludeDir,
			LibDir:     p.cfg.LibDir,
			Resolver:   p.resolver,
			Fetcher:    p.fetcher,
		}
	}
	return nil
}

// Probe describes the host: its profile, with opts.Arch applied, and the
// first package manager found on PATH (nil for none).
func (p *Provisioner) Probe(opts Options) (platform.Profile, pkgmgr.Manager, error) {
	profile, err := p.detect()
	if err != nil {
		return profile, nil, &ProbeError{Err: err}
	}
	if opts.Arch != "" {
		profile = profile.WithArch(platform.ParseArch(opts.Arch))
	}
	return profile, pkgmgr.Detect(p.runner, p.managers), nil
}

// Env is what strategies see of a probed host.
func (p *Provisioner) Env(profile platform.Profile, manager pkgmgr.Manager) *acquire.Env {
	return &acquire.Env{Profile: profile, Manager: manager, Runner: p.runner, Logger: p.logger}
}

// Run performs one provisioning pass. Only one Run per NATIVEDEP_HOME
// proceeds at a time; others fail with lock.ErrBusy.
func (p *Provisioner) Run(ctx context.Context, opts Options) (*Report, error) {
	start := p.now()

	l, err := lock.Acquire(p.paths.LockFile)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Release() }()

	names := opts.Strategies
	if len(names) == 0 {
		if names, err = p.cfg.StrategyNames(); err != nil {
			return nil, err
		}
	}

	profile, manager, err := p.Probe(opts)
	if err != nil {
		return nil, err
	}
	report := &Report{Profile: profile, EnvFile: p.envFile(opts)}
	if manager != nil {
		report.Manager = manager.Kind()
	}
	p.logger.Info("probed host", "platform", profile.String(), "libc", profile.Libc, "manager", report.Manager)

	if !opts.Force {
		if rec := p.reusable(profile, names); rec != nil {
			report.Result = rec.Result
			report.Reused = true
			p.emit(report, Event{Strategy: rec.Result.Strategy, Status: Reused})
			if err := p.exporter(profile).Export(&report.Result, report.EnvFile); err != nil {
				return nil, err
			}
			report.Duration = p.now().Sub(start)
			return report, nil
		}
	}

	env := p.Env(profile, manager)
	p.installToolchain(ctx, env)

	result, err := p.acquire(ctx, env, names, opts, report)
	if err != nil {
		return nil, err
	}
	report.Result = *result

	if err := p.exporter(profile).Export(result, report.EnvFile); err != nil {
		return nil, err
	}

	rec := &state.Record{
		Key:         p.stateKey(profile, names),
		Result:      *result,
		InstalledAt: p.now().UTC(),
	}
	if err := p.store.Save(rec); err != nil {
		p.logger.Warn("could not record install state", "error", err)
	}

	report.Duration = p.now().Sub(start)
	return report, nil
}

// acquire runs the strategies in order and returns the first valid result.
func (p *Provisioner) acquire(ctx context.Context, env *acquire.Env, names []acquire.Name, opts Options, report *Report) (*acquire.Result, error) {
	var skipped []Skip
	var lastErr error

	for _, name := range names {
		s := p.Strategy(name)
		if s == nil {
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		if err := s.Available(env); err != nil {
			p.logger.Info("strategy unavailable", "strategy", name, "reason", err)
			skipped = append(skipped, Skip{Strategy: name, Reason: err})
			p.emit(report, Event{Strategy: name, Status: Skipped, Err: err})
			continue
		}

		p.logger.Info("running strategy", "strategy", name)
		result, err := s.Acquire(ctx, env)
		if err == nil {
			if verr := result.Validate(); verr != nil {
				err = &acquire.Error{Strategy: name, Stage: acquire.StageValidate, Err: verr}
			}
		}
		if err == nil {
			p.emit(report, Event{Strategy: name, Status: Succeeded})
			return result, nil
		}

		p.emit(report, Event{Strategy: name, Status: Failed, Err: err})
		if ctx.Err() != nil || acquire.CallerCorrectable(err) || !opts.Fallback {
			return nil, err
		}
		p.logger.Warn("strategy failed, trying next", "strategy", name, "error", err)
		lastErr = err
	}

	if lastErr != nil {
		return nil, lastErr
	}
	pe := &ProbeError{Profile: env.Profile, Skipped: skipped}
	if env.Manager != nil {
		pe.Manager = string(env.Manager.Kind())
	}
	return nil, pe
}

// stateKey captures the inputs a recorded install depends on.
func (p *Provisioner) stateKey(profile platform.Profile, names []acquire.Name) state.Key {
	return state.Key{
		Profile:    profile.String(),
		Strategies: names,
		Repo:       p.cfg.Repo,
		IncludeDir: p.cfg.IncludeDir,
		LibDir:     p.cfg.LibDir,
		Header:     p.cfg.Header,
		Library:    p.cfg.Library,
	}
}

// reusable returns the state record when it still describes a valid
// install for this profile, strategy list and profile settings.
func (p *Provisioner) reusable(profile platform.Profile, names []acquire.Name) *state.Record {
	rec, err := p.store.Load()
	if err != nil {
		p.logger.Warn("ignoring unreadable install state", "error", err)
		return nil
	}
	if rec == nil || !rec.Matches(p.stateKey(profile, names)) {
		return nil
	}
	if err := rec.Result.Validate(); err != nil {
		p.logger.Info("recorded install no longer valid", "error", err)
		return nil
	}
	return rec
}

// installToolchain installs compiler packages for the later build. A
// failure is logged and the run continues.
func (p *Provisioner) installToolchain(ctx context.Context, env *acquire.Env) {
	if env.Manager == nil {
		return
	}
	pkgs := p.cfg.Toolchain[string(env.Manager.Kind())]
	if len(pkgs) == 0 {
		return
	}
	p.logger.Info("installing toolchain packages", "manager", env.Manager.Kind(), "packages", pkgs)
	if err := env.Manager.Install(ctx, env.Runner, pkgs...); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		p.logger.Warn("toolchain install failed, continuing", "command", env.Manager.Describe(pkgs...), "error", err)
	}
}

func (p *Provisioner) exporter(profile platform.Profile) *envfile.Exporter {
	return &envfile.Exporter{
		Vars: envfile.Vars{
			Header:      p.cfg.Env.HeaderVar,
			LibraryPath: p.cfg.Env.LibraryPathVar,
			LibraryFile: p.cfg.Env.LibraryFileVar,
		},
		OS:                profile.OS,
		Library:           p.cfg.Library,
		ExportLibraryFile: p.cfg.Env.ExportLibraryFile,
	}
}

func (p *Provisioner) envFile(opts Options) string {
	if opts.EnvFile != "" {
		return opts.EnvFile
	}
	return p.cfg.Env.File
}

func (p *Provisioner) emit(r *Report, e Event) {
	r.Events = append(r.Events, e)
	p.notify(e)
}

// Status returns the recorded state, or nil when nothing is recorded.
func (p *Provisioner) Status() (*state.Record, error) {
	return p.store.Load()
}
