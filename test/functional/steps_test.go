package functional

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"github.com/tsukumogami/nativedep/internal/acquire"
	"github.com/tsukumogami/nativedep/internal/archive"
	"github.com/tsukumogami/nativedep/internal/config"
	"github.com/tsukumogami/nativedep/internal/fetch"
	"github.com/tsukumogami/nativedep/internal/log"
	"github.com/tsukumogami/nativedep/internal/pkgmgr"
	"github.com/tsukumogami/nativedep/internal/platform"
	"github.com/tsukumogami/nativedep/internal/provision"
	"github.com/tsukumogami/nativedep/internal/release"
	"github.com/tsukumogami/nativedep/internal/sysexec"
	"github.com/tsukumogami/nativedep/internal/userconfig"
)

type testState struct {
	root      string
	api       *httptest.Server
	downloads *httptest.Server

	tag         string
	assets      []string
	twoRoots    bool
	profile     platform.Profile
	strategies  []acquire.Name
	managers    []pkgmgr.Manager
	executables []string

	mu         sync.Mutex
	downloaded []string

	report *provision.Report
	events []provision.Event
	err    error
}

func (s *testState) includeDir() string { return filepath.Join(s.root, "prefix", "include") }
func (s *testState) libDir() string     { return filepath.Join(s.root, "prefix", "lib") }
func (s *testState) envFile() string    { return filepath.Join(s.root, "work", ".depenv") }
func (s *testState) scratchRoot() string {
	return filepath.Join(s.root, "tmp")
}

func (s *testState) apiHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/Z3Prover/z3/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		type asset struct {
			Name string `json:"name"`
			URL  string `json:"browser_download_url"`
			Size int    `json:"size"`
		}
		body := struct {
			TagName string  `json:"tag_name"`
			Assets  []asset `json:"assets"`
		}{TagName: s.tag}
		for _, name := range s.assets {
			data, err := s.archiveFor(name)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			body.Assets = append(body.Assets, asset{Name: name, URL: s.downloads.URL + "/" + name, Size: len(data)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	return mux
}

func (s *testState) downloadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if !slices.Contains(s.assets, name) {
			http.NotFound(w, r)
			return
		}
		data, err := s.archiveFor(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.mu.Lock()
		s.downloaded = append(s.downloaded, name)
		s.mu.Unlock()
		_, _ = w.Write(data)
	})
}

// archiveFor builds the zip served for an asset name.
func (s *testState) archiveFor(name string) ([]byte, error) {
	top := strings.TrimSuffix(name, ".zip")
	files := []string{top + "/include/z3.h", top + "/bin/libz3.so"}
	if s.twoRoots {
		files = append(files, "extra/README")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f)
		if err != nil {
			return nil, err
		}
		if _, err := fmt.Fprintf(w, "contents of %s\n", f); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *testState) provisioner() (*provision.Provisioner, error) {
	cfg := userconfig.DefaultConfig()
	cfg.IncludeDir = s.includeDir()
	cfg.LibDir = s.libDir()
	cfg.Env.File = s.envFile()

	resolver, err := release.New(cfg.Repo,
		release.WithBaseURL(s.api.URL),
		release.WithHTTPClient(s.api.Client()),
		release.WithRetryDelay(0),
		release.WithLogger(log.NewNoop()),
	)
	if err != nil {
		return nil, err
	}
	fetcher := fetch.New(10*time.Second,
		fetch.WithHTTPClient(s.downloads.Client()),
		fetch.WithRetryDelay(0),
		fetch.WithLogger(log.NewNoop()),
	)

	profile := s.profile
	return provision.New(cfg, config.NewConfig(filepath.Join(s.root, "home")),
		provision.WithRunner(sysexec.NewFake(s.executables...)),
		provision.WithManagers(s.managers),
		provision.WithResolver(resolver),
		provision.WithFetcher(fetcher),
		provision.WithDetector(func() (platform.Profile, error) { return profile, nil }),
		provision.WithNotify(func(e provision.Event) { s.events = append(s.events, e) }),
		provision.WithLogger(log.NewNoop()),
	)
}

func (s *testState) run(opts provision.Options) error {
	// Scratch directories are created under TMPDIR; point it inside the
	// scenario root so leftovers can be detected.
	if err := os.MkdirAll(s.scratchRoot(), 0o755); err != nil {
		return err
	}
	prev, had := os.LookupEnv("TMPDIR")
	_ = os.Setenv("TMPDIR", s.scratchRoot())
	defer func() {
		if had {
			_ = os.Setenv("TMPDIR", prev)
		} else {
			_ = os.Unsetenv("TMPDIR")
		}
	}()

	p, err := s.provisioner()
	if err != nil {
		return err
	}
	opts.Strategies = s.strategies
	s.events = nil
	s.report, s.err = p.Run(context.Background(), opts)
	return nil
}

// Step definitions: upstream

func theLatestReleasePublishes(ctx context.Context, tag string, table *godog.Table) (context.Context, error) {
	s := getState(ctx)
	s.tag = tag
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		s.assets = append(s.assets, row.Cells[0].Value)
	}
	return ctx, nil
}

func theArchivesContainTwoRoots(ctx context.Context) (context.Context, error) {
	getState(ctx).twoRoots = true
	return ctx, nil
}

// Step definitions: host

func aLinuxHostOn(ctx context.Context, arch string) (context.Context, error) {
	s := getState(ctx)
	s.profile = platform.Profile{OS: platform.Linux, Arch: platform.ParseArch(arch), Libc: "glibc"}
	s.managers = pkgmgr.Default()
	return ctx, nil
}

func aLinuxMuslHostOn(ctx context.Context, arch string) (context.Context, error) {
	ctx, err := aLinuxHostOn(ctx, arch)
	getState(ctx).profile.Libc = "musl"
	return ctx, err
}

func noPackageManager(ctx context.Context) (context.Context, error) {
	getState(ctx).executables = nil
	return ctx, nil
}

func theStrategyOrderIs(ctx context.Context, order string) (context.Context, error) {
	s := getState(ctx)
	s.strategies = nil
	for _, part := range strings.Split(order, ",") {
		n, err := acquire.ParseName(strings.TrimSpace(part))
		if err != nil {
			return ctx, err
		}
		s.strategies = append(s.strategies, n)
	}
	return ctx, nil
}

func theEnvFileAlreadyContains(ctx context.Context, content string) (context.Context, error) {
	s := getState(ctx)
	if err := os.MkdirAll(filepath.Dir(s.envFile()), 0o755); err != nil {
		return ctx, err
	}
	return ctx, os.WriteFile(s.envFile(), []byte(content+"\n"), 0o644)
}

// Step definitions: runs

func iProvision(ctx context.Context) (context.Context, error) {
	return ctx, getState(ctx).run(provision.Options{})
}

func iProvisionForTarget(ctx context.Context, target string) (context.Context, error) {
	return ctx, getState(ctx).run(provision.Options{Arch: target})
}

func iProvisionWithFallback(ctx context.Context) (context.Context, error) {
	return ctx, getState(ctx).run(provision.Options{Fallback: true})
}

func iProvisionWithForce(ctx context.Context) (context.Context, error) {
	return ctx, getState(ctx).run(provision.Options{Force: true})
}

// Step definitions: assertions

var sentinels = map[string]error{
	"UnsupportedArchitecture": release.ErrUnsupportedArchitecture,
	"NoMatch":                 release.ErrNoMatch,
	"Unreachable":             release.ErrUnreachable,
	"UnexpectedLayout":        archive.ErrUnexpectedLayout,
	"NoStrategy":              provision.ErrNoStrategy,
}

func theRunSucceeds(ctx context.Context) error {
	s := getState(ctx)
	if s.err != nil {
		return fmt.Errorf("run failed: %w", s.err)
	}
	return s.report.Result.Validate()
}

func theRunFailsWith(ctx context.Context, kind string) error {
	s := getState(ctx)
	want, ok := sentinels[kind]
	if !ok {
		return fmt.Errorf("unknown error kind %q", kind)
	}
	if s.err == nil {
		return fmt.Errorf("expected %s, run succeeded", kind)
	}
	if !errors.Is(s.err, want) {
		return fmt.Errorf("expected %s, got: %v", kind, s.err)
	}
	return nil
}

func onlyWasDownloaded(ctx context.Context, name string) error {
	s := getState(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Equal(s.downloaded, []string{name}) {
		return fmt.Errorf("downloads = %v, want [%s]", s.downloaded, name)
	}
	return nil
}

func nothingWasDownloaded(ctx context.Context) error {
	s := getState(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.downloaded) != 0 {
		return fmt.Errorf("downloads = %v, want none", s.downloaded)
	}
	return nil
}

func theEnvFileExportsTheHeader(ctx context.Context) error {
	s := getState(ctx)
	data, err := os.ReadFile(s.envFile())
	if err != nil {
		return err
	}
	want := "export Z3_SYS_Z3_HEADER=" + filepath.Join(s.includeDir(), "z3.h")
	if !strings.HasPrefix(string(data), want+"\n") {
		return fmt.Errorf("environment file starts with %q, want %q", firstLine(data), want)
	}
	if !strings.Contains(string(data), "export LD_LIBRARY_PATH="+s.libDir()) {
		return fmt.Errorf("environment file does not prepend %s to LD_LIBRARY_PATH:\n%s", s.libDir(), data)
	}
	return nil
}

func theEnvFileDoesNotContain(ctx context.Context, text string) error {
	data, err := os.ReadFile(getState(ctx).envFile())
	if err != nil {
		return err
	}
	if strings.Contains(string(data), text) {
		return fmt.Errorf("environment file still contains %q:\n%s", text, data)
	}
	return nil
}

func noEnvFileIsWritten(ctx context.Context) error {
	if _, err := os.Stat(getState(ctx).envFile()); !os.IsNotExist(err) {
		return fmt.Errorf("environment file exists (stat error: %v)", err)
	}
	return nil
}

func theInstallRootIsEmpty(ctx context.Context) error {
	s := getState(ctx)
	for _, dir := range []string{s.includeDir(), s.libDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		if len(entries) > 0 {
			return fmt.Errorf("%s contains %d entries", dir, len(entries))
		}
	}
	return nil
}

func noScratchLeftBehind(ctx context.Context) error {
	entries, err := os.ReadDir(getState(ctx).scratchRoot())
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("scratch directory %s left behind", entries[0].Name())
	}
	return nil
}

func strategyWasSkipped(ctx context.Context, name string) error {
	return eventStatus(getState(ctx), name, provision.Skipped)
}

func strategySucceeded(ctx context.Context, name string) error {
	return eventStatus(getState(ctx), name, provision.Succeeded)
}

func theInstallWasReused(ctx context.Context) error {
	s := getState(ctx)
	if s.report == nil || !s.report.Reused {
		return fmt.Errorf("install was not reused")
	}
	return eventStatus(s, string(s.report.Result.Strategy), provision.Reused)
}

func eventStatus(s *testState, name string, want provision.Status) error {
	for _, e := range s.events {
		if string(e.Strategy) == name {
			if e.Status != want {
				return fmt.Errorf("strategy %s %s (%v), want %s", name, e.Status, e.Err, want)
			}
			return nil
		}
	}
	return fmt.Errorf("no event for strategy %s in %v", name, s.events)
}

func firstLine(data []byte) string {
	line, _, _ := strings.Cut(string(data), "\n")
	return line
}
