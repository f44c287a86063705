// Package release resolves the upstream release asset for a platform.
//
// One GET to the repository's latest-release endpoint is made per
// resolution (plus one retry on transport failure). Assets are matched by
// substring in the order the API lists them; the first hit wins.
package release

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/tsukumogami/nativedep/internal/httputil"
	"github.com/tsukumogami/nativedep/internal/log"
	"github.com/tsukumogami/nativedep/internal/platform"
)

// Release is a resolved asset together with the release it belongs to.
type Release struct {
	Tag string

	// Version is parsed from Tag; nil when the tag has no version number.
	Version *semver.Version

	Asset Asset
}

// Resolver looks up release assets on a GitHub-compatible API.
type Resolver struct {
	client        *github.Client
	httpClient    *http.Client
	owner, repo   string
	table         Table
	minVersion    *semver.Constraints
	timeout       time.Duration
	retryDelay    time.Duration
	token         string
	authenticated bool
	logger        log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithBaseURL points the resolver at a different API host, such as a
// GitHub Enterprise instance or a test server.
func WithBaseURL(base string) Option {
	return func(r *Resolver) error {
		u, err := url.Parse(strings.TrimRight(base, "/") + "/")
		if err != nil {
			return fmt.Errorf("invalid API base %q: %w", base, err)
		}
		r.client.BaseURL = u
		return nil
	}
}

// WithHTTPClient replaces the API transport.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) error {
		base := r.client.BaseURL
		r.httpClient = c
		r.client = github.NewClient(c)
		r.client.BaseURL = base
		return nil
	}
}

// WithToken authenticates API calls, which raises the rate limit.
// An empty token leaves the client anonymous.
func WithToken(token string) Option {
	return func(r *Resolver) error {
		r.token = token
		return nil
	}
}

// WithTable replaces the asset pattern table.
func WithTable(t Table) Option {
	return func(r *Resolver) error {
		r.table = t
		return nil
	}
}

// WithMinVersion rejects releases whose version does not satisfy the
// constraint (e.g. ">= 4.12").
func WithMinVersion(constraint string) Option {
	return func(r *Resolver) error {
		if constraint == "" {
			return nil
		}
		c, err := semver.NewConstraint(constraint)
		if err != nil {
			return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
		}
		r.minVersion = c
		return nil
	}
}

// WithTimeout bounds each API attempt.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) error {
		r.timeout = d
		return nil
	}
}

// WithRetryDelay sets the wait before the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Resolver) error {
		r.retryDelay = d
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *Resolver) error {
		r.logger = l
		return nil
	}
}

// New creates a Resolver for repo ("owner/name").
func New(repo string, opts ...Option) (*Resolver, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid repo %q: expected owner/name", repo)
	}

	hc := httputil.NewClient(httputil.Options{})
	r := &Resolver{
		client:     github.NewClient(hc),
		httpClient: hc,
		owner:      owner,
		repo:       name,
		table:      DefaultTable(),
		timeout:    30 * time.Second,
		retryDelay: 2 * time.Second,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, r.httpClient)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: r.token})
		base := r.client.BaseURL
		r.client = github.NewClient(oauth2.NewClient(ctx, ts))
		r.client.BaseURL = base
		r.authenticated = true
	}
	return r, nil
}

// Resolve fetches the latest release and selects the asset for p on ch.
func (r *Resolver) Resolve(ctx context.Context, p platform.Profile, ch Channel) (*Release, error) {
	pattern, err := r.table.Lookup(ch, p)
	if err != nil {
		return nil, err
	}

	rel, err := r.latest(ctx)
	if err != nil {
		return nil, newError(Unreachable, ch, p, err)
	}

	tag := rel.GetTagName()
	version := parseTagVersion(tag)
	r.logger.Debug("latest release", "repo", r.owner+"/"+r.repo, "tag", tag, "assets", len(rel.Assets))

	if r.minVersion != nil {
		if version == nil {
			return nil, newError(NoMatch, ch, p,
				fmt.Errorf("release %s has no version to check against %s", tag, r.minVersion))
		}
		if !r.minVersion.Check(version) {
			return nil, newError(NoMatch, ch, p,
				fmt.Errorf("release %s does not satisfy %s", tag, r.minVersion))
		}
	}

	assets := make([]Asset, 0, len(rel.Assets))
	for _, a := range rel.Assets {
		assets = append(assets, Asset{
			Name:        a.GetName(),
			DownloadURL: a.GetBrowserDownloadURL(),
			Size:        int64(a.GetSize()),
		})
	}

	asset, ok := Select(assets, pattern)
	if !ok {
		return nil, newError(NoMatch, ch, p,
			fmt.Errorf("none of %d assets in %s match %s", len(assets), tag, pattern))
	}
	r.logger.Info("resolved asset", "asset", asset.Name, "tag", tag)
	return &Release{Tag: tag, Version: version, Asset: asset}, nil
}

func (r *Resolver) latest(ctx context.Context) (*github.RepositoryRelease, error) {
	var rel *github.RepositoryRelease
	policy := httputil.RetryPolicy{
		Attempts:  2,
		Delay:     r.retryDelay,
		Retryable: retryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			r.logger.Warn("release API request failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		},
	}
	err := policy.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		var err error
		rel, _, err = r.client.Repositories.GetLatestRelease(ctx, r.owner, r.repo)
		return r.describe(err)
	})
	return rel, err
}

// describe adds operator hints to rate-limit and not-found failures.
func (r *Resolver) describe(err error) error {
	if err == nil {
		return nil
	}
	var rl *github.RateLimitError
	if errors.As(err, &rl) {
		hint := "set GITHUB_TOKEN to raise the limit"
		if r.authenticated {
			hint = "authenticated limit exhausted"
		}
		return fmt.Errorf("rate limited until %s (%s): %w", rl.Rate.Reset.Format(time.RFC3339), hint, err)
	}
	var resp *github.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil && resp.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("repository %s/%s has no published release: %w", r.owner, r.repo, err)
	}
	return err
}

// retryable is false for client errors other than 429; repeating those
// cannot change the outcome.
func retryable(err error) bool {
	var rl *github.RateLimitError
	if errors.As(err, &rl) {
		return false
	}
	var resp *github.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		code := resp.Response.StatusCode
		return code >= 500 || code == http.StatusTooManyRequests
	}
	return true
}

var tagVersion = regexp.MustCompile(`\d+(\.\d+){0,2}`)

// parseTagVersion extracts the version number from tags such as
// "z3-4.13.0" or "v4.12.6". A dotted number is preferred over a bare one
// so the "3" in "z3" is not mistaken for the version.
func parseTagVersion(tag string) *semver.Version {
	matches := tagVersion.FindAllString(tag, -1)
	if len(matches) == 0 {
		return nil
	}
	m := matches[0]
	for _, c := range matches {
		if strings.Contains(c, ".") {
			m = c
			break
		}
	}
	v, err := semver.NewVersion(m)
	if err != nil {
		return nil
	}
	return v
}
