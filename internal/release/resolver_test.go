package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsukumogami/nativedep/internal/log"
	"github.com/tsukumogami/nativedep/internal/platform"
)

var linuxX64 = platform.Profile{OS: platform.Linux, Arch: platform.X86_64, Libc: "glibc"}

type apiAsset struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
	Size int    `json:"size"`
}

// releaseServer serves /repos/Z3Prover/z3/releases/latest with the given
// asset names. The handler result for each request comes from status; a
// zero status serves the document.
func releaseServer(t *testing.T, tag string, names []string, status ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		if r.URL.Path != "/repos/Z3Prover/z3/releases/latest" {
			http.NotFound(w, r)
			return
		}
		if n <= len(status) && status[n-1] != 0 {
			w.WriteHeader(status[n-1])
			_, _ = w.Write([]byte(`{"message":"boom"}`))
			return
		}
		var assets []apiAsset
		for _, name := range names {
			assets = append(assets, apiAsset{Name: name, URL: "https://example.com/dl/" + name, Size: 1024})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"tag_name": tag, "assets": assets})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestResolver(t *testing.T, srv *httptest.Server, opts ...Option) *Resolver {
	t.Helper()
	base := []Option{
		WithHTTPClient(srv.Client()),
		WithBaseURL(srv.URL),
		WithRetryDelay(time.Millisecond),
		WithTimeout(5 * time.Second),
		WithLogger(log.NewNoop()),
	}
	r, err := New("Z3Prover/z3", append(base, opts...)...)
	require.NoError(t, err)
	return r
}

func TestResolve_FirstMatchWins(t *testing.T) {
	srv, _ := releaseServer(t, "z3-4.12.0", []string{"z3-4.12-x64-glibc.zip", "z3-4.12-arm64-glibc.zip"})
	r := newTestResolver(t, srv)

	rel, err := r.Resolve(context.Background(), linuxX64, Archive)
	require.NoError(t, err)
	assert.Equal(t, "z3-4.12-x64-glibc.zip", rel.Asset.Name)
	assert.Equal(t, "https://example.com/dl/z3-4.12-x64-glibc.zip", rel.Asset.DownloadURL)
	assert.Equal(t, int64(1024), rel.Asset.Size)
	assert.Equal(t, "z3-4.12.0", rel.Tag)
	require.NotNil(t, rel.Version)
	assert.Equal(t, "4.12.0", rel.Version.String())
}

func TestResolve_DocumentOrderBreaksTies(t *testing.T) {
	srv, _ := releaseServer(t, "z3-4.13.0", []string{
		"z3-4.13.0-x64-glibc-2.35.zip",
		"z3-4.13.0-x64-glibc-2.31.zip",
	})
	rel, err := newTestResolver(t, srv).Resolve(context.Background(), linuxX64, Archive)
	require.NoError(t, err)
	assert.Equal(t, "z3-4.13.0-x64-glibc-2.35.zip", rel.Asset.Name)
}

func TestResolve_MatchesChannelAndArchitecture(t *testing.T) {
	names := []string{
		"z3-4.13.0-arm64-glibc-2.34.zip",
		"z3-4.13.0-arm64-osx-11.0.zip",
		"z3-4.13.0-arm64-win.zip",
		"z3-4.13.0-x64-glibc-2.35.zip",
		"z3-4.13.0-x64-osx-11.7.10.zip",
		"z3-4.13.0-x64-win.zip",
		"z3-4.13.0-x64-glibc-2.35.tar.gz",
		"z3_solver-4.13.0.0-py3-none-manylinux_2_17_x86_64.manylinux2014_x86_64.whl",
		"z3_solver-4.13.0.0-py3-none-manylinux_2_34_aarch64.whl",
		"z3_solver-4.13.0.0-py3-none-macosx_11_0_arm64.whl",
		"z3_solver-4.13.0.0-py3-none-macosx_11_0_x86_64.whl",
		"z3_solver-4.13.0.0-py3-none-win_amd64.whl",
	}
	srv, _ := releaseServer(t, "z3-4.13.0", names)
	r := newTestResolver(t, srv)

	tests := []struct {
		os   platform.OSFamily
		arch platform.Arch
		ch   Channel
		want string
	}{
		{platform.Linux, platform.X86_64, Archive, "z3-4.13.0-x64-glibc-2.35.zip"},
		{platform.Linux, platform.Aarch64, Archive, "z3-4.13.0-arm64-glibc-2.34.zip"},
		{platform.MacOS, platform.X86_64, Archive, "z3-4.13.0-x64-osx-11.7.10.zip"},
		{platform.MacOS, platform.Aarch64, Archive, "z3-4.13.0-arm64-osx-11.0.zip"},
		{platform.Windows, platform.X86_64, Archive, "z3-4.13.0-x64-win.zip"},
		{platform.Windows, platform.Aarch64, Archive, "z3-4.13.0-arm64-win.zip"},
		{platform.Linux, platform.X86_64, Wheel, "z3_solver-4.13.0.0-py3-none-manylinux_2_17_x86_64.manylinux2014_x86_64.whl"},
		{platform.Linux, platform.Aarch64, Wheel, "z3_solver-4.13.0.0-py3-none-manylinux_2_34_aarch64.whl"},
		{platform.MacOS, platform.Aarch64, Wheel, "z3_solver-4.13.0.0-py3-none-macosx_11_0_arm64.whl"},
		{platform.MacOS, platform.X86_64, Wheel, "z3_solver-4.13.0.0-py3-none-macosx_11_0_x86_64.whl"},
		{platform.Windows, platform.X86_64, Wheel, "z3_solver-4.13.0.0-py3-none-win_amd64.whl"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s/%s", tt.ch, tt.os, tt.arch), func(t *testing.T) {
			rel, err := r.Resolve(context.Background(), platform.Profile{OS: tt.os, Arch: tt.arch}, tt.ch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rel.Asset.Name)
		})
	}

	t.Run("windows arm64 wheel missing", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), platform.Profile{OS: platform.Windows, Arch: platform.Aarch64}, Wheel)
		assert.ErrorIs(t, err, ErrNoMatch)
	})
}

func TestResolve_NoMatch(t *testing.T) {
	srv, _ := releaseServer(t, "z3-4.12.0", []string{"z3-4.12-arm64-glibc.zip", "z3-4.12-x64-glibc.tar.gz"})
	_, err := newTestResolver(t, srv).Resolve(context.Background(), linuxX64, Archive)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatch)
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, NoMatch, rerr.Kind)
	assert.Equal(t, "linux/x86_64", rerr.Platform)
}

func TestResolve_MuslHasNoUpstreamBuild(t *testing.T) {
	srv, _ := releaseServer(t, "z3-4.12.0", []string{"z3-4.12-x64-glibc.zip"})
	musl := linuxX64
	musl.Libc = "musl"

	_, err := newTestResolver(t, srv).Resolve(context.Background(), musl, Archive)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestResolve_UnsupportedArchitectureSkipsNetwork(t *testing.T) {
	srv, hits := releaseServer(t, "z3-4.12.0", []string{"z3-4.12-x64-glibc.zip"})
	_, err := newTestResolver(t, srv).Resolve(context.Background(), linuxX64.WithArch("ppc64"), Archive)

	assert.ErrorIs(t, err, ErrUnsupportedArchitecture)
	assert.NotErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, int32(0), hits.Load())
}

func TestResolve_RetriesServerError(t *testing.T) {
	srv, hits := releaseServer(t, "z3-4.12.0", []string{"z3-4.12-x64-glibc.zip"}, http.StatusBadGateway)
	rel, err := newTestResolver(t, srv).Resolve(context.Background(), linuxX64, Archive)

	require.NoError(t, err)
	assert.Equal(t, "z3-4.12-x64-glibc.zip", rel.Asset.Name)
	assert.Equal(t, int32(2), hits.Load())
}

func TestResolve_RetriesOnlyOnce(t *testing.T) {
	srv, hits := releaseServer(t, "z3-4.12.0", nil, 500, 500, 500)
	_, err := newTestResolver(t, srv).Resolve(context.Background(), linuxX64, Archive)

	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, int32(2), hits.Load())
}

func TestResolve_NotFoundIsNotRetried(t *testing.T) {
	srv, hits := releaseServer(t, "", nil, http.StatusNotFound)
	_, err := newTestResolver(t, srv).Resolve(context.Background(), linuxX64, Archive)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "no published release")
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolve_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"assets": [`))
	}))
	defer srv.Close()

	_, err := newTestResolver(t, srv).Resolve(context.Background(), linuxX64, Archive)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestResolve_MinVersion(t *testing.T) {
	srv, _ := releaseServer(t, "z3-4.8.17", []string{"z3-4.8.17-x64-glibc-2.31.zip"})

	_, err := newTestResolver(t, srv, WithMinVersion(">= 4.12")).Resolve(context.Background(), linuxX64, Archive)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Contains(t, err.Error(), "does not satisfy")

	rel, err := newTestResolver(t, srv, WithMinVersion(">= 4.8")).Resolve(context.Background(), linuxX64, Archive)
	require.NoError(t, err)
	assert.Equal(t, "z3-4.8.17-x64-glibc-2.31.zip", rel.Asset.Name)
}

func TestResolve_TokenSent(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tag_name": "z3-4.12.0",
			"assets":   []apiAsset{{Name: "z3-4.12-x64-glibc.zip", URL: "https://example.com/z3.zip"}},
		})
	}))
	defer srv.Close()

	_, err := newTestResolver(t, srv, WithToken("s3cret")).Resolve(context.Background(), linuxX64, Archive)
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", auth)
}

func TestNew_Validation(t *testing.T) {
	for _, repo := range []string{"", "z3", "/z3", "Z3Prover/", "a/b/c"} {
		_, err := New(repo)
		assert.Error(t, err, "repo %q", repo)
	}
	_, err := New("Z3Prover/z3", WithMinVersion("not a constraint"))
	assert.Error(t, err)
}

func TestParseTagVersion(t *testing.T) {
	cases := map[string]string{
		"z3-4.13.0":  "4.13.0",
		"v4.12.6":    "4.12.6",
		"z3-4.8.10":  "4.8.10",
		"4.13.0.0":   "4.13.0",
		"Nightly":    "",
		"z3-4.12":    "4.12.0",
		"release-10": "10.0.0",
	}
	for tag, want := range cases {
		v := parseTagVersion(tag)
		if want == "" {
			assert.Nil(t, v, tag)
			continue
		}
		require.NotNil(t, v, tag)
		assert.Equal(t, want, v.String(), tag)
	}
}
