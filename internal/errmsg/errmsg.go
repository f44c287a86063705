// Package errmsg provides enhanced error message formatting with actionable suggestions.
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/tsukumogami/nativedep/internal/acquire"
	"github.com/tsukumogami/nativedep/internal/archive"
	"github.com/tsukumogami/nativedep/internal/envfile"
	"github.com/tsukumogami/nativedep/internal/fetch"
	"github.com/tsukumogami/nativedep/internal/lock"
	"github.com/tsukumogami/nativedep/internal/provision"
	"github.com/tsukumogami/nativedep/internal/release"
)

// ErrorContext provides additional context for error formatting
type ErrorContext struct {
	IncludeDir string // Install root for headers, for permission hints
	LibDir     string // Install root for the library
	LockFile   string // Lock path, for the busy hint
}

// Format returns a formatted error message with possible causes and suggestions.
// The context parameter is optional - pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}
	if ctx == nil {
		ctx = &ErrorContext{}
	}

	errMsg := err.Error()

	if errors.Is(err, lock.ErrBusy) {
		return formatBusy(errMsg, ctx)
	}

	var probeErr *provision.ProbeError
	if errors.As(err, &probeErr) {
		return formatProbeError(probeErr)
	}

	var releaseErr *release.Error
	if errors.As(err, &releaseErr) {
		return formatReleaseError(errMsg, releaseErr)
	}

	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		return formatFetchError(errMsg, fetchErr)
	}

	var archiveErr *archive.Error
	if errors.As(err, &archiveErr) {
		return formatArchiveError(errMsg, archiveErr, ctx)
	}

	var exportErr *envfile.Error
	if errors.As(err, &exportErr) {
		return formatExportError(errMsg, exportErr)
	}

	var strategyErr *acquire.Error
	if errors.As(err, &strategyErr) {
		return formatStrategyError(errMsg, strategyErr)
	}

	if isRateLimitError(errMsg) {
		return formatRateLimitError(errMsg)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return formatNetworkError(netErr)
	}

	if isNetworkError(errMsg) {
		return formatGenericNetworkError(errMsg)
	}

	if isPermissionError(errMsg) {
		return formatPermissionError(errMsg)
	}

	return errMsg
}

type section struct {
	causes      []string
	suggestions []string
}

func (s section) render(msg string) string {
	var sb strings.Builder
	sb.WriteString(msg)
	sb.WriteString("\n")
	if len(s.causes) > 0 {
		sb.WriteString("\nPossible causes:\n")
		for _, c := range s.causes {
			sb.WriteString("  - " + c + "\n")
		}
	}
	if len(s.suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, c := range s.suggestions {
			sb.WriteString("  - " + c + "\n")
		}
	}
	return sb.String()
}

func formatBusy(errMsg string, ctx *ErrorContext) string {
	s := section{
		causes: []string{"Another nativedep run is provisioning this machine"},
		suggestions: []string{
			"Wait for the other run to finish and retry",
		},
	}
	if ctx.LockFile != "" {
		s.suggestions = append(s.suggestions, fmt.Sprintf("The holding run is recorded in %s", ctx.LockFile))
	}
	return s.render(errMsg)
}

func formatProbeError(err *provision.ProbeError) string {
	if err.Err != nil {
		return section{
			causes:      []string{"The operating system is not linux, macos or windows"},
			suggestions: []string{"Provision the library manually and write the environment file yourself"},
		}.render(err.Error())
	}
	s := section{causes: []string{"Every configured strategy was unavailable on this host"}}
	if err.Manager == "" {
		s.causes = append(s.causes, "No supported package manager (yum, dnf, apt-get, brew) is on PATH")
	}
	s.suggestions = []string{
		"Add \"archive\" to the strategies list; it needs only network access",
		"Install python3 to enable the wheel strategy",
	}
	return s.render(err.Error())
}

func formatReleaseError(errMsg string, err *release.Error) string {
	switch err.Kind {
	case release.Unreachable:
		return section{
			causes: []string{
				"Network connectivity issue",
				"GitHub API rate limit exceeded",
				"Service temporarily unavailable",
			},
			suggestions: []string{
				"Check your internet connection",
				"Set GITHUB_TOKEN to increase rate limit",
				"Try again in a few minutes",
			},
		}.render(errMsg)
	case release.NoMatch:
		return section{
			causes: []string{
				fmt.Sprintf("The latest release publishes no %s asset for %s", err.Channel, err.Platform),
				"The release is older than the configured min_version",
			},
			suggestions: []string{
				"Add an [assets] override to config.toml matching the published name",
				"Try another strategy with --strategy",
			},
		}.render(errMsg)
	case release.UnsupportedArchitecture:
		return section{
			causes: []string{fmt.Sprintf("No prebuilt %s asset exists for %s", err.Channel, err.Platform)},
			suggestions: []string{
				"Pass x86_64 or aarch64 as the target platform",
				"Use the system strategy if your distribution packages the library",
			},
		}.render(errMsg)
	}
	return errMsg
}

func formatFetchError(errMsg string, err *fetch.Error) string {
	s := section{
		suggestions: []string{
			"Check your internet connection",
			"Try again in a few minutes",
		},
	}
	switch err.Kind {
	case fetch.Incomplete:
		s.causes = []string{"The connection dropped during the download", "A proxy truncated the response"}
	default:
		s.causes = []string{"Network connectivity issue", "Firewall or proxy blocking the download host"}
	}
	return s.render(errMsg)
}

func formatArchiveError(errMsg string, err *archive.Error, ctx *ErrorContext) string {
	switch err.Kind {
	case archive.PermissionDenied:
		s := section{causes: []string{"The install root is not writable by the current user"}}
		s.suggestions = []string{"Re-run with sudo"}
		if ctx.IncludeDir != "" && ctx.LibDir != "" {
			s.suggestions = append(s.suggestions,
				fmt.Sprintf("Point include_dir and lib_dir away from %s and %s", ctx.IncludeDir, ctx.LibDir))
		}
		return s.render(errMsg)
	case archive.UnexpectedLayout:
		return section{
			causes:      []string{"Upstream changed the archive layout", "The download is corrupt"},
			suggestions: []string{"Retry with --force", "Report the asset name so the layout can be supported"},
		}.render(errMsg)
	case archive.MissingHeader, archive.MissingLibrary:
		return section{
			causes: []string{
				"The package or archive no longer ships the file where expected",
				"The header or library name in config.toml is wrong",
			},
			suggestions: []string{"Check the header and library keys in config.toml", "Try another strategy with --strategy"},
		}.render(errMsg)
	}
	return errMsg
}

func formatExportError(errMsg string, err *envfile.Error) string {
	return section{
		causes:      []string{fmt.Sprintf("%s or its directory is not writable", err.Path)},
		suggestions: []string{"Pass a writable location with --env-file"},
	}.render(errMsg)
}

func formatStrategyError(errMsg string, err *acquire.Error) string {
	s := section{}
	switch err.Stage {
	case acquire.StageInstall:
		s.causes = []string{fmt.Sprintf("The %s installer exited with an error", err.Strategy)}
		s.suggestions = []string{"Re-run with --verbose to see the installer output"}
	case acquire.StageValidate:
		s.causes = []string{"The acquired files are not readable"}
		s.suggestions = []string{"Check file permissions on the reported paths"}
	default:
		s.suggestions = []string{"Re-run with --verbose for details"}
	}
	s.suggestions = append(s.suggestions, "Pass --fallback to continue with the next strategy")
	return s.render(errMsg)
}

func formatRateLimitError(errMsg string) string {
	return section{
		causes: []string{
			"Too many requests to the API",
			"Unauthenticated requests have lower limits",
		},
		suggestions: []string{
			"Set GITHUB_TOKEN environment variable to increase rate limit",
			"Wait a few minutes before retrying",
		},
	}.render(errMsg)
}

func formatNetworkError(err net.Error) string {
	s := section{}
	if err.Timeout() {
		s.causes = []string{"Request timed out", "Slow or unstable network connection"}
	} else {
		s.causes = []string{"Network connectivity issue", "DNS resolution failure"}
	}
	s.causes = append(s.causes, "Firewall or proxy blocking the connection")
	s.suggestions = []string{"Check your internet connection", "Try again in a few minutes"}
	if err.Timeout() {
		s.suggestions = append(s.suggestions, "Raise NATIVEDEP_API_TIMEOUT or NATIVEDEP_DOWNLOAD_TIMEOUT")
	}
	return s.render(err.Error())
}

func formatGenericNetworkError(errMsg string) string {
	return section{
		causes:      []string{"Network connectivity issue", "DNS resolution failure", "Service temporarily unavailable"},
		suggestions: []string{"Check your internet connection", "Try again in a few minutes"},
	}.render(errMsg)
}

func formatPermissionError(errMsg string) string {
	return section{
		causes:      []string{"Insufficient permissions on $NATIVEDEP_HOME or the install root"},
		suggestions: []string{"Check permissions on ~/.nativedep", "Re-run with sudo when installing system-wide"},
	}.render(errMsg)
}

// isRateLimitError checks if the error message indicates a rate limit
func isRateLimitError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate-limit") ||
		strings.Contains(lower, "too many requests")
}

// isNetworkError checks if the error message indicates a network issue
func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "i/o timeout")
}

// isPermissionError checks if the error message indicates a permission issue
func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted")
}
