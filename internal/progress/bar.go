// Package progress renders a single-line transfer indicator for asset
// downloads on interactive terminals.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// IsTerminalFunc reports whether fd is a terminal. Tests replace it.
var IsTerminalFunc = term.IsTerminal

const (
	lineWidth   = 80
	barWidth    = 30
	minInterval = 100 * time.Millisecond
)

// Bar counts bytes written to it and redraws a status line on out.
// It is meant to sit on one side of an io.TeeReader or io.MultiWriter.
type Bar struct {
	out   io.Writer
	label string
	total int64

	mu      sync.Mutex
	n       int64
	started time.Time
	drawn   time.Time
	now     func() time.Time
}

// NewBar creates a bar for a transfer of total bytes. A total of zero or
// less means the size is unknown and only throughput is shown.
func NewBar(out io.Writer, label string, total int64) *Bar {
	return &Bar{out: out, label: label, total: total, started: time.Now(), now: time.Now}
}

// Write records len(p) transferred bytes.
func (b *Bar) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n += int64(len(p))
	now := b.now()
	if now.Sub(b.drawn) >= minInterval {
		b.drawn = now
		_, _ = io.WriteString(b.out, "\r"+pad(b.render(now)))
	}
	return len(p), nil
}

// Written returns the byte count seen so far.
func (b *Bar) Written() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Finish erases the status line.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = fmt.Fprintf(b.out, "\r%s\r", strings.Repeat(" ", lineWidth))
}

func (b *Bar) render(now time.Time) string {
	elapsed := now.Sub(b.started).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(b.n) / elapsed
	}

	if b.total <= 0 {
		return fmt.Sprintf("   %s %s (%s/s)", b.label, formatBytes(b.n), formatBytes(int64(rate)))
	}

	frac := float64(b.n) / float64(b.total)
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * barWidth)
	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-filled-1)
	}

	eta := "--:--"
	if rate > 0 {
		eta = formatDuration(float64(b.total-b.n) / rate)
	}
	return fmt.Sprintf("   %s [%s] %3.0f%% %s/%s ETA %s",
		b.label, bar, frac*100, formatBytes(b.n), formatBytes(b.total), eta)
}

func pad(s string) string {
	if len(s) < lineWidth {
		return s + strings.Repeat(" ", lineWidth-len(s))
	}
	return s
}

func formatBytes(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit*unit:
		return fmt.Sprintf("%.1fGB", float64(n)/(unit*unit*unit))
	case n >= unit*unit:
		return fmt.Sprintf("%.1fMB", float64(n)/(unit*unit))
	case n >= unit:
		return fmt.Sprintf("%.1fKB", float64(n)/unit)
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func formatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// Enabled reports whether a bar should be drawn on w. Only terminals get
// one; logs and CI output stay free of carriage returns.
func Enabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && IsTerminalFunc(int(f.Fd()))
}
