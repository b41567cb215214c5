package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/ZebulonRouseFrantzich/pandock/internal/events"
)

// progressRenderer prints events as terminal lines. Download progress is
// redrawn in place and only when the whole-number percentage changes.
type progressRenderer struct {
	mu      sync.Mutex
	w       io.Writer
	lastPct int
	inLine  bool
}

func newProgressRenderer(w io.Writer) *progressRenderer {
	return &progressRenderer{w: w, lastPct: -1}
}

func (r *progressRenderer) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case e.Log != nil:
		r.endLine()
		r.log(*e.Log)
	case e.Progress != nil:
		r.progress(*e.Progress)
	}
}

func (r *progressRenderer) log(entry events.LogEntry) {
	var prefix string
	switch entry.Level {
	case events.LevelSuccess:
		prefix = "✓ "
	case events.LevelError:
		prefix = "✗ "
	default:
		prefix = "  "
	}
	fmt.Fprintf(r.w, "%s%s\n", prefix, entry.Message)
	if entry.Details != "" {
		fmt.Fprintf(r.w, "    %s\n", entry.Details)
	}
}

func (r *progressRenderer) progress(p events.DownloadProgress) {
	switch p.Phase {
	case events.PhaseDownloading:
		pct := int(p.Percentage)
		if p.BytesTotal > 0 && pct == r.lastPct && p.BytesDownloaded != 0 {
			return
		}
		r.lastPct = pct
		fmt.Fprintf(r.w, "\r%s %s", p.Label, formatTransfer(p))
		r.inLine = true
	default:
		r.endLine()
		fmt.Fprintf(r.w, "%s\n", p.Label)
		r.lastPct = -1
	}
}

func (r *progressRenderer) endLine() {
	if r.inLine {
		fmt.Fprintln(r.w)
		r.inLine = false
	}
}

// formatTransfer renders "3.2 MB / 40 MB (8%)", or just the byte count when
// the total is unknown.
func formatTransfer(p events.DownloadProgress) string {
	done := humanize.Bytes(uint64(max(p.BytesDownloaded, 0)))
	if p.BytesTotal <= 0 {
		return done
	}
	return fmt.Sprintf("%s / %s (%.0f%%)", done, humanize.Bytes(uint64(p.BytesTotal)), p.Percentage)
}
