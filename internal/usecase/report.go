package usecase

import (
	"fmt"
	"strings"
	"time"
)

// Report summarises one stage invocation.
type Report struct {
	Stage      string
	RunID      string
	Processed  int
	Succeeded  int
	Failed     int
	Skipped    int
	Locked     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Notes      []string
}

func (r *Report) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// String renders the report as a short multi-line message.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: processed=%d succeeded=%d failed=%d skipped=%d",
		r.Stage, r.Processed, r.Succeeded, r.Failed, r.Skipped)
	if r.Locked {
		b.WriteString(" (locked by another run)")
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(&b, " in %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	for _, n := range r.Notes {
		b.WriteString("\n- ")
		b.WriteString(n)
	}
	return b.String()
}
