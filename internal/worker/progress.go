package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Stats is a snapshot of a bake in progress.
type Stats struct {
	Total  int
	Done   int
	Failed int
	// Reached is the latest animation time rendered successfully, in seconds.
	Reached float64
	// AvgRender is the mean render time of successful frames.
	AvgRender time.Duration
	Slowest   Task
	// SlowestRender is zero until a frame succeeded.
	SlowestRender time.Duration
	Wall          time.Duration
}

// Progress follows a bake frame by frame and prints a status line.
type Progress struct {
	out     io.Writer
	now     func() time.Time
	start   time.Time
	backend string
	stats   Stats
	render  time.Duration
	mu      sync.Mutex
	enabled bool
}

// NewProgress creates a tracker that writes to stderr when enabled.
func NewProgress(total int, backend string, enabled bool) *Progress {
	return NewProgressTo(os.Stderr, total, backend, enabled)
}

// NewProgressTo creates a tracker that writes to w when enabled.
func NewProgressTo(w io.Writer, total int, backend string, enabled bool) *Progress {
	p := &Progress{
		out:     w,
		now:     time.Now,
		backend: backend,
		enabled: enabled,
	}
	p.start = p.now()
	p.stats.Total = total
	return p
}

// Observe records one finished frame.
func (p *Progress) Observe(r Result, completed, total int) {
	p.mu.Lock()
	p.stats.Done = completed
	p.stats.Total = total
	if r.Err != nil {
		p.stats.Failed++
	} else {
		p.stats.Reached = max(p.stats.Reached, r.Task.Time)
		p.render += r.Elapsed
		if r.Elapsed > p.stats.SlowestRender {
			p.stats.Slowest = r.Task
			p.stats.SlowestRender = r.Elapsed
		}
	}
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc for Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Observe
}

// Stats returns the current snapshot.
func (p *Progress) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	if ok := s.Done - s.Failed; ok > 0 {
		s.AvgRender = p.render / time.Duration(ok)
	}
	s.Wall = p.now().Sub(p.start)
	return s
}

// Line formats the status line without the leading carriage return.
func (p *Progress) Line() string {
	s := p.Stats()

	const barWidth = 30
	filled := 0
	if s.Total > 0 {
		filled = min(barWidth, s.Done*barWidth/s.Total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s%s] frame %d/%d t=%.2fs",
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled),
		s.Done, s.Total, s.Reached)
	if s.AvgRender > 0 {
		fmt.Fprintf(&b, " %s/frame", s.AvgRender.Round(time.Millisecond))
	}
	if p.backend != "" {
		fmt.Fprintf(&b, " on %s", p.backend)
	}
	if s.Failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", s.Failed)
	}
	switch {
	case s.Done >= s.Total:
		fmt.Fprintf(&b, " - done in %s", formatDuration(s.Wall))
	case s.Done > 0:
		eta := s.Wall / time.Duration(s.Done) * time.Duration(s.Total-s.Done)
		fmt.Fprintf(&b, " - ETA %s", formatDuration(eta))
	}
	return b.String()
}

// Print writes the status line, overwriting the previous one.
func (p *Progress) Print() {
	fmt.Fprintf(p.out, "\r%s    ", p.Line())
}

// Done prints the final line and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.out)
	}
}

// Summary describes the finished bake for the log.
func (p *Progress) Summary() string {
	s := p.Stats()
	msg := fmt.Sprintf("Rendered %d/%d frames up to t=%.2fs", s.Done-s.Failed, s.Total, s.Reached)
	if p.backend != "" {
		msg += " on " + p.backend
	}
	if s.Failed > 0 {
		msg += fmt.Sprintf(" (%d failed)", s.Failed)
	}
	if s.SlowestRender > 0 {
		msg += fmt.Sprintf(", %s/frame avg, slowest frame %d (%s)",
			s.AvgRender.Round(time.Millisecond), s.Slowest.Index, s.SlowestRender.Round(time.Millisecond))
	}
	return msg + fmt.Sprintf(", %s total", formatDuration(s.Wall))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
