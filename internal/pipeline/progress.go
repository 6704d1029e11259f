package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"briefmill/internal/model"
)

// liveProgress redraws a single status line while the executor works.
type liveProgress struct {
	enabled bool
	out     io.Writer
	total   int

	mu       sync.Mutex
	done     int
	failed   int
	timedOut int
	running  map[string]struct{}

	stop chan struct{}
}

func newLiveProgress(enabled bool, total int, out io.Writer) *liveProgress {
	return &liveProgress{
		enabled: enabled,
		out:     out,
		total:   total,
		running: make(map[string]struct{}),
		stop:    make(chan struct{}),
	}
}

func (p *liveProgress) Start() {
	if !p.enabled {
		return
	}
	go func() {
		t := time.NewTicker(700 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-t.C:
				fmt.Fprintf(p.out, "\r\033[2K%s", p.render())
			}
		}
	}()
}

func (p *liveProgress) Stop(final string) {
	if !p.enabled {
		return
	}
	close(p.stop)
	fmt.Fprintf(p.out, "\r\033[2K%s\n", final)
}

func (p *liveProgress) JobStarted(slug string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	p.running[slug] = struct{}{}
	p.mu.Unlock()
}

func (p *liveProgress) JobFinished(slug, status string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	delete(p.running, slug)
	p.done++
	switch status {
	case model.StatusFailure:
		p.failed++
	case model.StatusTimeout:
		p.timedOut++
	}
	p.mu.Unlock()
}

func (p *liveProgress) render() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	active := make([]string, 0, len(p.running))
	for slug := range p.running {
		active = append(active, slug)
	}
	sort.Strings(active)

	line := fmt.Sprintf("[%d/%d] running: %s", p.done, p.total, strings.Join(active, ", "))
	if len(active) == 0 {
		line = fmt.Sprintf("[%d/%d] waiting", p.done, p.total)
	}
	if p.failed > 0 || p.timedOut > 0 {
		line += fmt.Sprintf(" (failed %d, timeout %d)", p.failed, p.timedOut)
	}
	return line
}
