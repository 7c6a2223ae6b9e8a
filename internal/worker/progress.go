package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/staticmap/internal/tile"
)

// Grid cell states.
const (
	cellPending = '.'
	cellPlaced  = '#'
	cellFailed  = 'x'
)

// maxGridCells is the largest tile grid drawn cell by cell. Bigger maps only
// show counts.
const maxGridCells = 256

// Progress follows the tiles of one map and draws them as a status line laid
// out like the canvas: one cell per tile, rows separated by '|'.
//
//	tiles [##.|#x.|...] 3/9 z17_x67120_y43966 (1 failed)
type Progress struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	start   time.Time

	rng   tile.TileRange
	cells []byte

	completed int
	failed    int
	last      tile.Coords

	slowest     time.Duration
	slowestTile tile.Coords
}

// NewProgress creates a tracker for the tiles of rng writing to stderr.
func NewProgress(rng tile.TileRange, enabled bool) *Progress {
	p := &Progress{
		out:     os.Stderr,
		enabled: enabled,
		start:   time.Now(),
		rng:     rng,
	}
	if n := rng.Count(); n > 0 && n <= maxGridCells {
		p.cells = []byte(strings.Repeat(string(cellPending), n))
	}
	return p
}

// SetOutput redirects the status line.
func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	p.out = w
	p.mu.Unlock()
}

// Observe records a finished tile.
func (p *Progress) Observe(ev Event) {
	p.mu.Lock()
	p.completed, p.failed = ev.Completed, ev.Failed
	p.last = ev.Coords
	if i, ok := p.cellIndex(ev.Coords); ok {
		if ev.Err != nil {
			p.cells[i] = cellFailed
		} else {
			p.cells[i] = cellPlaced
		}
	}
	if ev.Err == nil && ev.Elapsed > p.slowest {
		p.slowest, p.slowestTile = ev.Elapsed, ev.Coords
	}
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc for Config.OnProgress.
func (p *Progress) Callback() ProgressFunc {
	return p.Observe
}

func (p *Progress) cellIndex(c tile.Coords) (int, bool) {
	if p.cells == nil || c.Z != p.rng.Z {
		return 0, false
	}
	col, row := c.X-p.rng.MinX, c.Y-p.rng.MinY
	if col < 0 || col >= p.rng.Width() || row < 0 || row >= p.rng.Height() {
		return 0, false
	}
	return row*p.rng.Width() + col, true
}

// Grid returns the cell states row by row, e.g. "##.|#x.|...". It is empty
// for maps too large to draw.
func (p *Progress) Grid() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.grid()
}

func (p *Progress) grid() string {
	if p.cells == nil {
		return ""
	}
	w := p.rng.Width()
	rows := make([]string, 0, p.rng.Height())
	for i := 0; i < len(p.cells); i += w {
		rows = append(rows, string(p.cells[i:i+w]))
	}
	return strings.Join(rows, "|")
}

// Print writes the current state, overwriting the previous line.
func (p *Progress) Print() {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	b.WriteString("\rtiles ")
	if g := p.grid(); g != "" {
		fmt.Fprintf(&b, "[%s] ", g)
	}
	fmt.Fprintf(&b, "%d/%d", p.completed, p.rng.Count())
	if p.completed > 0 {
		fmt.Fprintf(&b, " %s", p.last)
	}
	if p.failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", p.failed)
	}
	// Clear what a longer previous line left behind.
	b.WriteString("    ")

	fmt.Fprint(p.out, b.String())
}

// Done ends the status line.
func (p *Progress) Done() {
	if !p.enabled {
		return
	}
	p.Print()
	p.mu.Lock()
	fmt.Fprintln(p.out)
	p.mu.Unlock()
}

// Summary returns a one-line report of the fetch.
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := fmt.Sprintf("Fetched %d/%d tiles (%dx%d grid, %d failed) in %s",
		p.completed-p.failed, p.rng.Count(), p.rng.Width(), p.rng.Height(), p.failed,
		time.Since(p.start).Round(time.Millisecond))
	if p.slowest > 0 {
		s += fmt.Sprintf(", slowest %s took %s", p.slowestTile, p.slowest.Round(time.Millisecond))
	}
	return s
}
