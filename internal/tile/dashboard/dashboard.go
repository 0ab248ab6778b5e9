// Package dashboard is an optional operator TUI for the Tile Service: a
// live view of cache pressure, pending updates, and connected-viewer count
// (spec §4.3 "stats()", §5 "the two numbers worth watching"), plus a
// scrolling log tail. It is ambient observability, built as a bubbletea
// model/update/view split with a periodic refresh tick and a viewport for
// the log tail.
package dashboard

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/voxelmap/pipeline/internal/tile/cache"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Snapshot is a point-in-time read of the numbers worth watching across the
// Tile Service's components.
type Snapshot struct {
	Cache            cache.Stats
	BatcherPending   int
	ConnectedViewers int
	Uptime           time.Duration
}

// Source supplies the dashboard its periodic Snapshot. A real deployment
// implements this by reading cache.Stats(), batcher.PendingCount(), and
// len(clients.Manager.ConnIDs()). internal/tile/server's /status reports the
// cache stats and viewer count but not the batcher pending count.
type Source interface {
	Snapshot() Snapshot
}

// tickMsg drives the periodic refresh.
type tickMsg time.Time

// LogMsg appends one line to the scrolling log tail.
type LogMsg string

// Model is the bubbletea model for the dashboard.
type Model struct {
	source   Source
	refresh  time.Duration
	viewport viewport.Model
	logs     []string
	logMu    sync.Mutex
	maxLines int
	snapshot Snapshot
	ready    bool
	width    int
	height   int
}

// New returns a dashboard Model pulling from source every refresh.
func New(source Source, refresh time.Duration) *Model {
	return &Model{
		source:   source,
		refresh:  refresh,
		maxLines: 500,
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh ticker.
func (m *Model) Init() tea.Cmd {
	m.snapshot = m.source.Snapshot()
	return tickCmd(m.refresh)
}

// Update handles dashboard events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		}
		if msg.String() == "q" {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		logHeight := msg.Height - 5
		if logHeight < 1 {
			logHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, logHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = logHeight
		}
		m.width = msg.Width
		m.height = msg.Height
		m.refreshViewport()

	case tickMsg:
		m.snapshot = m.source.Snapshot()
		return m, tickCmd(m.refresh)

	case LogMsg:
		m.addLog(string(msg))
		m.refreshViewport()
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// View renders the stats header plus the log tail.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing dashboard..."
	}

	title := titleStyle.Render("Voxelmap Tile Service")
	stats := statStyle.Render(fmt.Sprintf(
		"cache %d/%d (hits=%d misses=%d evicted=%d)  pending=%d  viewers=%d  uptime=%s",
		m.snapshot.Cache.Size, m.snapshot.Cache.MaxSize,
		m.snapshot.Cache.Hits, m.snapshot.Cache.Misses, m.snapshot.Cache.Evicted,
		m.snapshot.BatcherPending, m.snapshot.ConnectedViewers,
		m.snapshot.Uptime.Round(time.Second),
	))
	help := helpStyle.Render("q/Ctrl+C/Esc: quit")

	return fmt.Sprintf("%s\n%s\n%s\n%s", title, stats, m.viewport.View(), help)
}

// addLog appends msg to the tail, trimming to maxLines.
func (m *Model) addLog(msg string) {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	m.logs = append(m.logs, msg)
	if len(m.logs) > m.maxLines {
		m.logs = m.logs[len(m.logs)-m.maxLines:]
	}
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.logMu.Lock()
	content := strings.Join(m.logs, "\n")
	m.logMu.Unlock()

	wasAtBottom := m.viewport.AtBottom()
	m.viewport.SetContent(content)
	if wasAtBottom {
		m.viewport.GotoBottom()
	}
}

// Writer is an io.Writer that forwards each line written to it into a
// running dashboard program as a LogMsg, so zerolog output can be tailed
// inside the TUI instead of scrolling the terminal underneath it.
type Writer struct {
	program *tea.Program
}

// NewWriter wraps program for use as a zerolog output.
func NewWriter(program *tea.Program) *Writer {
	return &Writer{program: program}
}

func (w *Writer) Write(p []byte) (int, error) {
	msg := strings.TrimSuffix(string(p), "\n")
	if msg != "" {
		w.program.Send(LogMsg(msg))
	}
	return len(p), nil
}

// Start builds and runs a dashboard program, returning the program (so the
// caller can Send/Quit it) and an io.Writer suitable for zerolog.
func Start(source Source, refresh time.Duration) (*tea.Program, io.Writer) {
	m := New(source, refresh)
	p := tea.NewProgram(m, tea.WithAltScreen())
	return p, NewWriter(p)
}
