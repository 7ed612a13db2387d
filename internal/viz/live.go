// Package viz renders the scene in the terminal. The live viewer is a
// pure observer: it subscribes to the state topics and never touches the
// stepping loop.
package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/rigsim/rigsim/internal/msgs"
	"github.com/rigsim/rigsim/internal/transport"
)

const (
	canvasWidth     = 70
	canvasHeight    = 22
	historyCapacity = 600
	trailCapacity   = 300
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2).Width(42)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	trackStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(2)
)

type TickMsg time.Time

type point struct{ x, y int }

// Viewer displays link poses arriving on the state topic. It keeps the
// latest pose per link and a height history of one tracked link.
type Viewer struct {
	worldName string
	stateSub  *transport.Subscription
	statsSub  *transport.Subscription

	canvas  *Canvas
	poses   map[string]msgs.Pose
	statics map[string]bool
	order   []string

	tracked int
	heights []float64
	trail   []point
	stats   msgs.WorldStats
	scale   float64
	frozen  bool
	help    bool
}

// NewViewer subscribes a viewer to the hub's state topics.
func NewViewer(worldName string, hub *transport.Hub,
	stateTopic, statsTopic string) Viewer {
	return Viewer{
		worldName: worldName,
		stateSub:  hub.Topic(stateTopic).Subscribe(256),
		statsSub:  hub.Topic(statsTopic).Subscribe(16),
		canvas:    NewCanvas(canvasWidth, canvasHeight),
		poses:     make(map[string]msgs.Pose),
		statics:   make(map[string]bool),
		heights:   make([]float64, 0, historyCapacity),
		trail:     make([]point, 0, trailCapacity),
		scale:     20,
	}
}

func (v Viewer) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (v Viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			v.stateSub.Unsubscribe()
			v.statsSub.Unsubscribe()
			return v, tea.Quit
		case " ":
			v.frozen = !v.frozen
		case "tab":
			if len(v.order) > 0 {
				v.tracked = (v.tracked + 1) % len(v.order)
				v.heights = v.heights[:0]
				v.trail = v.trail[:0]
			}
		case "+", "=":
			v.scale *= 1.25
		case "-", "_":
			v.scale /= 1.25
		case "?":
			v.help = !v.help
		}
	case TickMsg:
		if !v.frozen {
			v.drain()
		}
		v.draw()
		return v, tick()
	}
	return v, nil
}

// drain consumes everything buffered on the subscriptions since the
// last frame, keeping only the newest pose per link.
func (v *Viewer) drain() {
	for {
		select {
		case m, ok := <-v.stateSub.C:
			if !ok {
				return
			}
			state, isState := m.Data.(msgs.LinkState)
			if !isState || state.Pose == nil {
				continue
			}
			if _, seen := v.poses[state.Name]; !seen {
				v.order = append(v.order, state.Name)
				sort.Strings(v.order)
			}
			v.poses[state.Name] = *state.Pose
			if state.Kinematic != nil && state.Gravity != nil {
				v.statics[state.Name] = !*state.Gravity && !*state.Kinematic
			}
			if len(v.order) > 0 && state.Name == v.order[v.tracked%len(v.order)] {
				v.heights = append(v.heights, state.Pose.Z)
				if len(v.heights) > historyCapacity {
					v.heights = v.heights[1:]
				}
			}
		default:
			v.drainStats()
			return
		}
	}
}

func (v *Viewer) drainStats() {
	for {
		select {
		case m, ok := <-v.statsSub.C:
			if !ok {
				return
			}
			if s, isStats := m.Data.(msgs.WorldStats); isStats {
				v.stats = s
			}
		default:
			return
		}
	}
}

// draw projects link positions onto the XZ plane.
func (v *Viewer) draw() {
	v.canvas.Clear()
	cw, ch := canvasWidth*2, canvasHeight*4
	cx, cy := cw/2, ch/2

	// ground line at z = 0
	v.canvas.Line(0, cy, cw-1, cy)

	tracked := ""
	if len(v.order) > 0 {
		tracked = v.order[v.tracked%len(v.order)]
	}

	for _, name := range v.order {
		p := v.poses[name]
		px := cx + int(p.X*v.scale)
		py := cy - int(p.Z*v.scale)
		if name == tracked {
			v.trail = append(v.trail, point{px, py})
			if len(v.trail) > trailCapacity {
				v.trail = v.trail[1:]
			}
			v.canvas.Marker(px, py, 2)
		} else if v.statics[name] {
			v.canvas.Circle(px, py, 3)
		} else {
			v.canvas.Marker(px, py, 1)
		}
	}
	for _, pt := range v.trail {
		v.canvas.Set(pt.x, pt.y)
	}
}

func (v Viewer) View() string {
	canvasView := canvasStyle.Render(v.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(v.worldName)) + "\n")
	status := "LIVE"
	if v.frozen {
		status = "FROZEN"
	}
	s.WriteString(status + "\n\n")

	if len(v.heights) > 1 {
		chart := asciigraph.Plot(v.heights,
			asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("height"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	s.WriteString(labelStyle.Render("Sim time") +
		valueStyle.Render(fmt.Sprintf("%.2fs", v.stats.SimTime)) + "\n")
	s.WriteString(labelStyle.Render("Steps") +
		valueStyle.Render(fmt.Sprintf("%d", v.stats.Steps)) + "\n")
	s.WriteString(labelStyle.Render("Links") +
		valueStyle.Render(fmt.Sprintf("%d", len(v.order))) + "\n")

	s.WriteString("\nLINKS\n")
	for i, name := range v.order {
		p := v.poses[name]
		line := fmt.Sprintf("%-18s z=%6.2f", short(name), p.Z)
		if math.IsNaN(p.Z) {
			line = fmt.Sprintf("%-18s z=   ???", short(name))
		}
		if i == v.tracked%max(len(v.order), 1) {
			s.WriteString(trackStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + labelStyle.Render(line) + "\n")
		}
	}

	s.WriteString(helpStyle.Render(
		"\n─────────────────────\nSP:Freeze Tab:Track Q:Quit\n+/-:Zoom ?:Help"))

	statsView := statsStyle.Render(s.String())
	main := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
	if v.help {
		return `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Freeze/unfreeze display  ║
║  Tab      - Cycle tracked link       ║
║  +/-      - Zoom in/out              ║
║  Q        - Quit                     ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + main
	}
	return main
}

// short trims the world scope prefix off a scoped name.
func short(scoped string) string {
	if i := strings.LastIndex(scoped, "::"); i >= 0 {
		return scoped[i+2:]
	}
	return scoped
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
