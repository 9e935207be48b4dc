// Package ui renders replay progress in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"encdelta/internal/driver"
)

// Update is a driver event tagged with the scenario step it belongs to.
// Generation ordinals cannot identify steps: a rejected step does not
// consume one.
type Update struct {
	Step  int
	Event driver.Event
}

type stepState uint8

const (
	stateQueued stepState = iota
	stateRunning
	stateAccepted
	stateRejected
)

type stage struct {
	label  string
	weight float64 // share of a step done once the stage starts
}

var stages = map[driver.Stage]stage{
	driver.StageGeneration: {"emitting", 0},
	driver.StageValidate:   {"validating", 0.1},
	driver.StageGate:       {"validating", 0.2},
	driver.StageAllocate:   {"allocating", 0.4},
	driver.StageCommit:     {"synthesizing", 0.6},
	driver.StageBuild:      {"building", 0.75},
	driver.StageDerive:     {"deriving", 0.9},
	driver.StagePersist:    {"persisting", 0.95},
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	reasonStyle = lipgloss.NewStyle().Faint(true)
	stateStyles = map[stepState]lipgloss.Style{
		stateQueued:   lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		stateRunning:  lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		stateAccepted: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		stateRejected: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

type stepItem struct {
	name    string
	state   stepState
	stage   driver.Stage
	methods int
	elapsed time.Duration
	reason  string
}

func (it stepItem) label() string {
	switch it.state {
	case stateQueued:
		return "queued"
	case stateAccepted:
		return "accepted"
	case stateRejected:
		return "rejected"
	}
	return stages[it.stage].label
}

func (it stepItem) done() float64 {
	switch it.state {
	case stateAccepted, stateRejected:
		return 1
	case stateRunning:
		return stages[it.stage].weight
	}
	return 0
}

type progressModel struct {
	title   string
	updates <-chan Update
	spinner spinner.Model
	bar     progress.Model
	items   []stepItem
	current string // label of the stage running last
	width   int
	done    bool
}

type updateMsg Update
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders replay progress,
// one line per step. steps[i] names step i+1. The model quits when updates
// is closed.
func NewProgressModel(title string, steps []string, updates <-chan Update) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = stateStyles[stateRunning]

	items := make([]stepItem, len(steps))
	for i, name := range steps {
		items[i] = stepItem{name: name}
	}
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 76
	return &progressModel{title: title, updates: updates, spinner: sp, bar: bar, items: items, width: 80}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		if u, ok := <-m.updates; ok {
			return updateMsg(u)
		}
		return doneMsg{}
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		return m, tea.Batch(m.apply(Update(msg)), m.next())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = msg.Width - 4
		}
	}
	return m, nil
}

// apply folds one driver event into its step. Method events only count
// allocated methods; a finished step ignores everything but errors.
func (m *progressModel) apply(u Update) tea.Cmd {
	if u.Step < 1 || u.Step > len(m.items) {
		return nil
	}
	it := &m.items[u.Step-1]
	ev := u.Event
	if ev.Method != "" {
		if ev.Stage == driver.StageAllocate && ev.Status == driver.StatusDone {
			it.methods++
		}
		return nil
	}
	if _, known := stages[ev.Stage]; !known || it.state == stateRejected {
		return nil
	}
	switch ev.Status {
	case driver.StatusError:
		it.state = stateRejected
		if it.reason == "" && ev.Err != nil {
			it.reason = ev.Err.Error()
		}
	case driver.StatusDone:
		if ev.Stage == driver.StageGeneration {
			it.state = stateAccepted
			it.elapsed = ev.Elapsed
		}
	case driver.StatusWorking:
		if it.state == stateAccepted {
			return nil
		}
		it.state = stateRunning
		it.stage = ev.Stage
		m.current = stages[ev.Stage].label
	}
	return m.bar.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range m.items {
		sum += it.done()
	}
	return sum / float64(len(m.items))
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	var b strings.Builder
	header := m.title
	if m.current != "" && !m.done {
		header += " (" + m.current + ")"
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-28, 20)
	for i, it := range m.items {
		state := stateStyles[it.state].Render(fmt.Sprintf("%12s", it.label()))
		line := "  " + state + " " + truncate(fmt.Sprintf("%d. %s", i+1, it.name), nameWidth)
		if it.methods > 0 {
			line += fmt.Sprintf(" (%d methods)", it.methods)
		}
		if it.elapsed > 0 {
			line += reasonStyle.Render(" " + it.elapsed.Round(time.Microsecond).String())
		}
		b.WriteString(line + "\n")
		if it.reason != "" {
			b.WriteString(reasonStyle.Render(strings.Repeat(" ", 15)+truncate(it.reason, nameWidth)) + "\n")
		}
	}

	b.WriteByte('\n')
	if m.done {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteByte('\n')
	return b.String()
}

// truncate shortens value to width terminal cells, marking the cut with an
// ellipsis when there is room for one.
func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
