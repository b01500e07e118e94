// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for anomalies, false for informational events
}

// messageItem holds the latest decoded values of one message
type messageItem struct {
	id       uint32
	name     string
	count    uint64
	lastSeen time.Time
	signals  []dbc.DecodedSignal
	filter   string
}

// Implement list.Item interface
func (i messageItem) Title() string {
	return fmt.Sprintf("%s (0x%X) x%d", i.name, i.id, i.count)
}

func (i messageItem) Description() string {
	parts := []string{}
	for _, d := range i.visibleSignals() {
		if d.Err != nil {
			parts = append(parts, d.Name+"=ERR")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s%s", d.Name, dbc.FormatPhysical(d.PhysicalValue), strings.TrimSpace(d.Unit)))
	}
	return strings.Join(parts, "  ")
}

func (i messageItem) FilterValue() string { return i.name }

// visibleSignals returns the signals whose names contain the filter
func (i messageItem) visibleSignals() []dbc.DecodedSignal {
	if i.filter == "" {
		return i.signals
	}
	var out []dbc.DecodedSignal
	for _, d := range i.signals {
		if strings.Contains(strings.ToLower(d.Name), i.filter) {
			out = append(out, d)
		}
	}
	return out
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	statsFn       func() dbc.Statistics
	stats         dbc.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
	sourceDone    bool

	messages    map[uint32]*messageItem
	messageList list.Model
	filterInput textinput.Model
	filtering   bool
}

// Messages
type tickMsg time.Time
type frameMsg struct {
	outcome   dbc.Outcome
	anomalies []dbc.ValidationError
}
type batchMsg struct {
	frames []frameMsg
}
type sourceDoneMsg struct {
	err error
}

func initialModel(connInfo string, statsInterval int, showAll bool, statsFn func() dbc.Statistics) model {
	ti := textinput.New()
	ti.Placeholder = "signal name"
	ti.Prompt = "/ "
	ti.CharLimit = 32
	ti.Width = 24

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	messageList := list.New([]list.Item{}, delegate, 76, 10)
	messageList.Title = "Messages"
	messageList.SetShowStatusBar(false)
	messageList.SetShowHelp(false)
	messageList.SetFilteringEnabled(false)

	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		statsFn:       statsFn,
		stats:         statsFn(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
		messages:      make(map[uint32]*messageItem),
		messageList:   messageList,
		filterInput:   ti,
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case tickMsg:
		m.stats = m.statsFn()
		return m, tickCmd()

	case batchMsg:
		for _, f := range msg.frames {
			m.processFrame(f)
		}
		m.updateMessageList()

	case sourceDoneMsg:
		m.sourceDone = true
		m.stats = m.statsFn()
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Source stopped: %v", msg.err), true)
		} else {
			m.addLogEntry("Source finished", false)
		}
	}

	return m, nil
}

func (m model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.String() {
		case "esc", "enter":
			m.filtering = false
			m.filterInput.Blur()
			return m, nil
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.updateMessageList()
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "/":
		m.filtering = true
		return m, m.filterInput.Focus()

	case "esc":
		m.filterInput.SetValue("")
		m.updateMessageList()
		return m, nil
	}

	var cmd tea.Cmd
	m.messageList, cmd = m.messageList.Update(msg)
	return m, cmd
}

// processFrame updates the latest values and the event log
func (m *model) processFrame(f frameMsg) {
	o := f.outcome
	if o.Matched {
		item, ok := m.messages[o.Frame.ID]
		if !ok {
			item = &messageItem{id: o.Frame.ID, name: o.Message.Name}
			m.messages[o.Frame.ID] = item
		}
		item.count++
		item.lastSeen = time.Now()
		item.signals = o.Signals
	}

	name := o.MessageName()
	if name == "" {
		name = fmt.Sprintf("0x%X", o.Frame.ID)
	}
	if len(f.anomalies) > 0 {
		for _, a := range f.anomalies {
			m.addLogEntry(fmt.Sprintf("%s: %s", a.Type, a.Message), true)
		}
	} else if m.showAll {
		m.addLogEntry(fmt.Sprintf("%s [%s]", name, dbc.FormatHexBytes(o.Frame.Payload)), false)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// updateMessageList rebuilds the list items sorted by ID, keeping only
// messages with a signal matching the filter
func (m *model) updateMessageList() {
	filter := strings.ToLower(strings.TrimSpace(m.filterInput.Value()))

	ids := make([]uint32, 0, len(m.messages))
	for id := range m.messages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	items := make([]list.Item, 0, len(ids))
	for _, id := range ids {
		item := *m.messages[id]
		item.filter = filter
		if filter != "" && len(item.visibleSignals()) == 0 {
			continue
		}
		items = append(items, item)
	}
	m.messageList.SetItems(items)
}

func (m *model) updateListSize() {
	listHeight := m.height / 2
	if listHeight < 6 {
		listHeight = 6
	}
	m.messageList.SetSize(m.width-6, listHeight)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("CANSTAT - MONITOR"))
	s.WriteString("\n")
	mode := "Anomalies only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | '/' filter, 'q' quit", m.connInfo, mode)))
	s.WriteString("\n")
	if m.sourceDone {
		s.WriteString(warningStyle.Render("Source closed, showing final values"))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	// Statistics
	st := m.stats
	var matchedPercent, errorPercent float64
	if st.TotalFrames > 0 {
		matchedPercent = float64(st.MatchedFrames) * 100.0 / float64(st.TotalFrames)
		errorPercent = float64(st.TotalFrames-st.CleanFrames) * 100.0 / float64(st.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		statsLabelStyle.Render("Matched:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.MatchedFrames, matchedPercent)),
		statsLabelStyle.Render("Anomalous:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.TotalFrames-st.CleanFrames, errorPercent)),
	))

	if st.Errors() > 0 {
		statsContent.WriteString(fmt.Sprintf("(%s: %d, %s: %d, %s: %d, %s: %d, %s: %d)\n",
			headerStyle.Render("signal errors"), st.SignalErrors,
			headerStyle.Render("short"), st.ShortPayloads,
			headerStyle.Render("out of range"), st.OutOfRange,
			headerStyle.Render("overruns"), st.Overruns,
			headerStyle.Render("write errors"), st.SinkErrors,
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n")

	// Filter and latest values
	if m.filtering || m.filterInput.Value() != "" {
		s.WriteString(m.filterInput.View())
		s.WriteString("\n")
	}
	if len(m.messages) == 0 {
		s.WriteString(boxStyle.Render(headerStyle.Render("(no DBC messages received yet)")))
	} else {
		s.WriteString(boxStyle.Render(m.messageList.View()))
	}
	s.WriteString("\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - m.messageList.Height() - 14
	if logHeight < 3 {
		logHeight = 3
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
