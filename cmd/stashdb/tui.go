package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stashdb/pkg/catalog"
	"stashdb/pkg/memory"
)

const refreshInterval = 250 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	tableStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

type tickMsg time.Time

type inspectorModel struct {
	pool     *memory.BufferPool
	cat      *catalog.TableCatalog
	workload *workload
	stats    table.Model
}

func newInspectorModel(pool *memory.BufferPool, cat *catalog.TableCatalog, w *workload) inspectorModel {
	columns := []table.Column{
		{Title: "Metric", Width: 24},
		{Title: "Value", Width: 16},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(14),
		table.WithFocused(false),
	)
	return inspectorModel{pool: pool, cat: cat, workload: w, stats: t}
}

func (m inspectorModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.stats.SetRows(m.statRows())
		return m, tick()
	}
	return m, nil
}

func (m inspectorModel) statRows() []table.Row {
	stats := m.pool.Stats()
	hitRatio := 0.0
	if total := stats.Hits + stats.Misses; total > 0 {
		hitRatio = float64(stats.Hits) / float64(total)
	}
	return []table.Row{
		{"resident pages", fmt.Sprintf("%d / %d", m.pool.ResidentPages(), m.pool.Capacity())},
		{"dirty pages", fmt.Sprintf("%d", m.pool.DirtyPages())},
		{"locked pages", fmt.Sprintf("%d", m.pool.LockedPages())},
		{"live transactions", fmt.Sprintf("%d", m.pool.LiveTransactions())},
		{"cache hit ratio", fmt.Sprintf("%.1f%%", hitRatio*100)},
		{"evictions", fmt.Sprintf("%d", stats.Evictions)},
		{"eviction refusals", fmt.Sprintf("%d", stats.EvictFails)},
		{"pages flushed", fmt.Sprintf("%d", stats.Flushes)},
		{"commits", fmt.Sprintf("%d", stats.Commits)},
		{"aborts", fmt.Sprintf("%d", stats.Aborts)},
		{"tuples inserted", fmt.Sprintf("%d", m.workload.inserted.Load())},
		{"table scans", fmt.Sprintf("%d", m.workload.scans.Load())},
		{"lock timeouts", fmt.Sprintf("%d", m.workload.timedOut.Load())},
	}
}

func (m inspectorModel) View() string {
	view := titleStyle.Render("stashdb buffer pool inspector")
	view += "\n" + tableStyle.Render(m.stats.View())

	view += sectionStyle.Render("tables")
	for _, info := range m.cat.Tables() {
		view += fmt.Sprintf("\n  %s  (file id %d, %d pages)",
			info.Name, info.File.ID(), info.File.NumPages())
	}

	view += helpStyle.Render("press q to quit")
	return view
}
