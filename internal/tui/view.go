package tui

import (
	"fmt"
	"strings"

	"devlens/internal/detail"
	"devlens/internal/model"
	"devlens/internal/session"
	"devlens/internal/tree"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Underline(true)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	kpiLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	kpiValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")). // Sky Blue/Cyan
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	adviceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")) // Orange

	borderColor = lipgloss.Color("63")
	activeColor = lipgloss.Color("205")
)

// paneSizes splits the window the same way for rendering and for sizing
// the detail viewport.
func (m AppModel) paneSizes() (left, right, interior int) {
	netWidth := m.WindowSize.Width - 6
	if netWidth < 20 {
		netWidth = 20
	}
	left = netWidth / 2
	right = netWidth - left

	// tab bar, KPI row, blank, footer (2) plus borders
	boxHeight := m.WindowSize.Height - 6
	if boxHeight < 6 {
		boxHeight = 6
	}
	interior = boxHeight - 2
	return left, right, interior
}

func (m *AppModel) resize() {
	_, right, interior := m.paneSizes()
	m.DetailsViewport.Width = right
	m.DetailsViewport.Height = interior

	w, h := m.dialogSize()
	m.HelpView.Width = w - 4
	m.HelpView.Height = h - 2
	if m.ShowHelp {
		m.HelpView.SetContent(m.renderHelp())
	}
}

func (m AppModel) dialogSize() (int, int) {
	w := m.WindowSize.Width * 80 / 100
	if w < 40 {
		w = 40
	}
	h := m.WindowSize.Height - 6
	if h < 5 {
		h = 5
	}
	return w, h
}

func (m *AppModel) syncDetail() {
	if !m.sess.IsOpen() {
		m.DetailsViewport.SetContent("")
		return
	}
	fields := m.sess.Detail(m.Tab)
	if len(fields) == 0 {
		msg := "Nothing selected."
		if st := m.sess.Status(m.Tab); st != "" {
			msg = st
		}
		m.DetailsViewport.SetContent(dimStyle.Render(msg))
		m.DetailsViewport.GotoTop()
		return
	}
	m.DetailsViewport.SetContent(detail.Terminal(fields, m.DetailsViewport.Width))
}

func (m AppModel) renderHelp() string {
	w := m.HelpView.Width
	if w < 20 {
		w = 60
	}
	md := m.opts.Help + iconLegend()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(w),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func (m AppModel) View() string {
	if m.WindowSize.Width == 0 {
		return "\n  Starting devlens...\n"
	}
	if !m.sess.IsOpen() {
		return m.renderClosed()
	}
	if m.ShowHelp {
		return m.renderHelpDialog()
	}
	if len(m.ParamInputs) > 0 {
		return m.renderParamModal()
	}

	leftWidth, _, interiorHeight := m.paneSizes()

	// LEFT PANEL: rows of the active tab
	var leftView strings.Builder
	header := m.Tab.Title()
	if q := m.sess.Filter(m.Tab); q != "" {
		header += dimStyle.Render(fmt.Sprintf("  filter: %q", q))
	}
	leftView.WriteString(activeTabStyle.Render(header))
	leftView.WriteString("\n\n")

	visibleItems := interiorHeight - 2
	if st := m.sess.Status(m.Tab); st != "" {
		leftView.WriteString(adviceStyle.Render(st))
		leftView.WriteString("\n")
		visibleItems--
	}
	v := m.sess.View(m.Tab)
	cursor := v.IndexOf(m.sess.Selected(m.Tab))
	leftView.WriteString(v.Render(cursor, leftWidth, visibleItems, tree.DefaultStyles()))

	left := lipgloss.NewStyle().
		Width(leftWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(activeColor).
		Render(leftView.String())

	right := lipgloss.NewStyle().
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		Render(m.DetailsViewport.View())

	footer := "\n" + m.footer()
	return m.renderTabs() + "\n" + m.renderKPI() + "\n" +
		lipgloss.JoinHorizontal(lipgloss.Top, left, right) + footer
}

func (m AppModel) renderTabs() string {
	parts := []string{titleStyle.Render("devlens")}
	for i, t := range session.Tabs {
		label := fmt.Sprintf("%d %s", i+1, t.Title())
		if t == m.Tab {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return strings.Join(parts, "  ")
}

func (m AppModel) renderKPI() string {
	k := m.sess.KPI()
	item := func(label, value string) string {
		return kpiLabelStyle.Render(label+" ") + kpiValueStyle.Render(value)
	}
	return strings.Join([]string{
		item("FPS", k.FPSText()),
		item("Memory", k.MemText()),
		item("Render", k.RenderText()),
		item("Nodes", k.NodesText()),
	}, "   ")
}

func (m AppModel) footer() string {
	if m.InputMode {
		return "Filter: " + m.InputBuffer.View()
	}
	help := "tab: switch • ↑/↓: move • /: filter • enter: open • r: refresh • y: copy • ?: help • " +
		m.opts.Hotkey + ": hide • q: quit"
	switch m.Tab {
	case session.TabLogs, session.TabNetwork:
		help = "c: clear • " + help
	}
	if m.Status != "" {
		return dimStyle.Render(m.Status) + "\n" + help
	}
	return "\n" + help
}

func (m AppModel) renderClosed() string {
	logs := len(m.sess.Feed().Logs())
	msg := fmt.Sprintf("devlens is hidden. Press %s to open, q to quit.\n%d log entries buffered.",
		m.opts.Hotkey, logs)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(msg)
	return lipgloss.Place(m.WindowSize.Width, m.WindowSize.Height,
		lipgloss.Center, lipgloss.Center, box)
}

func (m AppModel) renderParamModal() string {
	nav := m.sess.Navigator()
	var b strings.Builder
	pattern := ""
	if r := nav.Route(); r != nil {
		pattern = r.Pattern()
	}
	b.WriteString(titleStyle.Render("Navigate to " + pattern))
	b.WriteString("\n\n")
	for _, in := range m.ParamInputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if m.ParamErr != "" {
		b.WriteString("\n" + adviceStyle.Render(m.ParamErr) + "\n")
	}
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(
		"\nenter: go • tab: next field • esc: cancel"))

	dialog := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("208")). // Orange
		Padding(0, 1).
		Render(b.String())

	return lipgloss.Place(m.WindowSize.Width, m.WindowSize.Height,
		lipgloss.Center, lipgloss.Center,
		dialog,
	)
}

func (m AppModel) renderHelpDialog() string {
	w, h := m.dialogSize()
	if m.WindowSize.Width < 20 || m.WindowSize.Height < 10 {
		return "Window too small"
	}
	if w > m.WindowSize.Width-4 {
		w = m.WindowSize.Width - 4
	}

	dialog := lipgloss.NewStyle().
		Width(w).
		Height(h).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(m.HelpView.View())

	return lipgloss.Place(m.WindowSize.Width, m.WindowSize.Height,
		lipgloss.Center, lipgloss.Center,
		dialog,
	)
}

// iconLegend lists the glyphs the tree draws, appended to the help text.
func iconLegend() string {
	kinds := []model.Kind{model.KindModule, model.KindStore, model.KindObject, model.KindString,
		model.KindSignal, model.KindPlugin, model.KindStatic, model.KindDynamic, model.KindProfile}
	var b strings.Builder
	b.WriteString("\n## Icons\n\n")
	fmt.Fprintf(&b, "* `%s` component\n", model.IconComponent)
	for _, k := range kinds {
		fmt.Fprintf(&b, "* `%s` %s\n", model.IconFor(k), k)
	}
	return b.String()
}

func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitEvent(m.opts.Events)}
	if m.opts.StartOpen {
		cmds = append(cmds, func() tea.Msg { return msgToggle{} })
	}
	return tea.Batch(cmds...)
}
