package tui

import (
	"fmt"

	"devlens/internal/loader"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

// MsgFetchProgress mirrors a loader.Progress change.
type MsgFetchProgress struct {
	Value float64
	State loader.BarState
}

// MsgFetchDone ends a bundle download.
type MsgFetchDone struct {
	Result loader.Result
	Err    error
}

// FetchModel draws the bundle loader's progress bar.
type FetchModel struct {
	URL    string
	bar    progress.Model
	state  loader.BarState
	done   bool
	result loader.Result
	err    error
}

// NewFetchModel returns a bar at 0%.
func NewFetchModel(url string) FetchModel {
	return FetchModel{
		URL: url,
		bar: progress.New(progress.WithDefaultGradient()),
	}
}

func (m FetchModel) Init() tea.Cmd {
	return nil
}

func (m FetchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4
		if m.bar.Width > 80 {
			m.bar.Width = 80
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.err = fmt.Errorf("fetch %s: interrupted", m.URL)
			m.done = true
			return m, tea.Quit
		}

	case MsgFetchProgress:
		m.state = msg.State
		return m, m.bar.SetPercent(msg.Value / 100)

	case MsgFetchDone:
		m.done = true
		m.result, m.err = msg.Result, msg.Err
		return m, tea.Quit

	case progress.FrameMsg:
		pm, cmd := m.bar.Update(msg)
		m.bar = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m FetchModel) View() string {
	if m.done {
		if m.err != nil {
			return fmt.Sprintf("\n  Failed: %v\n", m.err)
		}
		return fmt.Sprintf("\n  Loaded %s (%s)\n", m.result.URL, humanize.Bytes(uint64(len(m.result.Data))))
	}
	if m.state == loader.BarRemoved {
		return "\n  Fetching " + m.URL + "\n"
	}
	return "\n  Fetching " + m.URL + "\n\n  " + m.bar.View() + "\n"
}

// Result is the finished download, or the error that ended it.
func (m FetchModel) Result() (loader.Result, error) {
	return m.result, m.err
}
