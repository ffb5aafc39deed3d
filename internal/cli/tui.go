package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/nodevfs/pkg/errors"
	"github.com/matzehuels/nodevfs/pkg/install"
)

const barWidth = 40

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// Messages
// =============================================================================

type progressMsg install.Progress

type installDoneMsg struct {
	res *install.Result
	err error
}

// =============================================================================
// InstallModel - Live install progress
// =============================================================================

// InstallModel is the bubbletea model for the install progress view.
type InstallModel struct {
	Progress install.Progress
	Result   *install.Result
	Err      error
	Started  time.Time
	Roots    int

	cancel context.CancelFunc
}

// NewInstallModel creates a model for an install of roots dependencies.
func NewInstallModel(roots int, cancel context.CancelFunc) InstallModel {
	return InstallModel{
		Progress: install.Progress{Status: install.StatusIdle},
		Started:  time.Now(),
		Roots:    roots,
		cancel:   cancel,
	}
}

func (m InstallModel) Init() tea.Cmd {
	return nil
}

func (m InstallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
	case progressMsg:
		m.Progress = install.Progress(msg)
	case installDoneMsg:
		m.Result, m.Err = msg.res, msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m InstallModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(fmt.Sprintf("Installing %d dependencies", m.Roots)))
	b.WriteString("\n\n")

	p := m.Progress
	b.WriteString(renderBar(p.DownloadedPackages, p.TotalPackages))
	b.WriteString(" ")
	b.WriteString(StyleNumber.Render(fmt.Sprintf("%d/%d", p.DownloadedPackages, p.TotalPackages)))
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString(styleIconError.Render(iconError) + " " + errors.UserMessage(m.Err))
	case m.Result != nil:
		b.WriteString(styleIconSuccess.Render(iconSuccess) + " " +
			fmt.Sprintf("%d packages, %d files", m.Result.Stats.Packages, m.Result.Stats.Files))
	default:
		b.WriteString(StyleDim.Render(progressLine(p)))
	}
	b.WriteString("\n\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("%s elapsed  q cancel", time.Since(m.Started).Round(time.Second))))
	b.WriteString("\n")

	return b.String()
}

func renderBar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = min(barWidth, done*barWidth/total)
	}
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
}

// runInstallTUI drives an install while the progress view is shown.
// Quitting the view cancels the install.
func runInstallTUI(ctx context.Context, inst *install.Installer, deps map[string]string) (*install.Result, error) {
	installCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewInstallModel(len(deps), cancel), tea.WithContext(ctx))

	stop := inst.Progress().Subscribe(func(snap install.Progress) {
		p.Send(progressMsg(snap))
	})
	defer stop()

	go func() {
		res, err := inst.Install(installCtx, deps)
		p.Send(installDoneMsg{res: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := final.(InstallModel)
	if m.Result == nil && m.Err == nil {
		return nil, context.Canceled
	}
	return m.Result, m.Err
}
