package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotback/internal/tasks"
)

const (
	maxBarWidth  = 60
	visibleLines = 8
)

// BackupFunc runs one backup, reporting to progress. It is typically a closure over [tasks.Backup].
type BackupFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.BackupResult, error)

// BackupModel renders a running backup: a spinner with the current step, a progress bar over collections,
// and the most recently finished collections. It quits on its own when the backup returns.
type BackupModel struct {
	ctx          context.Context
	cancel       context.CancelFunc
	run          BackupFunc
	progressChan chan tasks.ProgressUpdate
	doneChan     chan backupCompleteMsg
	spinner      spinner.Model
	bar          progress.Model
	update       tasks.ProgressUpdate
	lines        []string
	result       *tasks.BackupResult
	err          error
	done         bool
	help         help.Model
	keys         keyMap
}

// NewBackupModel creates a model that starts run when the program initializes.
func NewBackupModel(ctx context.Context, run BackupFunc) *BackupModel {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.ok

	return &BackupModel{
		ctx:     ctx,
		cancel:  cancel,
		run:     run,
		spinner: s,
		bar:     progress.New(progress.WithGradient("#1DB954", "#04B575"), progress.WithWidth(maxBarWidth)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Result returns the outcome once the program has exited.
func (m *BackupModel) Result() (*tasks.BackupResult, error) {
	return m.result, m.err
}

func (m *BackupModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

func (m *BackupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		if m.done {
			return m, tea.Quit
		}
		if key.Matches(msg, m.keys.cancel) || key.Matches(msg, m.keys.quit) {
			m.cancel()
			m.lines = append(m.lines, styles.warn.Render("Cancelling..."))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		if b, ok := bar.(progress.Model); ok {
			m.bar = b
		}
		return m, cmd

	case progressUpdateMsg:
		m.update = tasks.ProgressUpdate(msg)
		cmds := []tea.Cmd{m.waitForProgress()}

		if m.update.Phase == tasks.ExportingCollection {
			m.lines = append(m.lines, m.update.Message)
			if m.update.Total > 0 {
				cmds = append(cmds, m.bar.SetPercent(float64(m.update.Step)/float64(m.update.Total)))
			}
		}
		return m, tea.Batch(cmds...)

	case backupCompleteMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		m.cancel()
		return m, tea.Quit
	}

	return m, nil
}

func (m *BackupModel) View() string {
	if m.done {
		if m.err != nil {
			return styles.err.Render(fmt.Sprintf("✗ Backup failed: %v", m.err)) + "\n"
		}
		return Summary(m.result) + "\n"
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("Backing up library"))
	b.WriteString("\n")

	message := m.update.Message
	if message == "" {
		message = "Starting..."
	}
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), message)
	b.WriteString(m.bar.View())
	b.WriteString("\n\n")

	start := max(len(m.lines)-visibleLines, 0)
	for _, line := range m.lines[start:] {
		b.WriteString(styles.help.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.cancel}))
	return b.String()
}

func (m *BackupModel) start() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan backupCompleteMsg, 1)

	go func() {
		result, err := m.run(m.ctx, m.progressChan)
		m.doneChan <- backupCompleteMsg{result: result, err: err}
		close(m.progressChan)
	}()

	return m.waitForProgress()
}

func (m *BackupModel) waitForProgress() tea.Cmd {
	progressChan, doneChan := m.progressChan, m.doneChan
	return func() tea.Msg {
		update, ok := <-progressChan
		if !ok {
			return <-doneChan
		}
		return progressUpdateMsg(update)
	}
}

// Summary renders the outcome of a committed backup.
func Summary(result *tasks.BackupResult) string {
	if result == nil {
		return styles.warn.Render("No result available")
	}

	var b strings.Builder
	b.WriteString(styles.ok.Render("✓ Backup complete"))
	b.WriteString("\n")

	if result.Path != "" {
		fmt.Fprintf(&b, "  Snapshot:    %s\n", result.Path)
	}
	fmt.Fprintf(&b, "  User:        %s\n", result.Username)
	fmt.Fprintf(&b, "  Playlists:   %d\n", result.Playlists)
	fmt.Fprintf(&b, "  Records:     %d\n", result.Records)
	fmt.Fprintf(&b, "  Duration:    %s", result.Duration.Round(time.Millisecond))

	for _, c := range result.Collections {
		b.WriteString("\n")
		b.WriteString(styles.help.Render(fmt.Sprintf("    %-30s %6d", c.Collection.Label(), c.Records)))
	}
	return b.String()
}
