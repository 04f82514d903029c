package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotback/internal/models"
)

var (
	_ list.Item = playlistItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}

// ListFunc loads the playlists shown by a [BrowserModel].
type ListFunc func(ctx context.Context) ([]models.Playlist, error)

// ExportFunc exports one playlist and returns where it was written and how many records it held.
type ExportFunc func(ctx context.Context, p models.Playlist) (string, int, error)

// BrowserModel lists playlists and exports the selected one on enter.
type BrowserModel struct {
	ctx       context.Context
	load      ListFunc
	export    ExportFunc
	list      list.Model
	loaded    bool
	exporting bool
	status    string
	err       error
	width     int
	height    int
	help      help.Model
	keys      keyMap
}

// NewBrowserModel creates a browser that loads playlists with load and exports them with export.
func NewBrowserModel(ctx context.Context, load ListFunc, export ExportFunc) *BrowserModel {
	return &BrowserModel{
		ctx:    ctx,
		load:   load,
		export: export,
		list:   list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

func (m *BrowserModel) Init() tea.Cmd {
	return m.fetchPlaylists()
}

func (m *BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.enter):
			if m.exporting {
				return m, nil
			}
			if item, ok := m.list.SelectedItem().(playlistItem); ok {
				m.exporting = true
				m.status = fmt.Sprintf("Exporting %s...", item.playlist.Name)
				return m, m.exportPlaylist(item.playlist)
			}
			return m, nil
		}

	case playlistsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(msg.playlists))
		for i, pl := range msg.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		m.loaded = true
		m.list.Title = fmt.Sprintf("Playlists (%d)", len(items))
		m.list.Styles.Title = styles.title
		return m, m.list.SetItems(items)

	case exportCompleteMsg:
		m.exporting = false
		if msg.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("✗ %s: %v", msg.playlist.Name, msg.err))
		} else {
			m.status = styles.ok.Render(fmt.Sprintf("✓ %s: %d tracks → %s", msg.playlist.Name, msg.records, msg.path))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *BrowserModel) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	}
	if !m.loaded {
		return styles.help.Render("Loading playlists...") + "\n"
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", m.list.View(), m.status, helpView)
}

// Err returns the load error that ended the program, if any.
func (m *BrowserModel) Err() error {
	return m.err
}

func (m *BrowserModel) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.load(m.ctx)
		return playlistsFetchedMsg{playlists: playlists, err: err}
	}
}

func (m *BrowserModel) exportPlaylist(p models.Playlist) tea.Cmd {
	return func() tea.Msg {
		path, records, err := m.export(m.ctx, p)
		return exportCompleteMsg{playlist: p, path: path, records: records, err: err}
	}
}
