// package formatter writes track records to snapshot files (CSV, plain text, JSON, Markdown)
package formatter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/shared"
)

// Format selects the snapshot serialization.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// CSVHeader is the column order of tabular snapshots.
var CSVHeader = []string{"playlist_name", "artist_name", "track_name", "album_name", "popularity", "spotify_uri"}

// artistSep joins multiple artists inside a single CSV cell.
const artistSep = ";"

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want csv, txt, json or markdown)", shared.ErrInvalidFlag, s)
	}
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case "":
		return string(FormatCSV)
	default:
		return string(f)
	}
}

// SnapshotPath returns dir/playlist_backups_<YYYY-MM-DD>.<ext>.
func SnapshotPath(dir string, date time.Time, f Format) string {
	return filepath.Join(dir, fmt.Sprintf("playlist_backups_%s.%s", date.Format(time.DateOnly), f.Ext()))
}

// RecordWriter serializes records incrementally.
//
// WriteRecords may be called any number of times between WriteHeader and Close.
// Each call holds one or more whole collections, so headed formats start a new
// section per call even when two collections share a name.
type RecordWriter interface {
	WriteHeader() error
	WriteRecords(records []models.TrackRecord) error
	Close() error
}

// NewRecordWriter returns the [RecordWriter] for f writing to w.
func NewRecordWriter(w io.Writer, f Format) (RecordWriter, error) {
	switch f {
	case FormatCSV, "":
		return &csvWriter{w: csv.NewWriter(w)}, nil
	case FormatText:
		return &textWriter{w: w}, nil
	case FormatJSON:
		return &jsonWriter{w: w}, nil
	case FormatMarkdown:
		return &markdownWriter{textWriter{w: w}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
	}
}

// WriteSnapshot writes all records to w in a single pass.
func WriteSnapshot(w io.Writer, f Format, records []models.TrackRecord) error {
	rw, err := NewRecordWriter(w, f)
	if err != nil {
		return err
	}
	if err := rw.WriteHeader(); err != nil {
		return err
	}
	if err := rw.WriteRecords(records); err != nil {
		return err
	}
	return rw.Close()
}

// ToCSVRow converts a record to a row in [CSVHeader] order.
func ToCSVRow(r models.TrackRecord) []string {
	return []string{
		r.PlaylistName,
		r.ArtistNames(artistSep),
		r.TrackName,
		r.AlbumName,
		strconv.Itoa(r.Popularity),
		r.URI,
	}
}

type csvWriter struct {
	w *csv.Writer
}

func (c *csvWriter) WriteHeader() error {
	if err := c.w.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	return nil
}

func (c *csvWriter) WriteRecords(records []models.TrackRecord) error {
	for _, r := range records {
		if err := c.w.Write(ToCSVRow(r)); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	return nil
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// textWriter renders the free-text listing: one heading per collection and numbered tracks below it.
type textWriter struct {
	w       io.Writer
	current string
	started bool
	n       int
}

func (t *textWriter) WriteHeader() error { return nil }

func (t *textWriter) WriteRecords(records []models.TrackRecord) error {
	for i, r := range records {
		if t.section(i, r) {
			if err := t.heading(r.PlaylistName); err != nil {
				return err
			}
		}
		t.n++
		if _, err := fmt.Fprintf(t.w, "  %d. %s\n", t.n, Line(r)); err != nil {
			return fmt.Errorf("failed to write text record: %w", err)
		}
	}
	return nil
}

// section reports whether the i-th record of a WriteRecords call opens a new heading.
func (t *textWriter) section(i int, r models.TrackRecord) bool {
	return i == 0 || r.PlaylistName != t.current
}

func (t *textWriter) heading(name string) error {
	prefix := ""
	if t.started {
		prefix = "\n"
	}
	t.started, t.current, t.n = true, name, 0
	if _, err := fmt.Fprintf(t.w, "%sPlaylist: %s\n", prefix, name); err != nil {
		return fmt.Errorf("failed to write text heading: %w", err)
	}
	return nil
}

func (t *textWriter) Close() error { return nil }

// Line formats a record as "Artist1, Artist2 - Track (Album) [popularity P] uri".
func Line(r models.TrackRecord) string {
	album := ""
	if r.AlbumName != "" {
		album = fmt.Sprintf(" (%s)", r.AlbumName)
	}
	return fmt.Sprintf("%s - %s%s [popularity %d] %s", r.ArtistNames(", "), r.TrackName, album, r.Popularity, r.URI)
}

type markdownWriter struct {
	textWriter
}

func (m *markdownWriter) WriteHeader() error {
	if _, err := io.WriteString(m.w, "# Playlist Backup\n"); err != nil {
		return fmt.Errorf("failed to write Markdown header: %w", err)
	}
	return nil
}

func (m *markdownWriter) WriteRecords(records []models.TrackRecord) error {
	for i, r := range records {
		if m.section(i, r) {
			m.started, m.current, m.n = true, r.PlaylistName, 0
			if _, err := fmt.Fprintf(m.w, "\n## %s\n\n", r.PlaylistName); err != nil {
				return fmt.Errorf("failed to write Markdown heading: %w", err)
			}
		}
		m.n++

		album := ""
		if r.AlbumName != "" {
			album = fmt.Sprintf(" (%s)", r.AlbumName)
		}
		_, err := fmt.Fprintf(m.w, "%d. %s - %s%s `%s` [%d]\n", m.n, r.ArtistNames(", "), r.TrackName, album, r.URI, r.Popularity)
		if err != nil {
			return fmt.Errorf("failed to write Markdown record: %w", err)
		}
	}
	return nil
}

// jsonWriter streams a JSON array without holding the whole snapshot.
type jsonWriter struct {
	w     io.Writer
	count int
}

func (j *jsonWriter) WriteHeader() error {
	_, err := io.WriteString(j.w, "[")
	return err
}

func (j *jsonWriter) WriteRecords(records []models.TrackRecord) error {
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		sep := ",\n  "
		if j.count == 0 {
			sep = "\n  "
		}
		if _, err := io.WriteString(j.w, sep); err != nil {
			return err
		}
		if _, err := j.w.Write(data); err != nil {
			return err
		}
		j.count++
	}
	return nil
}

func (j *jsonWriter) Close() error {
	tail := "\n]\n"
	if j.count == 0 {
		tail = "]\n"
	}
	_, err := io.WriteString(j.w, tail)
	return err
}
