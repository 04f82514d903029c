package formatter

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/shared"
)

// Sink receives the records of one snapshot in output order.
//
// Begin is called once before any Write. Exactly one of Commit or Abort ends the snapshot;
// after Abort nothing written so far is visible at the destination.
type Sink interface {
	Begin() error
	Write(records ...models.TrackRecord) error
	Commit() error
	Abort() error
}

// FileSink streams a snapshot to a temporary file next to its final path
// and renames it into place on Commit.
type FileSink struct {
	path   string
	format Format
	file   *os.File
	buf    *bufio.Writer
	rw     RecordWriter
	count  int
}

// NewFileSink returns a sink that will write path in format f.
func NewFileSink(path string, f Format) *FileSink {
	return &FileSink{path: path, format: f}
}

// Path is the final location of the snapshot.
func (s *FileSink) Path() string { return s.path }

// Count is the number of records written so far.
func (s *FileSink) Count() int { return s.count }

func (s *FileSink) Format() Format { return s.format }

func (s *FileSink) Begin() error {
	if s.file != nil {
		return fmt.Errorf("%w: sink already started", shared.ErrSnapshotWrite)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create output directory: %w", shared.ErrSnapshotWrite, err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %w", shared.ErrSnapshotWrite, err)
	}

	s.file = f
	s.buf = bufio.NewWriter(f)
	if s.rw, err = NewRecordWriter(s.buf, s.format); err != nil {
		s.cleanup()
		return err
	}
	if err := s.rw.WriteHeader(); err != nil {
		s.cleanup()
		return fmt.Errorf("%w: %w", shared.ErrSnapshotWrite, err)
	}
	return nil
}

func (s *FileSink) Write(records ...models.TrackRecord) error {
	if s.rw == nil {
		return fmt.Errorf("%w: sink not started", shared.ErrSnapshotWrite)
	}
	if err := s.rw.WriteRecords(records); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrSnapshotWrite, err)
	}
	s.count += len(records)
	return nil
}

// Commit flushes and syncs the temporary file and renames it to the final path.
func (s *FileSink) Commit() error {
	if s.file == nil {
		return fmt.Errorf("%w: sink not started", shared.ErrSnapshotWrite)
	}

	err := s.rw.Close()
	if err == nil {
		err = s.buf.Flush()
	}
	if err == nil {
		err = s.file.Sync()
	}
	if closeErr := s.file.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(s.file.Name(), s.path)
	}
	if err != nil {
		os.Remove(s.file.Name())
		s.reset()
		return fmt.Errorf("%w: %w", shared.ErrSnapshotWrite, err)
	}

	s.reset()
	return nil
}

// Abort discards the temporary file. It is safe to call after a failed Begin or Commit.
func (s *FileSink) Abort() error {
	if s.file == nil {
		return nil
	}
	return s.cleanup()
}

func (s *FileSink) cleanup() error {
	name := s.file.Name()
	closeErr := s.file.Close()
	s.reset()

	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove temp file: %w", err)
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return closeErr
	}
	return nil
}

func (s *FileSink) reset() {
	s.file, s.buf, s.rw = nil, nil, nil
}

// WriterSink holds the whole snapshot in memory and copies it to w on Commit.
type WriterSink struct {
	w      io.Writer
	format Format
	buf    bytes.Buffer
	rw     RecordWriter
	count  int
}

// NewWriterSink returns a sink for streams that cannot be rolled back, such as stdout.
func NewWriterSink(w io.Writer, f Format) *WriterSink {
	return &WriterSink{w: w, format: f}
}

func (s *WriterSink) Count() int { return s.count }

func (s *WriterSink) Format() Format { return s.format }

func (s *WriterSink) Begin() error {
	s.buf.Reset()
	s.count = 0

	rw, err := NewRecordWriter(&s.buf, s.format)
	if err != nil {
		return err
	}
	s.rw = rw
	return rw.WriteHeader()
}

func (s *WriterSink) Write(records ...models.TrackRecord) error {
	if s.rw == nil {
		return fmt.Errorf("%w: sink not started", shared.ErrSnapshotWrite)
	}
	if err := s.rw.WriteRecords(records); err != nil {
		return err
	}
	s.count += len(records)
	return nil
}

func (s *WriterSink) Commit() error {
	if s.rw == nil {
		return fmt.Errorf("%w: sink not started", shared.ErrSnapshotWrite)
	}
	defer func() { s.rw = nil }()

	if err := s.rw.Close(); err != nil {
		return err
	}
	if _, err := s.buf.WriteTo(s.w); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrSnapshotWrite, err)
	}
	return nil
}

func (s *WriterSink) Abort() error {
	s.buf.Reset()
	s.rw = nil
	return nil
}
