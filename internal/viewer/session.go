// Package viewer serves an extracted embeddings archive as an interactive
// scatter-plot page.
package viewer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"embedview/internal/archive"
	"embedview/internal/embeddings"
	"embedview/internal/logging"
	"embedview/internal/metrics"
)

// ScratchDirs hands out fresh, empty directories for sessions.
// *datadir.DataDir satisfies it.
type ScratchDirs interface {
	NewSessionDir() (string, error)
}

// TempScratch creates session directories under os.TempDir.
type TempScratch struct{}

func (TempScratch) NewSessionDir() (string, error) {
	return os.MkdirTemp("", "embedview-session-*")
}

// Session is one archive extracted into its own scratch directory. The
// directory is removed by Close.
type Session struct {
	ID     string
	Dir    string
	Files  int
	Bytes  int64
	Groups int
	Points int

	closed bool
}

// OpenSession extracts the archive read from r into a fresh scratch
// directory and checks its meta.json. Nothing is left on disk on error.
// m and log may be nil.
func OpenSession(r io.Reader, dirs ScratchDirs, m *metrics.Metrics, log *logging.Logger) (*Session, error) {
	if log == nil {
		log = logging.Nop()
	}

	dir, err := dirs.NewSessionDir()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	log = log.With(map[string]interface{}{"session": id})

	res, err := archive.Extract(r, dir)
	if err != nil {
		observeExtraction(m, err, 0)
		log.Error("archive extraction failed", err, map[string]interface{}{"dir": dir})
		return nil, multierr.Append(err, os.RemoveAll(dir))
	}
	observeExtraction(m, nil, res.Files)

	doc, err := embeddings.Load(filepath.Join(dir, embeddings.MetaFileName))
	if err != nil {
		log.Error("archive metadata rejected", err, nil)
		return nil, multierr.Append(err, os.RemoveAll(dir))
	}

	s := &Session{
		ID:     id,
		Dir:    dir,
		Files:  res.Files,
		Bytes:  res.Bytes,
		Groups: len(doc.Groups),
		Points: doc.PointCount(),
	}
	log.Info("session opened", nil, map[string]interface{}{
		"dir":    dir,
		"files":  res.Files,
		"bytes":  res.Bytes,
		"groups": s.Groups,
		"points": s.Points,
	})
	return s, nil
}

// MetaPath returns the path of the extracted meta.json.
func (s *Session) MetaPath() string {
	return filepath.Join(s.Dir, embeddings.MetaFileName)
}

// Close removes the scratch directory. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("remove session dir: %w", err)
	}
	return nil
}

func observeExtraction(m *metrics.Metrics, err error, files int) {
	if m == nil {
		return
	}
	var pte *archive.PathTraversalError
	switch {
	case err == nil:
		m.ObserveExtraction(metrics.ResultOK, files)
	case errors.As(err, &pte):
		m.ObserveExtraction(metrics.ResultTraversal, 0)
	default:
		m.ObserveExtraction(metrics.ResultError, 0)
	}
}
