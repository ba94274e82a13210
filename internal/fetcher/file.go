package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rotisserie/eris"
)

// FileSource expands the pattern, joined onto a directory, against the local
// filesystem. Files are read one at a time.
type FileSource struct {
	dir     string
	pattern Pattern
}

// NewFileSource creates a source for file:///dir. A URL with a host part,
// such as file://data/in, is read relative to the working directory.
func NewFileSource(u *url.URL, pattern Pattern) *FileSource {
	dir := u.Path
	if u.Host != "" && u.Host != "localhost" {
		dir = u.Host + u.Path
	}
	return &FileSource{dir: filepath.FromSlash(dir), pattern: pattern}
}

// Name implements Source.
func (s *FileSource) Name() string {
	return "file://" + filepath.ToSlash(s.dir)
}

// Sequential implements sequential.
func (s *FileSource) Sequential() bool { return true }

// List implements Source.
func (s *FileSource) List(_ context.Context) ([]string, error) {
	glob := s.pattern.String()
	if s.dir != "" {
		glob = filepath.Join(s.dir, glob)
	}

	matches, err := doublestar.FilepathGlob(glob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, eris.Wrapf(err, "file: glob %s", glob)
	}
	return matches, nil
}

// Open implements Source.
func (s *FileSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(key)
	if err != nil {
		return nil, eris.Wrapf(err, "file: open %s", key)
	}
	return f, nil
}
