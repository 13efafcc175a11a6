// Package discovery walks an analysis directory tree once and indexes the
// report files modules can query by filename pattern. Reads are whole-file
// and synchronous; a single unreadable file is logged and skipped, never
// aborting the scan.
package discovery

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/klauspost/pgzip"
)

// DefaultMaxFileSize caps how large a report file may be before it is
// skipped. QC reports are small; anything bigger is raw data.
const DefaultMaxFileSize int64 = 16 << 20

const gzExt = ".gz"

// ErrRootNotDirectory is returned when the analysis path is not a directory.
var ErrRootNotDirectory = errors.New("analysis path is not a directory")

// File is one discovered report file. Name has any .gz suffix stripped and
// Content holds the (decompressed) file body.
type File struct {
	Root    string
	Name    string
	Path    string
	Content []byte
}

// Text returns the file content as a string.
func (f File) Text() string {
	return string(f.Content)
}

// Pattern matches discovered files by name. Any combination of fields may
// be set; all set fields must match.
type Pattern struct {
	Exact    string
	Suffix   string
	Contains string
	Re       *regexp.Regexp
}

// Match reports whether the filename satisfies the pattern.
func (p Pattern) Match(name string) bool {
	if p.Exact != "" && name != p.Exact {
		return false
	}

	if p.Suffix != "" && !strings.HasSuffix(name, p.Suffix) {
		return false
	}

	if p.Contains != "" && !strings.Contains(name, p.Contains) {
		return false
	}

	if p.Re != nil && !p.Re.MatchString(name) {
		return false
	}

	return true
}

// Options configures a scan.
type Options struct {
	MaxFileSize int64
	Logger      *slog.Logger
}

// Index holds every file collected by a scan.
type Index struct {
	files []File
}

// NewIndex builds an index directly from files, bypassing the filesystem.
func NewIndex(files ...File) *Index {
	return &Index{files: files}
}

// Scan walks root and reads every regular file up to the size limit into an
// Index. Hidden directories are skipped. Gzip-compressed files are
// decompressed transparently.
func Scan(root string, opts Options) (*Index, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return nil, ErrRootNotDirectory
	}

	ix := &Index{}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable path", "path", path, "error", err)

			if d != nil && d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		fi, statErr := d.Info()
		if statErr != nil {
			logger.Warn("skipping unstatable file", "path", path, "error", statErr)

			return nil
		}

		if fi.Size() > opts.MaxFileSize {
			logger.Debug("skipping oversized file", "path", path, "size", fi.Size())

			return nil
		}

		file, readErr := readFile(root, path, opts.MaxFileSize)
		if readErr != nil {
			logger.Warn("skipping unreadable file", "path", path, "error", readErr)

			return nil
		}

		ix.files = append(ix.files, file)

		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return ix, nil
}

func readFile(root, path string, maxSize int64) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer f.Close()

	name := filepath.Base(path)

	var r io.Reader = f

	if strings.HasSuffix(name, gzExt) {
		gz, gzErr := pgzip.NewReader(f)
		if gzErr != nil {
			return File{}, gzErr
		}
		defer gz.Close()

		name = strings.TrimSuffix(name, gzExt)
		r = gz
	}

	content, err := io.ReadAll(io.LimitReader(r, maxSize))
	if err != nil {
		return File{}, err
	}

	return File{
		Root:    filepath.Dir(path),
		Name:    name,
		Path:    path,
		Content: content,
	}, nil
}

// Find returns every indexed file matching any of the given patterns, in
// walk order.
func (ix *Index) Find(patterns ...Pattern) []File {
	var out []File

	for _, f := range ix.files {
		for _, p := range patterns {
			if p.Match(f.Name) {
				out = append(out, f)

				break
			}
		}
	}

	return out
}

// Len returns the number of indexed files.
func (ix *Index) Len() int {
	return len(ix.files)
}
