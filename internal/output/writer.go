package output

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/pdf2md/internal/domain"
)

const (
	defaultFilePerm = 0o644
	defaultDirPerm  = 0o755
	defaultBufSize  = 64 * 1024
)

// Options tunes the Writer; zero values pick the defaults
type Options struct {
	FilePerm os.FileMode
	DirPerm  os.FileMode
	BufSize  int
}

// Writer persists each output file with a single complete write into one
// directory. Existing files with the same name are replaced.
type Writer struct {
	dir     string
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// NewWriter creates a Writer rooted at dir. The directory is created lazily on
// the first write.
func NewWriter(dir string, opts *Options) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, domain.WriteError("output directory cannot be empty", nil)
	}

	w := &Writer{dir: dir, permF: defaultFilePerm, permD: defaultDirPerm, bufSize: defaultBufSize}
	if opts != nil {
		if opts.FilePerm != 0 {
			w.permF = opts.FilePerm
		}
		if opts.DirPerm != 0 {
			w.permD = opts.DirPerm
		}
		if opts.BufSize > 0 {
			w.bufSize = opts.BufSize
		}
	}
	return w, nil
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// Write stores content under name in the output directory and returns the
// full path. The content lands in a temp file in the same directory first and
// is renamed into place, so readers never observe a partial file.
func (w *Writer) Write(ctx context.Context, name string, content string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	dest, err := w.mapPath(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, w.permD); err != nil {
		return "", domain.WriteError(fmt.Sprintf("cannot create output directory %s", w.dir), err)
	}
	if err := w.writeAtomic(dest, content); err != nil {
		return "", domain.WriteError(fmt.Sprintf("cannot write %s", dest), err)
	}
	return dest, nil
}

// WriteFile is Write for a prepared OutputFile; only the base name of
// f.Path is used.
func (w *Writer) WriteFile(ctx context.Context, f domain.OutputFile) (string, error) {
	return w.Write(ctx, filepath.Base(f.Path), f.Content)
}

// mapPath keeps every file flat inside the output directory.
func (w *Writer) mapPath(name string) (string, error) {
	rel := filepath.Base(filepath.Clean(name))
	if rel == "." || rel == ".." || rel == string(filepath.Separator) || rel == "" {
		return "", domain.WriteError(fmt.Sprintf("invalid output file name %q", name), nil)
	}
	return filepath.Join(w.dir, rel), nil
}

func (w *Writer) writeAtomic(dest, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, w.permF)

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if _, err := bw.WriteString(content); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
