package logbook

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const followInterval = 250 * time.Millisecond

// Logbook is a task's append-only output file.
type Logbook struct {
	path string
}

// New returns the logbook stored at path.
func New(path string) *Logbook {
	return &Logbook{path: path}
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// OpenAppend opens the file for appending, creating it if needed. The
// supervisor hands the result to a detached process as stdout and stderr.
func (l *Logbook) OpenAppend() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logbook: open %s: %w", l.path, err)
	}
	return f, nil
}

// Tail returns up to maxLines of the most recent lines and the byte offset
// where reading stopped, so Follow can pick up from there.
func (l *Logbook) Tail(maxLines int) ([]string, int64, error) {
	if l == nil || maxLines <= 0 {
		return nil, 0, nil
	}
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	var (
		lines  []string
		offset int64
	)
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			offset += int64(len(line))
			lines = append(lines, line[:len(line)-1])
			if len(lines) > maxLines {
				lines = lines[len(lines)-maxLines:]
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}
	return lines, offset, nil
}

// Follow copies bytes appended after offset to w until ctx is done. A
// missing file is waited for; a truncated file is read from the start.
func (l *Logbook) Follow(ctx context.Context, w io.Writer, offset int64) error {
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	for {
		next, err := l.copyFrom(w, offset)
		if err != nil {
			return err
		}
		offset = next
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (l *Logbook) copyFrom(w io.Writer, offset int64) (int64, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return offset, nil
		}
		return offset, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return offset, err
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}
	n, err := io.Copy(w, file)
	return offset + n, err
}
