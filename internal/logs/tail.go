package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CurrentName is the file in the log directory that points at the active run.
const CurrentName = "songflow.log"

const maxLineBytes = 1024 * 1024

// CurrentPath returns the pointer to the active run's log file.
func CurrentPath(logDir string) string {
	return filepath.Join(logDir, CurrentName)
}

// Filter keeps lines containing every non-empty term.
type Filter []string

func (f Filter) match(line string) bool {
	for _, term := range f {
		if term != "" && !strings.Contains(line, term) {
			return false
		}
	}
	return true
}

// Last returns up to n matching lines from the end of path and the offset
// just past them. A missing file yields no lines and offset zero.
func Last(path string, n int, filter Filter) ([]string, int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, n)
	count, next := 0, 0
	offset, err := scanLines(file, func(line string) {
		if !filter.match(line) {
			return
		}
		ring[next] = line
		next = (next + 1) % n
		if count < n {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == n {
		start = next
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%n])
	}
	return lines, offset, nil
}

// Follow emits matching lines appended to path after offset until ctx is
// done. A truncated or replaced file is read again from the start.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, filter Filter, emit func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var current os.FileInfo
	if info, err := os.Stat(path); err == nil {
		current = info
	}

	for {
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			offset = 0
			current = nil
		case err != nil:
			return fmt.Errorf("stat log file: %w", err)
		default:
			if current != nil && !os.SameFile(current, info) {
				offset = 0
			}
			if info.Size() < offset {
				offset = 0
			}
			current = info
			if info.Size() > offset {
				offset, err = readFrom(path, offset, filter, emit)
				if err != nil {
					return err
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, filter Filter, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	read, err := scanLines(file, func(line string) {
		if filter.match(line) {
			emit(line)
		}
	})
	if err != nil {
		return offset, err
	}
	return read, nil
}

// scanLines calls fn for each complete line and returns the file offset after
// the last newline, so a partially written line is read again next time.
func scanLines(file *os.File, fn func(string)) (int64, error) {
	start, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	consumed := start
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			trimmed := strings.TrimRight(line, "\r\n")
			if len(trimmed) > maxLineBytes {
				trimmed = trimmed[:maxLineBytes]
			}
			fn(trimmed)
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}
