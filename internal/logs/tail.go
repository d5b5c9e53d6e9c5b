package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const fallbackPoll = 250 * time.Millisecond

// Options controls Tail.
type Options struct {
	// Offset is the byte position to resume from. Negative means "the last
	// Limit lines".
	Offset int64
	Limit  int
	// Wait blocks up to this long for new lines when none are available.
	Wait time.Duration
}

// Chunk is a batch of complete lines and the offset just past them.
type Chunk struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// Tail reads lines from path. A missing file reads as empty at offset 0.
func Tail(ctx context.Context, path string, opts Options) (Chunk, error) {
	var chunk Chunk
	var err error
	if opts.Offset < 0 {
		chunk, err = lastLines(path, opts.Limit)
	} else {
		chunk, err = readFrom(path, opts.Offset)
	}
	if err != nil || len(chunk.Lines) > 0 || opts.Wait <= 0 {
		return chunk, err
	}
	return waitForLines(ctx, path, chunk.Offset, opts.Wait)
}

func open(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	return file, info.Size(), nil
}

// scanLines calls fn for each newline-terminated line from r and returns
// the number of bytes consumed.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		fn(strings.TrimRight(line, "\r\n"))
	}
}

func lastLines(path string, limit int) (Chunk, error) {
	file, size, err := open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Chunk{}, nil
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		return Chunk{Offset: size}, nil
	}
	ring := make([]string, 0, limit)
	start := 0
	consumed, err := scanLines(io.LimitReader(file, size), func(line string) {
		if len(ring) < limit {
			ring = append(ring, line)
			return
		}
		ring[start] = line
		start = (start + 1) % limit
	})
	if err != nil {
		return Chunk{}, err
	}
	lines := append(append([]string(nil), ring[start:]...), ring[:start]...)
	return Chunk{Lines: lines, Offset: consumed}, nil
}

// readFrom returns complete lines after offset. An offset past the end of
// the file means it was truncated by a rerun, so reading restarts at 0.
func readFrom(path string, offset int64) (Chunk, error) {
	file, size, err := open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Chunk{}, nil
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if offset > size {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{}, fmt.Errorf("seek log file: %w", err)
	}
	chunk := Chunk{Offset: offset}
	consumed, err := scanLines(io.LimitReader(file, size-offset), func(line string) {
		chunk.Lines = append(chunk.Lines, line)
	})
	if err != nil {
		return Chunk{}, err
	}
	chunk.Offset += consumed
	return chunk, nil
}

// waitForLines re-reads path whenever its directory changes, or on a short
// poll when the directory cannot be watched, until lines arrive or wait
// elapses.
func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration) (Chunk, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	var events <-chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if watcher.Add(filepath.Dir(path)) == nil {
			events = watcher.Events
		}
	}
	ticker := time.NewTicker(fallbackPoll)
	defer ticker.Stop()
	if events != nil {
		ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return Chunk{Offset: offset}, ctx.Err()
		case <-timer.C:
			return readFrom(path, offset)
		case ev := <-events:
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
		case <-ticker.C:
		}
		chunk, err := readFrom(path, offset)
		if err != nil || len(chunk.Lines) > 0 {
			return chunk, err
		}
		offset = chunk.Offset
	}
}
