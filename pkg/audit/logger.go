package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/newtron-network/ctlsh/pkg/util"
)

// Logger defines the interface for audit logging backends
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Close() error
}

// FileLogger appends audit events to a JSON-lines file. When the file
// would grow past RotationConfig.MaxSize it is renamed to <path>.1, older
// backups shift up by one, and <path>.<MaxBackups+1> is removed.
type FileLogger struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	size     int64
	rotation RotationConfig
}

// RotationConfig configures log file rotation
type RotationConfig struct {
	MaxSize    int64 // bytes; 0 never rotates
	MaxBackups int   // rotated files kept; at least 1
}

// NewFileLogger opens path for appending, creating its directory.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return l, nil
}

func (l *FileLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	l.file, l.size = file, info.Size()
	return nil
}

// Log appends one event.
func (l *FileLogger) Log(event *Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit log %s is closed", l.path)
	}
	if l.rotation.MaxSize > 0 && l.size > 0 && l.size+int64(len(line)) > l.rotation.MaxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotating audit log: %w", err)
		}
	}
	n, err := l.file.Write(line)
	l.size += int64(n)
	return err
}

func (l *FileLogger) backup(n int) string {
	return l.path + "." + strconv.Itoa(n)
}

func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	keep := l.rotation.MaxBackups
	if keep < 1 {
		keep = 1
	}
	if err := os.Remove(l.backup(keep)); err != nil && !os.IsNotExist(err) {
		return err
	}
	for n := keep - 1; n >= 1; n-- {
		if err := os.Rename(l.backup(n), l.backup(n+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(l.path, l.backup(1)); err != nil {
		return err
	}
	util.WithField("path", l.path).Debug("audit log rotated")
	return l.open()
}

// files returns the rotated backups, oldest first, then the live file.
func (l *FileLogger) files() []string {
	matches, _ := filepath.Glob(l.path + ".*")
	type numbered struct {
		path string
		n    int
	}
	var backups []numbered
	for _, m := range matches {
		n, err := strconv.Atoi(strings.TrimPrefix(m, l.path+"."))
		if err != nil || n < 1 {
			continue
		}
		backups = append(backups, numbered{m, n})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].n > backups[j].n })

	paths := make([]string, 0, len(backups)+1)
	for _, b := range backups {
		paths = append(paths, b.path)
	}
	return append(paths, l.path)
}

// Query returns the events matching filter from the live file and its
// backups, oldest first.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var events []*Event
	for _, path := range l.files() {
		var err error
		events, err = readEvents(path, filter, events)
		if err != nil {
			return nil, err
		}
	}
	return filter.page(events), nil
}

// readEvents appends the matching events of one file to events. Lines
// that are not valid JSON are skipped with a warning.
func readEvents(path string, filter Filter, events []*Event) ([]*Event, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return events, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			util.Warnf("audit: skipping malformed entry %s:%d: %v", filepath.Base(path), lineNum, err)
			continue
		}
		if filter.Matches(&event) {
			events = append(events, &event)
		}
	}
	return events, scanner.Err()
}

// Close closes the log file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// MemoryLogger keeps events in memory, for sessions without an audit
// file and for tests.
type MemoryLogger struct {
	mu     sync.Mutex
	events []*Event
}

// Log appends the event.
func (l *MemoryLogger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Query returns the events matching filter, oldest first.
func (l *MemoryLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var events []*Event
	for _, e := range l.events {
		if filter.Matches(e) {
			events = append(events, e)
		}
	}
	return filter.page(events), nil
}

// Close is a no-op.
func (l *MemoryLogger) Close() error {
	return nil
}
