package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestEvent_New(t *testing.T) {
	event := NewEvent("alice", "tag", OpCreate)

	if event.User != "alice" {
		t.Errorf("User = %q, want %q", event.User, "alice")
	}
	if event.ObjType != "tag" {
		t.Errorf("ObjType = %q, want %q", event.ObjType, "tag")
	}
	if event.Operation != OpCreate {
		t.Errorf("Operation = %q, want %q", event.Operation, OpCreate)
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestEvent_Chaining(t *testing.T) {
	event := NewEvent("alice", "forwarding-config", OpUpdate).
		WithCommand("config", "forwarding access-priority 100").
		WithKey("forwarding").
		WithChanges(map[string]interface{}{"access-priority": int64(100)}).
		WithResult(nil).
		WithDuration(time.Second)

	if event.Mode != "config" || event.Command != "forwarding access-priority 100" {
		t.Errorf("command = %q in %q", event.Command, event.Mode)
	}
	if event.Key != "forwarding" {
		t.Errorf("Key = %q", event.Key)
	}
	if len(event.Changes) != 1 {
		t.Errorf("Expected 1 change, got %d", len(event.Changes))
	}
	if !event.Success {
		t.Error("Success should be true")
	}
	if event.Duration != time.Second {
		t.Errorf("Duration = %v", event.Duration)
	}
}

func TestEvent_WithResultError(t *testing.T) {
	event := NewEvent("alice", "tag", OpDelete).WithResult(errors.New("test error"))

	if event.Success {
		t.Error("Success should be false")
	}
	if event.Error != "test error" {
		t.Errorf("Error = %q", event.Error)
	}
}

func newFileLogger(t *testing.T, rotation RotationConfig) (*FileLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, rotation)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, logPath
}

func TestFileLogger_Basic(t *testing.T) {
	logger, _ := newFileLogger(t, RotationConfig{})

	event := NewEvent("alice", "tag", OpCreate).WithKey("default|a|1").WithResult(nil)
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].User != "alice" || events[0].Key != "default|a|1" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	logger, _ := newFileLogger(t, RotationConfig{})

	for _, e := range []*Event{
		NewEvent("alice", "tag", OpCreate).WithResult(nil),
		NewEvent("bob", "tag", OpDelete).WithResult(nil),
		NewEvent("alice", "switch-config", OpUpdate).WithResult(errors.New("failed")),
	} {
		if err := logger.Log(e); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"by user", Filter{User: "alice"}, 2},
		{"by obj-type", Filter{ObjType: "tag"}, 2},
		{"by operation", Filter{Operation: OpDelete}, 1},
		{"success only", Filter{SuccessOnly: true}, 2},
		{"failure only", Filter{FailureOnly: true}, 1},
		{"limit", Filter{Limit: 2}, 2},
		{"offset", Filter{Offset: 1}, 2},
		{"offset beyond", Filter{Offset: 10}, 0},
		{"end time in past", Filter{EndTime: time.Now().Add(-time.Hour)}, 0},
		{"start time in past", Filter{StartTime: time.Now().Add(-time.Hour)}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := logger.Query(tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestFileLogger_QueryMalformedJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	content := `{"user":"alice","obj_type":"tag","operation":"create","success":true}
invalid json line
{"user":"bob","obj_type":"tag","operation":"delete","success":true}
`
	if err := os.WriteFile(logPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test data: %v", err)
	}
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 valid events, got %d", len(results))
	}
}

func TestFileLogger_RotationWithCleanup(t *testing.T) {
	logger, logPath := newFileLogger(t, RotationConfig{MaxSize: 50, MaxBackups: 2})

	for i := 0; i < 10; i++ {
		if err := logger.Log(NewEvent("alice", "tag", OpCreate)); err != nil {
			t.Fatalf("Log failed on iteration %d: %v", i, err)
		}
	}

	matches, err := filepath.Glob(logPath + ".*")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(matches) == 0 {
		t.Error("Expected rotation to create backup files")
	}
	if len(matches) > 2 {
		t.Errorf("Expected at most 2 backup files, got %d", len(matches))
	}
}

func TestFileLogger_QuerySpansBackups(t *testing.T) {
	logger, logPath := newFileLogger(t, RotationConfig{MaxSize: 50, MaxBackups: 2})

	for i := 0; i < 10; i++ {
		if err := logger.Log(NewEvent(fmt.Sprintf("u%d", i), "tag", OpCreate)); err != nil {
			t.Fatal(err)
		}
	}

	// Each event outgrows MaxSize, so every file holds exactly one.
	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	var users []string
	for _, e := range events {
		users = append(users, e.User)
	}
	if diff := cmp.Diff([]string{"u7", "u8", "u9"}, users); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Errorf("%s.3 should have been removed", logPath)
	}
}

func TestFileLogger_ReopenKeepsSize(t *testing.T) {
	logger, logPath := newFileLogger(t, RotationConfig{MaxSize: 50, MaxBackups: 1})
	if err := logger.Log(NewEvent("alice", "tag", OpCreate)); err != nil {
		t.Fatal(err)
	}
	logger.Close()

	if err := logger.Log(NewEvent("alice", "tag", OpCreate)); err == nil {
		t.Error("Log after Close should fail")
	}

	reopened, err := NewFileLogger(logPath, RotationConfig{MaxSize: 50, MaxBackups: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if err := reopened.Log(NewEvent("bob", "tag", OpCreate)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("reopened logger should rotate the existing file: %v", err)
	}
}

func TestFileLogger_NewFileLoggerOpenError(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	if err := os.Mkdir(logPath, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if _, err := NewFileLogger(logPath, RotationConfig{}); err == nil {
		t.Error("NewFileLogger should fail when log path is a directory")
	}
}

func TestMemoryLogger(t *testing.T) {
	var logger MemoryLogger
	logger.Log(NewEvent("alice", "tag", OpCreate).WithResult(nil))
	logger.Log(NewEvent("alice", "tag", OpDelete).WithResult(errors.New("x")))

	events, _ := logger.Query(Filter{Operation: OpDelete})
	if len(events) != 1 || events[0].Error != "x" {
		t.Errorf("events = %+v", events)
	}
}
