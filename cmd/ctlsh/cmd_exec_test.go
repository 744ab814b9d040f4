package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/ctlsh/pkg/command"
	"github.com/newtron-network/ctlsh/pkg/desc"
	"github.com/newtron-network/ctlsh/pkg/settings"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

func newTestEngine(t *testing.T) (*command.Engine, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	e, err := desc.NewEngine(command.Options{
		Backend: store.NewMemoryBackend(),
		Out:     &out,
		Warner:  command.WarnerFunc(func(string) {}),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, &out
}

func TestRunLines(t *testing.T) {
	e, _ := newTestEngine(t)
	sess := command.NewSession("tester")

	err := runLines(context.Background(), e, sess, []string{
		"configure",
		"",
		"!",
		"forwarding access-priority 20",
	})
	if err != nil {
		t.Fatalf("runLines: %v", err)
	}
	if sess.Mode() != "config" {
		t.Errorf("mode = %q, want config", sess.Mode())
	}

	text, err := e.RenderRunningConfig(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "forwarding access-priority 20") {
		t.Errorf("running-config missing forwarding line:\n%s", text)
	}
}

func TestRunLines_StopsAtFirstError(t *testing.T) {
	e, _ := newTestEngine(t)
	sess := command.NewSession("tester")

	err := runLines(context.Background(), e, sess, []string{
		"configure",
		"forwarding access-priority 999999",
		"forwarding core-priority 3",
	})
	if err == nil {
		t.Fatal("runLines should fail on the out-of-range value")
	}
	if !errors.Is(err, util.ErrRange) {
		t.Errorf("error %v should wrap ErrRange", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q should name the failing line", err)
	}

	text, err := e.RenderRunningConfig(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(text, "core-priority") {
		t.Errorf("lines after the failure ran:\n%s", text)
	}
}

func TestRunLines_ExitAtLogin(t *testing.T) {
	e, out := newTestEngine(t)
	sess := command.NewSession("tester")

	err := runLines(context.Background(), e, sess, []string{"exit", "show version"})
	if err != nil {
		t.Fatalf("runLines: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("nothing should run after exit, got %q", out.String())
	}
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.cfg")
	data := "!\nforwarding access-priority 1\nswitch 00:00:00:00:00:00:00:01\n  alias core\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := readLines(path)
	if err != nil {
		t.Fatalf("readLines: %v", err)
	}
	want := []string{"!", "forwarding access-priority 1", "switch 00:00:00:00:00:00:00:01", "  alias core"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("readLines mismatch (-want +got):\n%s", diff)
	}

	if _, err := readLines(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("readLines on a missing file should fail")
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, util.NewSemanticError("no such switch"))
	if got := buf.String(); !strings.Contains(got, "Error: ") || !strings.Contains(got, "Invalid Use: no such switch") {
		t.Errorf("printError wrote %q", got)
	}
}

func TestOpenBackend_ClosesWhatItOpens(t *testing.T) {
	savedKind, savedController, savedRecord, savedSettings := backendKind, controller, recordFile, userSettings
	t.Cleanup(func() {
		backendKind, controller, recordFile, userSettings = savedKind, savedController, savedRecord, savedSettings
	})
	userSettings = &settings.Settings{}
	controller = "127.0.0.1:1"

	tests := []struct {
		kind        string
		record      bool
		wantClosers int
	}{
		{settings.BackendREST, false, 1},
		{settings.BackendREST, true, 2},
		{settings.BackendMemory, false, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s record=%v", tt.kind, tt.record), func(t *testing.T) {
			backendKind = tt.kind
			recordFile = ""
			if tt.record {
				recordFile = filepath.Join(t.TempDir(), "requests.log")
			}
			a := &app{}
			b, err := openBackend(context.Background(), a)
			if err != nil {
				t.Fatalf("openBackend: %v", err)
			}
			defer a.Close()

			if len(a.closers) != tt.wantClosers {
				t.Fatalf("%d closers, want %d", len(a.closers), tt.wantClosers)
			}
			if rb, ok := b.(*store.RESTBackend); ok {
				if a.closers[len(a.closers)-1] != io.Closer(rb) {
					t.Error("REST backend is not closed with the app")
				}
			}
		})
	}

	backendKind = "carrier-pigeon"
	if _, err := openBackend(context.Background(), &app{}); err == nil {
		t.Error("unknown backend kind should be rejected")
	}
}
