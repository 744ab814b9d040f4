package util

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

// saveLoggerState saves the current logger state for restoration
func saveLoggerState() (io.Writer, logrus.Level, logrus.Formatter) {
	return Logger.Out, Logger.Level, Logger.Formatter
}

// restoreLoggerState restores the logger to its previous state
func restoreLoggerState(out io.Writer, level logrus.Level, formatter logrus.Formatter) {
	Logger.SetOutput(out)
	Logger.SetLevel(level)
	Logger.SetFormatter(formatter)
}

func TestSetLogLevel(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"warning", false},
		{"error", false},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := SetLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestDefaultLevelSuppressesInfo(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	Logger.SetLevel(logrus.WarnLevel)

	Infof("cache hit %s", "model/tag/")
	if buf.Len() != 0 {
		t.Errorf("info message should be suppressed at warn level, got %q", buf.String())
	}

	Warnf("two rows for %s", "forwarding-config")
	if !strings.Contains(buf.String(), "two rows for forwarding-config") {
		t.Errorf("warning not written: %q", buf.String())
	}
}

func TestSetJSONFormat(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetJSONFormat()
	Logger.SetLevel(logrus.DebugLevel)

	WithCommand("snmp-server").WithField("obj_type", "snmp-server-config").Debug("dispatch")

	got := buf.String()
	if !strings.Contains(got, `"command":"snmp-server"`) {
		t.Errorf("JSON output missing command field: %s", got)
	}
	if !strings.Contains(got, `"obj_type":"snmp-server-config"`) {
		t.Errorf("JSON output missing obj_type field: %s", got)
	}
}

func TestWithObjType(t *testing.T) {
	entry := WithObjType("tag")
	if entry == nil {
		t.Fatal("WithObjType should return non-nil entry")
	}
	if entry.Data["obj_type"] != "tag" {
		t.Errorf("obj_type = %v, want tag", entry.Data["obj_type"])
	}
}

func TestDomainFields(t *testing.T) {
	tests := []struct {
		name  string
		entry *logrus.Entry
		want  logrus.Fields
	}{
		{"mode", WithMode("config-switch"), logrus.Fields{"mode": "config-switch"}},
		{"invocation", WithInvocation("alias", "config-switch", "alice"),
			logrus.Fields{"command": "alias", "mode": "config-switch", "user": "alice"}},
		{"entry", WithEntry("snmp"), logrus.Fields{"entry": "snmp"}},
		{"backend", WithBackend("redis", "localhost:6379"), logrus.Fields{"backend": "redis", "addr": "localhost:6379"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.entry.Data); diff != "" {
				t.Errorf("fields (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSetLogFormat(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	Logger.SetLevel(logrus.DebugLevel)

	if err := SetLogFormat("json"); err != nil {
		t.Fatal(err)
	}
	WithMode("config").Debug("entered")
	if !strings.Contains(buf.String(), `"mode":"config"`) {
		t.Errorf("json line = %q", buf.String())
	}

	buf.Reset()
	if err := SetLogFormat("text"); err != nil {
		t.Fatal(err)
	}
	WithMode("config").Debug("entered")
	if !strings.Contains(buf.String(), "mode=config") {
		t.Errorf("text line = %q", buf.String())
	}

	if err := SetLogFormat("xml"); err == nil {
		t.Error("unknown format should be rejected")
	}
}
