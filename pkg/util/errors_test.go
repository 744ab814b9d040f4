package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCommandError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"syntax has no prefix", NewSyntaxError("Unexpected end of command"), "Unexpected end of command"},
		{"range", NewRangeError("value %d outside (%d-%d)", 32768, 0, 32767), "Value outside length/range: value 32768 outside (0-32767)"},
		{"argument", NewArgumentValidationError("not an integer"), "Invalid argument: not an integer"},
		{"semantic", NewSemanticError("submode disabled for %s", "tag"), "Invalid Use: submode disabled for tag"},
		{"missing with suggestion", NewMissingError("snmp-sever", "snmp-server"), "No such command: snmp-sever (did you mean: snmp-server?)"},
		{"ambiguous", NewAmbiguousError("s", []string{"show", "switch"}), "Ambiguous command: s (matches show, switch)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{NewArgumentValidationError("x"), ErrArgumentValidation},
		{NewRangeError("x"), ErrRange},
		{NewSyntaxError("x"), ErrSyntax},
		{NewDescriptionError("x"), ErrDescription},
		{NewCompletionError("x"), ErrCompletion},
		{NewAmbiguousError("x", nil), ErrAmbiguous},
		{NewMissingError("x"), ErrMissing},
		{NewInvocationError("x"), ErrInvocation},
		{NewSemanticError("x"), ErrSemantic},
		{NewInternalError("x"), ErrInternal},
		{NewRestError("", "", "x"), ErrRest},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.sentinel) {
			t.Errorf("%v should unwrap to %v", tt.err, tt.sentinel)
		}
		wrapped := fmt.Errorf("running command: %w", tt.err)
		if !errors.Is(wrapped, tt.sentinel) {
			t.Errorf("wrapped %v should unwrap to %v", tt.err, tt.sentinel)
		}
	}
}

func TestNewRestError(t *testing.T) {
	err := NewRestError("ValidationError", "invalid field", "PUT model/tag/ failed")
	want := "REST: Error: REST API; type = ValidationError; invalid field: PUT model/tag/ failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.ErrorType != "ValidationError" || err.Description != "invalid field" {
		t.Errorf("upstream details lost: %+v", err)
	}
}

func TestExpectedTokens(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewArgumentValidationError("bad enum", "forwarding", "snmp"))
	if diff := cmp.Diff([]string{"forwarding", "snmp"}, ExpectedTokens(err)); diff != "" {
		t.Errorf("ExpectedTokens mismatch (-want +got):\n%s", diff)
	}
	if ExpectedTokens(errors.New("plain")) != nil {
		t.Error("plain error should carry no tokens")
	}
}

func TestIsUserError(t *testing.T) {
	if !IsUserError(NewSyntaxError("x")) {
		t.Error("syntax error is a user error")
	}
	if IsUserError(NewInternalError("x")) {
		t.Error("internal error is not a user error")
	}
	if IsUserError(NewRestError("", "", "x")) {
		t.Error("REST error is not a user error")
	}
	if IsUserError(errors.New("x")) {
		t.Error("plain error is not a user error")
	}
}

func TestValidationBuilder(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		var vb ValidationBuilder
		vb.Add(true, "never")
		if vb.HasErrors() || vb.Build() != nil {
			t.Error("expected no errors")
		}
	})

	t.Run("single error", func(t *testing.T) {
		var vb ValidationBuilder
		vb.AddErrorf("command %q: unknown action %q", "snmp-server", "bogus")
		err := vb.Build()
		if !errors.Is(err, ErrDescription) {
			t.Fatalf("expected description error, got %v", err)
		}
		if !strings.Contains(err.Error(), `unknown action "bogus"`) {
			t.Errorf("message lost: %v", err)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		var vb ValidationBuilder
		vb.Add(false, "first").Add(false, "second")
		err := vb.Build()
		if !strings.Contains(err.Error(), "2 problems") || !strings.Contains(err.Error(), "second") {
			t.Errorf("unexpected message: %v", err)
		}
	})
}
