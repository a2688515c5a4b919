package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeTransfer, cause, "failed to fetch")

	if err.Code != ErrCodeTransfer {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeTransfer)
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{"matching code", New(ErrCodeInvalidInput, "test"), ErrCodeInvalidInput, true},
		{"non-matching code", New(ErrCodeInvalidInput, "test"), ErrCodeTransfer, false},
		{"outer of wrapped", Wrap(ErrCodeDeploy, New(ErrCodeInvalidInput, "inner"), "outer"), ErrCodeDeploy, true},
		{"inner of wrapped", Wrap(ErrCodeDeploy, New(ErrCodeInvalidInput, "inner"), "outer"), ErrCodeInvalidInput, true},
		{"typed error", &RelocationCycleError{Coordinate: "g:a:1"}, ErrCodeRelocationCycle, true},
		{"typed inside fmt wrap", fmt.Errorf("ctx: %w", &DescriptorMissingError{Coordinate: "g:a:1"}), ErrCodeDescriptorMissing, true},
		{"typed inside plugin error", &PluginResolutionError{Plugin: "p", Cause: &DescriptorInvalidError{}}, ErrCodeDescriptorInvalid, true},
		{"non-Error type", errors.New("plain error"), ErrCodeInvalidInput, false},
		{"nil error", nil, ErrCodeInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{"Error type", New(ErrCodeInvalidCoordinate, "test"), ErrCodeInvalidCoordinate},
		{"typed error", &UnboundedRangeError{Range: "[1,)"}, ErrCodeUnboundedRange},
		{"outermost wins", &PluginResolutionError{Cause: &TransferError{}}, ErrCodePluginResolution},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeInvalidInput, "friendly message")); got != "friendly message" {
		t.Errorf("UserMessage() = %v, want %v", got, "friendly message")
	}
	if got := UserMessage(errors.New("plain error")); got != "plain error" {
		t.Errorf("UserMessage() = %v, want %v", got, "plain error")
	}
}

func TestTypedErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "parse",
			err:  &VersionParseError{Input: "[1.0", Reason: "unbalanced range"},
			want: []string{`"[1.0"`, "unbalanced range"},
		},
		{
			name: "cycle lists chain",
			err:  &RelocationCycleError{Coordinate: "g:a:1", Chain: []string{"g:a:1", "g:b:1"}},
			want: []string{"g:a:1 -> g:b:1 -> g:a:1"},
		},
		{
			name: "missing carries path",
			err:  &DescriptorMissingError{Coordinate: "g:c:1", Path: []string{"g:p:1", "g:a:1", "g:c:1"}},
			want: []string{"g:c:1", "g:p:1 -> g:a:1 -> g:c:1"},
		},
		{
			name: "resolution lists repositories",
			err:  &VersionResolutionError{Coordinate: "g:a:[1,2)", Repositories: []string{"central", "local"}},
			want: []string{"central, local"},
		},
		{
			name: "cached not found",
			err:  &ArtifactNotFoundError{Coordinate: "g:a:jar:1", Repository: "central", Cached: true},
			want: []string{"in central", "cached"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, w := range tt.want {
				if !strings.Contains(msg, w) {
					t.Errorf("Error() = %q, want substring %q", msg, w)
				}
			}
		})
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	root := errors.New("connection reset")
	err := &PluginResolutionError{
		Plugin: "org.example:demo-plugin:1.0",
		Cause:  &TransferError{Coordinate: "g:a:jar:1", Cause: root},
	}
	if !errors.Is(err, root) {
		t.Error("errors.Is through plugin/transfer chain = false, want true")
	}
	var te *TransferError
	if !errors.As(err, &te) {
		t.Fatal("errors.As(*TransferError) = false, want true")
	}
	if te.Coordinate != "g:a:jar:1" {
		t.Errorf("Coordinate = %v, want %v", te.Coordinate, "g:a:jar:1")
	}
}
