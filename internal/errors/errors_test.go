package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(SnapshotMissing, "no snapshot saved", cause)

	if err.Code != SnapshotMissing {
		t.Errorf("Code = %v, want %v", err.Code, SnapshotMissing)
	}
	if err.Message != "no snapshot saved" {
		t.Errorf("Message = %q, want %q", err.Message, "no snapshot saved")
	}
	if len(err.SuggestedFixes) != 1 {
		t.Errorf("len(SuggestedFixes) = %d, want 1", len(err.SuggestedFixes))
	}
}

func TestWalkerError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      FileUnreadable,
			message:   "cannot read a.js",
			cause:     errors.New("permission denied"),
			wantParts: []string{"FILE_UNREADABLE", "cannot read a.js", "permission denied"},
		},
		{
			name:      "without cause",
			code:      StrategyUnknown,
			message:   `no finder registered as "ast"`,
			wantParts: []string{"STRATEGY_UNKNOWN", `"ast"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.message, tt.cause).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestWalkerError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(InternalError, "something went wrong", cause)
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if Newf(OptionMissing, "x").Unwrap() != nil {
		t.Error("Unwrap() on error without cause should return nil")
	}
}

func TestHasCode(t *testing.T) {
	base := Newf(OptionMissing, "a pattern must be specified")
	wrapped := fmt.Errorf("finder 0 for .js: %w", base)

	if !HasCode(wrapped, OptionMissing) {
		t.Error("HasCode should see through fmt.Errorf wrapping")
	}
	if HasCode(wrapped, StrategyUnknown) {
		t.Error("HasCode matched the wrong code")
	}
	if !errors.Is(wrapped, &WalkerError{Code: OptionMissing}) {
		t.Error("errors.Is should match by code")
	}
	if HasCode(errors.New("plain"), OptionMissing) {
		t.Error("plain errors carry no code")
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	if fixes := GetSuggestedFixes(SnapshotMissing); len(fixes) == 0 || fixes[0].Command != "walker scan --save" {
		t.Errorf("unexpected fixes for SnapshotMissing: %+v", fixes)
	}
	if fixes := GetSuggestedFixes(InternalError); fixes != nil {
		t.Errorf("expected no fixes for InternalError, got %+v", fixes)
	}
}
