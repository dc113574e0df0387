package ui

import (
	"testing"

	"github.com/kennyg/folio/internal/artifact"
)

func TestKindBadge_PlainText(t *testing.T) {
	orig := IsTTY
	IsTTY = false
	defer func() { IsTTY = orig }()

	tests := []struct {
		kind artifact.Kind
		want string
	}{
		{artifact.KindAgent, "[AGENT]"},
		{artifact.KindPrompt, "[PROMPT]"},
		{artifact.KindInstruction, "[INSTR]"},
		{artifact.KindChatMode, "[MODE]"},
		{artifact.KindSkill, "[SKILL]"},
		{artifact.Kind("other"), "[OTHER]"},
	}
	for _, tt := range tests {
		if got := KindBadge(tt.kind); got != tt.want {
			t.Errorf("KindBadge(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
