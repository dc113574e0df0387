package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"github.com/kennyg/folio/internal/artifact"
)

// IsTTY reports whether stdout is a terminal. Without one every helper
// falls back to plain text.
var IsTTY = term.IsTerminal(os.Stdout.Fd())

// ═══════════════════════════════════════════════════════════════════════════════
// COLOR PALETTE
// ═══════════════════════════════════════════════════════════════════════════════

var (
	Gold    = lipgloss.Color("#F4D03F")
	Amber   = lipgloss.Color("#E59866")
	Copper  = lipgloss.Color("#DC7633")
	Purple  = lipgloss.Color("#9B59B6")
	Blue    = lipgloss.Color("#5DADE2")
	Cyan    = lipgloss.Color("#76D7C4")
	Green   = lipgloss.Color("#58D68D")
	Emerald = lipgloss.Color("#27AE60")
	Pink    = lipgloss.Color("#FF6B9D")
	Magenta = lipgloss.Color("#E91E8C")

	White    = lipgloss.Color("#FDFEFE")
	Gray     = lipgloss.Color("#AAB7B8")
	DarkGray = lipgloss.Color("#5D6D7E")
	Black    = lipgloss.Color("#1C2833")
)

// ═══════════════════════════════════════════════════════════════════════════════
// TEXT STYLES
// ═══════════════════════════════════════════════════════════════════════════════

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Gold)

	Subtitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber)

	Success = lipgloss.NewStyle().
		Foreground(Green)

	Error = lipgloss.NewStyle().
		Foreground(Pink).
		Bold(true)

	Warning = lipgloss.NewStyle().
		Foreground(Copper)

	Info = lipgloss.NewStyle().
		Foreground(Blue)

	Muted = lipgloss.NewStyle().
		Foreground(Gray)

	Dim = lipgloss.NewStyle().
		Foreground(DarkGray)

	Highlight = lipgloss.NewStyle().
		Foreground(Gold).
		Bold(true)

	Code = lipgloss.NewStyle().
		Foreground(Magenta)
)

// ═══════════════════════════════════════════════════════════════════════════════
// BADGES
// ═══════════════════════════════════════════════════════════════════════════════

var baseBadge = lipgloss.NewStyle().
	Padding(0, 1).
	Bold(true)

type badgeStyle struct {
	label string
	icon  string
	bg    lipgloss.Color
	fg    lipgloss.Color
}

var kindBadges = map[artifact.Kind]badgeStyle{
	artifact.KindAgent:       {"AGENT", "◈", Magenta, White},
	artifact.KindPrompt:      {"PROMPT", "✎", Emerald, White},
	artifact.KindInstruction: {"INSTR", "§", Blue, White},
	artifact.KindChatMode:    {"MODE", "◐", Copper, White},
	artifact.KindSkill:       {"SKILL", "✦", Purple, White},
}

// KindBadge returns the badge for a template kind
func KindBadge(kind artifact.Kind) string {
	b, ok := kindBadges[kind]
	if !ok {
		b = badgeStyle{label: strings.ToUpper(string(kind)), icon: "·", bg: DarkGray, fg: White}
	}
	if !IsTTY {
		return "[" + b.label + "]"
	}
	return baseBadge.Background(b.bg).Foreground(b.fg).Render(b.icon + " " + b.label)
}

// StatusInstalled marks a catalog entry already present in the workspace
func StatusInstalled() string {
	if !IsTTY {
		return "[installed]"
	}
	return lipgloss.NewStyle().Foreground(Green).Render("● installed")
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGO
// ═══════════════════════════════════════════════════════════════════════════════

// Logo returns the folio banner
func Logo() string {
	if !IsTTY {
		return "\n  FOLIO - Templates for your workspace\n"
	}
	leaf := lipgloss.NewStyle().Foreground(Amber).Render("❧")
	name := lipgloss.NewStyle().Foreground(Gold).Bold(true).Render("FOLIO")
	tag := lipgloss.NewStyle().Foreground(Gray).Render("templates for your workspace")
	return fmt.Sprintf("\n  %s %s  %s\n", leaf, name, tag)
}

// ═══════════════════════════════════════════════════════════════════════════════
// DECORATIVE ELEMENTS
// ═══════════════════════════════════════════════════════════════════════════════

// Divider returns a horizontal divider
func Divider(width int) string {
	if !IsTTY {
		return strings.Repeat("-", width)
	}
	return lipgloss.NewStyle().
		Foreground(DarkGray).
		Render(strings.Repeat("─", width))
}

// SectionHeader creates a decorated section header
func SectionHeader(title string) string {
	if !IsTTY {
		return fmt.Sprintf("=== %s ===", title)
	}

	width := min(TerminalWidth(), defaultWidth)

	titleLen := lipgloss.Width(title)
	padLeft := (width - titleLen - 6) / 2
	padRight := width - titleLen - 6 - padLeft
	if padLeft < 1 {
		padLeft, padRight = 1, 1
	}

	left := lipgloss.NewStyle().Foreground(DarkGray).Render(strings.Repeat("─", padLeft) + "┤ ")
	right := lipgloss.NewStyle().Foreground(DarkGray).Render(" ├" + strings.Repeat("─", padRight))
	return left + Highlight.Render(title) + right
}

// TemplateLine renders one catalog entry: badge, name and its key
func TemplateLine(kind artifact.Kind, name, key string) string {
	return fmt.Sprintf("  %s %s  %s", KindBadge(kind), RenderHighlight(name), RenderDim(key))
}

// ═══════════════════════════════════════════════════════════════════════════════
// STATUS LINES
// ═══════════════════════════════════════════════════════════════════════════════

// lineStyle is the decoration of one kind of status line
type lineStyle struct {
	icon  string
	plain string
	color lipgloss.Color
}

var (
	successLine = lineStyle{icon: "✓", plain: "OK: ", color: Green}
	errorLine   = lineStyle{icon: "✗", plain: "ERROR: ", color: Pink}
	warningLine = lineStyle{icon: "!", plain: "WARN: ", color: Copper}
	infoLine    = lineStyle{icon: "→", color: Blue}
)

func (ls lineStyle) render(message string) string {
	if !IsTTY {
		return "  " + ls.plain + message
	}
	style := lipgloss.NewStyle().Foreground(ls.color)
	return "  " + style.Render(ls.icon) + " " + style.Render(message)
}

// SuccessLine creates a success status line
func SuccessLine(message string) string { return successLine.render(message) }

// ErrorLine creates an error status line
func ErrorLine(message string) string { return errorLine.render(message) }

// WarningLine creates a warning status line
func WarningLine(message string) string { return warningLine.render(message) }

// InfoLine creates an info status line
func InfoLine(message string) string { return infoLine.render(message) }

// ═══════════════════════════════════════════════════════════════════════════════
// EMPTY STATES
// ═══════════════════════════════════════════════════════════════════════════════

// EmptyState returns a short message with a follow-up hint
func EmptyState(message, hint string) string {
	if !IsTTY {
		return fmt.Sprintf("\n  %s\n  %s\n", message, hint)
	}
	return fmt.Sprintf("\n  %s\n  %s\n", Muted.Render(message), lipgloss.NewStyle().Foreground(Cyan).Render(hint))
}

// NoResults returns the no-match message for a search
func NoResults(query string) string {
	return EmptyState(fmt.Sprintf("No templates match %q", query), "Try a shorter query or run `folio catalog`")
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

// Truncate shortens text to limit runes, ending in an ellipsis
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// Render applies a lipgloss style to text, returning plain text in non-TTY environments.
func Render(style lipgloss.Style, text string) string {
	if !IsTTY {
		return text
	}
	return style.Render(text)
}

// TTY-aware shorthands for the common styles
func RenderMuted(text string) string     { return Render(Muted, text) }
func RenderDim(text string) string       { return Render(Dim, text) }
func RenderHighlight(text string) string { return Render(Highlight, text) }
func RenderCode(text string) string      { return Render(Code, text) }

const defaultWidth = 80

// TerminalWidth returns the stdout width, or 80 when it cannot be read
func TerminalWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}

// DescriptionWidth leaves room for the indent in front of descriptions
func DescriptionWidth() int {
	return max(TerminalWidth()-8, 40)
}
