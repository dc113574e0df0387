package config

import "github.com/kennyg/folio/internal/artifact"

// KindLayout describes where a kind lives inside a source and a workspace
type KindLayout struct {
	Kind        artifact.Kind
	DisplayName string
	// SourcePath is the folder scanned in a source when its config names none
	SourcePath string
	// InstallDir is the folder under .github the kind is installed into
	InstallDir string
}

// KnownLayouts returns the layout of every kind
func KnownLayouts() []KindLayout {
	return []KindLayout{
		{Kind: artifact.KindAgent, DisplayName: "Agents", SourcePath: "agents", InstallDir: "agents"},
		{Kind: artifact.KindPrompt, DisplayName: "Prompts", SourcePath: "prompts", InstallDir: "prompts"},
		{Kind: artifact.KindInstruction, DisplayName: "Instructions", SourcePath: "instructions", InstallDir: "instructions"},
		{Kind: artifact.KindChatMode, DisplayName: "Chat Modes", SourcePath: "chatmodes", InstallDir: "chatmodes"},
		{Kind: artifact.KindSkill, DisplayName: "Skills", SourcePath: "skills", InstallDir: "skills"},
	}
}

// GetLayout returns the layout for a kind
func GetLayout(kind artifact.Kind) *KindLayout {
	for _, l := range KnownLayouts() {
		if l.Kind == kind {
			return &l
		}
	}
	return nil
}

// KindDir returns the install directory name of a kind
func KindDir(kind artifact.Kind) string {
	if l := GetLayout(kind); l != nil {
		return l.InstallDir
	}
	return string(kind)
}

// DefaultPaths returns the source path of every kind
func DefaultPaths() map[artifact.Kind]string {
	paths := make(map[artifact.Kind]string)
	for _, l := range KnownLayouts() {
		paths[l.Kind] = l.SourcePath
	}
	return paths
}
