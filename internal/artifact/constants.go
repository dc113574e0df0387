package artifact

// File and directory name constants used throughout folio.
const (
	// MetadataFilename is the side file describing a skill folder
	MetadataFilename = "SKILL.md"

	// MarkdownExt is the extension of single-file templates
	MarkdownExt = ".md"

	// InstallRootDir is the workspace directory templates are installed under
	InstallRootDir = ".github"

	// BackupInfix separates a directory name from its backup timestamp
	BackupInfix = ".backup-"
)
