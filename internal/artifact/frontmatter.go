package artifact

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Metadata is the YAML frontmatter of a SKILL.md file
type Metadata struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version,omitempty"`
	Author      string   `yaml:"author,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`

	// Body is the markdown following the frontmatter
	Body string `yaml:"-"`
}

// ParseFrontmatter extracts YAML frontmatter from markdown content.
// Content without a frontmatter block yields empty metadata and the full text as body.
func ParseFrontmatter(content []byte) (*Metadata, error) {
	text := string(content)
	md := &Metadata{Body: text}

	if !strings.HasPrefix(text, "---") {
		md.fillFromBody()
		return md, nil
	}

	rest := text[3:]
	idx := strings.Index(rest, "\n---")
	if idx == -1 {
		md.fillFromBody()
		return md, nil
	}

	if err := yaml.Unmarshal([]byte(rest[:idx]), md); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	md.Body = strings.TrimPrefix(rest[idx+4:], "\n")
	md.fillFromBody()

	return md, nil
}

// fillFromBody falls back to the first heading and paragraph
func (m *Metadata) fillFromBody() {
	for _, line := range strings.Split(m.Body, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "# "):
			if m.Name == "" {
				m.Name = strings.TrimPrefix(line, "# ")
			}
		case strings.HasPrefix(line, "#"),
			strings.HasPrefix(line, "- "),
			strings.HasPrefix(line, "* "),
			strings.HasPrefix(line, "> "),
			strings.HasPrefix(line, "```"),
			strings.HasPrefix(line, "---"):
			continue
		default:
			if m.Description == "" {
				m.Description = clip(line, maxDescription)
			}
		}
		if m.Name != "" && m.Description != "" {
			return
		}
	}
}

// maxDescription bounds a description taken from the body, in runes
const maxDescription = 200

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// IsTemplateFile reports whether a file name is a markdown template.
// Repository housekeeping files are excluded.
func IsTemplateFile(filename string) bool {
	base := strings.ToLower(path.Base(filename))
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch base {
	case "readme.md", "license.md", "changelog.md", "contributing.md":
		return false
	}
	return strings.HasSuffix(base, MarkdownExt)
}

// ValidateRelativePath checks that a path inside a directory artifact stays
// within the artifact root
func ValidateRelativePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") || (len(p) >= 2 && p[1] == ':') {
		return fmt.Errorf("absolute paths not allowed: %s", p)
	}
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return fmt.Errorf("path traversal not allowed: %s", p)
		}
	}
	return nil
}
