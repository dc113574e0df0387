package artifact

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind represents the category of a template artifact
type Kind string

const (
	KindAgent       Kind = "agents"
	KindPrompt      Kind = "prompts"
	KindInstruction Kind = "instructions"
	KindChatMode    Kind = "chatmodes"
	KindSkill       Kind = "skills"
)

// ErrUnknownKind is returned when parsing a kind outside the closed set
var ErrUnknownKind = errors.New("unknown template kind")

// AllKinds returns every kind in display order
func AllKinds() []Kind {
	return []Kind{KindAgent, KindPrompt, KindInstruction, KindChatMode, KindSkill}
}

// ParseKind parses a kind name. Singular forms and "chat-modes" are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "agents", "agent":
		return KindAgent, nil
	case "prompts", "prompt":
		return KindPrompt, nil
	case "instructions", "instruction":
		return KindInstruction, nil
	case "chatmodes", "chatmode", "chat-modes", "chat-mode":
		return KindChatMode, nil
	case "skills", "skill":
		return KindSkill, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// IsDirectory reports whether artifacts of this kind are folders
func (k Kind) IsDirectory() bool {
	return k == KindSkill
}

// Identity is the (source, kind, name) triple that identifies an artifact
// across fetches, even when its content ref changes.
type Identity struct {
	Source string `json:"source"`
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
}

// String returns source/kind/name
func (id Identity) String() string {
	return id.Source + "/" + string(id.Kind) + "/" + id.Name
}

// ParseIdentity parses the source/kind/name form produced by String.
// The source name may itself contain slashes.
func ParseIdentity(s string) (Identity, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) < 3 {
		return Identity{}, fmt.Errorf("invalid template key %q (want source/kind/name)", s)
	}
	name := parts[len(parts)-1]
	kind, err := ParseKind(parts[len(parts)-2])
	if err != nil {
		return Identity{}, err
	}
	source := strings.Join(parts[:len(parts)-2], "/")
	if source == "" || name == "" {
		return Identity{}, fmt.Errorf("invalid template key %q (want source/kind/name)", s)
	}
	return Identity{Source: source, Kind: kind, Name: name}, nil
}

// Descriptor is a discovered, not yet downloaded, reference to one artifact
type Descriptor struct {
	Name           string `json:"name"`
	Kind           Kind   `json:"kind"`
	SourceName     string `json:"source_name"`
	SourceLocation string `json:"source_location"`

	// ContentRef is opaque to everything but the owning provider: a
	// download URL for remote sources, an absolute path for local ones.
	ContentRef string `json:"content_ref"`

	// Directory artifacts only
	IsDirectory        bool   `json:"is_directory,omitempty"`
	RelativeSourcePath string `json:"relative_source_path,omitempty"`
}

// Identity returns the descriptor's identity triple
func (d Descriptor) Identity() Identity {
	return Identity{Source: d.SourceName, Kind: d.Kind, Name: d.Name}
}

// Key returns the source/kind/name form of the identity
func (d Descriptor) Key() string {
	return d.Identity().String()
}

// TargetName is the entry name under the kind's install directory
func (d Descriptor) TargetName() string {
	return d.Name
}

// DisplayName strips the markdown extension for presentation
func (d Descriptor) DisplayName() string {
	if d.IsDirectory {
		return d.Name
	}
	return strings.TrimSuffix(d.Name, ".md")
}

// InstalledRecord is a ledger entry
type InstalledRecord struct {
	Source      string    `json:"source"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	ContentRef  string    `json:"content_ref"`
	InstalledAt time.Time `json:"installed_at"`
}

// Identity returns the record's identity triple
func (r InstalledRecord) Identity() Identity {
	return Identity{Source: r.Source, Kind: r.Kind, Name: r.Name}
}

// Descriptor rebuilds enough of a descriptor to locate the installed
// artifact without consulting the catalog
func (r InstalledRecord) Descriptor() Descriptor {
	return Descriptor{
		Name:        r.Name,
		Kind:        r.Kind,
		SourceName:  r.Source,
		ContentRef:  r.ContentRef,
		IsDirectory: r.Kind.IsDirectory(),
	}
}

// NewInstalledRecord builds a ledger entry for a descriptor
func NewInstalledRecord(d Descriptor, at time.Time) InstalledRecord {
	return InstalledRecord{
		Source:      d.SourceName,
		Kind:        d.Kind,
		Name:        d.Name,
		ContentRef:  d.ContentRef,
		InstalledAt: at,
	}
}

// Profile is a named snapshot of ledger entries
type Profile struct {
	Name      string            `json:"name"`
	Templates []InstalledRecord `json:"templates"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Identities returns the set of identities in the profile
func (p Profile) Identities() map[Identity]bool {
	set := make(map[Identity]bool, len(p.Templates))
	for _, r := range p.Templates {
		set[r.Identity()] = true
	}
	return set
}
