package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseRepository(t *testing.T) {
	tests := []struct {
		name     string
		location string
		branch   string
		want     Repository
		wantErr  bool
	}{
		{
			name:     "simple owner/repo",
			location: "github/awesome-copilot",
			want:     Repository{Host: "github.com", Owner: "github", Repo: "awesome-copilot", Ref: "main"},
		},
		{
			name:     "owner/repo with ref",
			location: "anthropics/skills@v2",
			want:     Repository{Host: "github.com", Owner: "anthropics", Repo: "skills", Ref: "v2"},
		},
		{
			name:     "branch overrides ref",
			location: "anthropics/skills@v2",
			branch:   "develop",
			want:     Repository{Host: "github.com", Owner: "anthropics", Repo: "skills", Ref: "develop"},
		},
		{
			name:     "repo with dots in name",
			location: "kennyg/my.repo.name",
			want:     Repository{Host: "github.com", Owner: "kennyg", Repo: "my.repo.name", Ref: "main"},
		},
		{
			name:     "github.com URL",
			location: "https://github.com/github/awesome-copilot",
			want:     Repository{Host: "github.com", Owner: "github", Repo: "awesome-copilot", Ref: "main"},
		},
		{
			name:     "github.com URL with .git",
			location: "https://github.com/github/awesome-copilot.git",
			want:     Repository{Host: "github.com", Owner: "github", Repo: "awesome-copilot", Ref: "main"},
		},
		{
			name:     "tree URL",
			location: "https://github.com/team/templates/tree/release",
			want:     Repository{Host: "github.com", Owner: "team", Repo: "templates", Ref: "release"},
		},
		{
			name:     "enterprise URL",
			location: "https://ghe.example.com/platform/templates",
			want:     Repository{Host: "ghe.example.com", Owner: "platform", Repo: "templates", Ref: "main"},
		},
		{
			name:     "empty",
			location: "  ",
			wantErr:  true,
		},
		{
			name:     "URL without repo",
			location: "https://github.com/onlyowner",
			wantErr:  true,
		},
		{
			name:     "garbage",
			location: "not a repo",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepository(tt.location, tt.branch)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRepository() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Host != tt.want.Host {
				t.Errorf("Host = %v, want %v", got.Host, tt.want.Host)
			}
			if got.Owner != tt.want.Owner {
				t.Errorf("Owner = %v, want %v", got.Owner, tt.want.Owner)
			}
			if got.Repo != tt.want.Repo {
				t.Errorf("Repo = %v, want %v", got.Repo, tt.want.Repo)
			}
			if got.Ref != tt.want.Ref {
				t.Errorf("Ref = %v, want %v", got.Ref, tt.want.Ref)
			}
		})
	}
}

func TestRepository_String(t *testing.T) {
	tests := []struct {
		repo Repository
		want string
	}{
		{Repository{Host: "github.com", Owner: "a", Repo: "b", Ref: "main"}, "a/b"},
		{Repository{Host: "github.com", Owner: "a", Repo: "b", Ref: "dev"}, "a/b@dev"},
		{Repository{Host: "ghe.corp", Owner: "a", Repo: "b", Ref: "main"}, "ghe.corp/a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.repo.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsLocalLocation(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"./templates", true},
		{"/opt/templates", true},
		{"~/templates", true},
		{"C:\\templates", true},
		{"owner/repo", false},
		{"https://github.com/a/b", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsLocalLocation(tt.input); got != tt.want {
				t.Errorf("IsLocalLocation(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveLocal(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	ws := t.TempDir()

	tests := []struct {
		name     string
		location string
		want     string
	}{
		{"home", "~/templates", filepath.Join(home, "templates")},
		{"absolute", "/opt/templates", "/opt/templates"},
		{"workspace relative", "./shared", filepath.Join(ws, "shared")},
		{"bare relative", "shared/more", filepath.Join(ws, "shared", "more")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveLocal(tt.location, ws)
			if err != nil {
				t.Fatalf("ResolveLocal() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveLocal(%q) = %v, want %v", tt.location, got, tt.want)
			}
		})
	}

	if _, err := ResolveLocal("", ws); err == nil {
		t.Error("expected error for empty location")
	}
}
