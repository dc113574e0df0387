package ghclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/repos/acme/templates/contents/agents", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ref") != "main" {
			t.Errorf("ref = %q, want main", r.URL.Query().Get("ref"))
		}
		fmt.Fprintf(w, `[
			{"name":"reviewer.agent.md","path":"agents/reviewer.agent.md","type":"file","download_url":"%s/raw/reviewer"},
			{"name":"nested","path":"agents/nested","type":"dir"}
		]`, "http://"+r.Host)
	})
	mux.HandleFunc("/repos/acme/templates/contents/skills/pdf/SKILL.md", func(w http.ResponseWriter, r *http.Request) {
		enc := base64.StdEncoding.EncodeToString([]byte("---\nname: pdf\n---\n"))
		fmt.Fprintf(w, `{"type":"file","encoding":"base64","name":"SKILL.md","path":"skills/pdf/SKILL.md","content":"%s"}`, enc)
	})
	mux.HandleFunc("/raw/reviewer", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "# Reviewer")
	})
	mux.HandleFunc("/repos/acme/templates", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"templates","full_name":"acme/templates"}`)
	})
	mux.HandleFunc("/users/acme", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login":"acme"}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewWithOptions(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	return srv, c
}

func TestListContents(t *testing.T) {
	_, c := newTestServer(t)

	entries, err := c.ListContents(context.Background(), "acme", "templates", "agents", "main")
	if err != nil {
		t.Fatalf("ListContents() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Name != "reviewer.agent.md" || entries[0].IsDir() {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if !entries[1].IsDir() {
		t.Errorf("entries[1] should be a dir: %+v", entries[1])
	}

	data, err := c.Download(context.Background(), entries[0].DownloadURL)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(data) != "# Reviewer" {
		t.Errorf("Download() = %q", data)
	}
}

func TestListContents_NotFound(t *testing.T) {
	_, c := newTestServer(t)

	_, err := c.ListContents(context.Background(), "acme", "templates", "missing", "main")
	if err == nil {
		t.Fatal("expected error")
	}
	if StatusCode(err) != http.StatusNotFound {
		t.Errorf("StatusCode() = %d, want 404", StatusCode(err))
	}
}

func TestGetContents(t *testing.T) {
	_, c := newTestServer(t)

	data, err := c.GetContents(context.Background(), "acme", "templates", "skills/pdf/SKILL.md", "main")
	if err != nil {
		t.Fatalf("GetContents() error = %v", err)
	}
	if string(data) != "---\nname: pdf\n---\n" {
		t.Errorf("GetContents() = %q", data)
	}
}

func TestDownload_Status(t *testing.T) {
	srv, c := newTestServer(t)

	_, err := c.Download(context.Background(), srv.URL+"/raw/gone")
	if StatusCode(err) != http.StatusNotFound {
		t.Errorf("StatusCode() = %d, want 404 (err %v)", StatusCode(err), err)
	}
}

func TestExistenceProbes(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		probe func() (bool, error)
		want  bool
	}{
		{"repo visible", func() (bool, error) { return c.RepositoryExists(ctx, "acme", "templates") }, true},
		{"repo hidden", func() (bool, error) { return c.RepositoryExists(ctx, "acme", "private") }, false},
		{"owner exists", func() (bool, error) { return c.OwnerExists(ctx, "acme") }, true},
		{"owner missing", func() (bool, error) { return c.OwnerExists(ctx, "nobody") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.probe()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewForHost(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
	t.Setenv("GH_CONFIG_DIR", t.TempDir())

	tests := []struct {
		host     string
		wantHost string
		wantPath string
	}{
		{"github.com", "api.github.com", "/"},
		{"api.github.com", "api.github.com", "/"},
		{"", "api.github.com", "/"},
		{"github.company.com", "github.company.com", "/api/v3/"},
		{"ghe.example.org", "ghe.example.org", "/api/v3/"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			client := NewForHost(tt.host)
			if client.gh.BaseURL.Host != tt.wantHost {
				t.Errorf("BaseURL host = %s, want %s", client.gh.BaseURL.Host, tt.wantHost)
			}
			if client.gh.BaseURL.Path != tt.wantPath {
				t.Errorf("BaseURL path = %s, want %s", client.gh.BaseURL.Path, tt.wantPath)
			}
			if client.IsAuthenticated() {
				t.Error("expected unauthenticated client")
			}
		})
	}
}

func TestResolveCredentials(t *testing.T) {
	ghDir := t.TempDir()
	hosts := "github.com:\n  oauth_token: session-token\nghe.corp:\n  oauth_token: ghe-token\n"
	if err := os.WriteFile(filepath.Join(ghDir, "hosts.yml"), []byte(hosts), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		githubToken string
		ghToken     string
		configDir   string
		host        string
		want        Credentials
	}{
		{"GITHUB_TOKEN first", "a", "b", ghDir, "github.com", Credentials{Token: "a", Tier: TierEnv}},
		{"GH_TOKEN second", "", "b", ghDir, "github.com", Credentials{Token: "b", Tier: TierEnv}},
		{"gh session", "", "", ghDir, "github.com", Credentials{Token: "session-token", Tier: TierSession}},
		{"gh session for enterprise", "", "", ghDir, "ghe.corp", Credentials{Token: "ghe-token", Tier: TierSession}},
		{"none", "", "", t.TempDir(), "github.com", Credentials{Tier: TierNone}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GITHUB_TOKEN", tt.githubToken)
			t.Setenv("GH_TOKEN", tt.ghToken)
			t.Setenv("GH_CONFIG_DIR", tt.configDir)

			if got := ResolveCredentials(tt.host); got != tt.want {
				t.Errorf("ResolveCredentials() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewWithOptions_Token(t *testing.T) {
	c, err := NewWithOptions(Options{Token: "t", Tier: TierSession})
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsAuthenticated() || c.Tier() != TierSession {
		t.Errorf("authenticated=%v tier=%v", c.IsAuthenticated(), c.Tier())
	}
}
