package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/config"
	"github.com/kennyg/folio/internal/ghclient"
)

type fakeEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url,omitempty"`
}

// fakeGitHub serves one repository's contents API from in-memory files
type fakeGitHub struct {
	t        *testing.T
	srv      *httptest.Server
	owner    string
	repo     string
	files    map[string]string // repo path -> content
	hidden   bool              // repository 404s
	noOwner  bool              // owner 404s too
	status   int               // forced status for listings
	rateHit  bool
	listHits int
}

func newFakeGitHub(t *testing.T, files map[string]string) *fakeGitHub {
	f := &fakeGitHub{t: t, owner: "acme", repo: "templates", files: files}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGitHub) client(authenticated bool) func(string) *ghclient.Client {
	return func(string) *ghclient.Client {
		opts := ghclient.Options{BaseURL: f.srv.URL}
		if authenticated {
			opts.Token = "test-token"
		}
		c, err := ghclient.NewWithOptions(opts)
		if err != nil {
			f.t.Fatal(err)
		}
		return c
	}
}

func (f *fakeGitHub) notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"message":"Not Found"}`))
}

func (f *fakeGitHub) serve(w http.ResponseWriter, r *http.Request) {
	repoPrefix := "/repos/" + f.owner + "/" + f.repo
	switch {
	case r.URL.Path == "/users/"+f.owner:
		if f.noOwner {
			f.notFound(w)
			return
		}
		w.Write([]byte(`{"login":"acme"}`))
	case r.URL.Path == repoPrefix:
		if f.hidden {
			f.notFound(w)
			return
		}
		w.Write([]byte(`{"full_name":"acme/templates"}`))
	case strings.HasPrefix(r.URL.Path, "/raw/"):
		content, ok := f.files[strings.TrimPrefix(r.URL.Path, "/raw/")]
		if !ok {
			f.notFound(w)
			return
		}
		w.Write([]byte(content))
	case strings.HasPrefix(r.URL.Path, repoPrefix+"/contents"):
		f.listHits++
		if f.rateHit {
			w.Header().Set("X-RateLimit-Limit", "60")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", "4102444800")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"API rate limit exceeded"}`))
			return
		}
		if f.status != 0 {
			w.WriteHeader(f.status)
			w.Write([]byte(`{"message":"denied"}`))
			return
		}
		if f.hidden {
			f.notFound(w)
			return
		}
		f.serveContents(w, strings.Trim(strings.TrimPrefix(r.URL.Path, repoPrefix+"/contents"), "/"))
	default:
		f.notFound(w)
	}
}

func (f *fakeGitHub) serveContents(w http.ResponseWriter, p string) {
	if content, ok := f.files[p]; ok {
		json.NewEncoder(w).Encode(map[string]string{
			"type":     "file",
			"name":     p[strings.LastIndex(p, "/")+1:],
			"path":     p,
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		})
		return
	}

	seen := make(map[string]bool)
	var entries []fakeEntry
	prefix := p + "/"
	for fp := range f.files {
		if !strings.HasPrefix(fp, prefix) {
			continue
		}
		rest := strings.TrimPrefix(fp, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			dir := rest[:i]
			if !seen[dir] {
				seen[dir] = true
				entries = append(entries, fakeEntry{Name: dir, Path: prefix + dir, Type: "dir"})
			}
			continue
		}
		entries = append(entries, fakeEntry{Name: rest, Path: fp, Type: "file", DownloadURL: f.srv.URL + "/raw/" + fp})
	}
	if len(entries) == 0 {
		f.notFound(w)
		return
	}
	json.NewEncoder(w).Encode(entries)
}

func remoteConfig() config.SourceConfig {
	return config.SourceConfig{
		Name:     "acme",
		Kind:     config.SourceRemote,
		Location: "acme/templates",
		Branch:   "main",
		Paths: map[artifact.Kind]string{
			artifact.KindAgent:  "agents",
			artifact.KindPrompt: "prompts",
			artifact.KindSkill:  "skills",
		},
		Enabled: true,
	}
}

var sampleRepo = map[string]string{
	"agents/reviewer.agent.md":   "# Reviewer",
	"agents/architect.agent.md":  "# Architect",
	"agents/README.md":           "readme",
	"skills/pdf/SKILL.md":        "---\nname: pdf\ndescription: PDFs\n---\n",
	"skills/pdf/scripts/fill.py": "print()",
	"skills/xlsx/SKILL.md":       "# xlsx",
}

func TestRemote_FetchAll(t *testing.T) {
	f := newFakeGitHub(t, sampleRepo)
	p, err := NewRemote(remoteConfig(), f.client(true), nil)
	if err != nil {
		t.Fatalf("NewRemote() error = %v", err)
	}

	ds, err := p.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	var keys []string
	for _, d := range ds {
		keys = append(keys, string(d.Kind)+"/"+d.Name)
	}
	want := []string{"agents/architect.agent.md", "agents/reviewer.agent.md", "skills/pdf", "skills/xlsx"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("FetchAll() = %v, want %v", keys, want)
	}
	for _, d := range ds {
		if d.SourceName != "acme" {
			t.Errorf("SourceName = %q", d.SourceName)
		}
		if d.Kind == artifact.KindSkill && (!d.IsDirectory || d.RelativeSourcePath != "skills/"+d.Name) {
			t.Errorf("skill descriptor = %+v", d)
		}
	}
}

func TestRemote_DownloadAndDirectory(t *testing.T) {
	f := newFakeGitHub(t, sampleRepo)
	p, _ := NewRemote(remoteConfig(), f.client(true), nil)
	ctx := context.Background()

	ds, err := p.FetchAll(ctx)
	if err != nil {
		t.Fatal(err)
	}

	data, err := p.Download(ctx, ds[1])
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(data) != "# Reviewer" {
		t.Errorf("Download() = %q", data)
	}

	files, err := p.DownloadDirectory(ctx, ds[2])
	if err != nil {
		t.Fatalf("DownloadDirectory() error = %v", err)
	}
	if len(files) != 2 || string(files["scripts/fill.py"]) != "print()" {
		t.Errorf("DownloadDirectory() = %v", files)
	}

	meta, ok, err := p.DownloadMetadata(ctx, ds[2])
	if err != nil || !ok || !strings.Contains(string(meta), "name: pdf") {
		t.Errorf("DownloadMetadata() = %q, %v, %v", meta, ok, err)
	}

	if _, err := p.DownloadDirectory(ctx, ds[0]); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("DownloadDirectory(file) error = %v, want ErrNotDirectory", err)
	}

	gone := ds[0]
	gone.ContentRef = f.srv.URL + "/raw/agents/deleted.md"
	_, err = p.Download(ctx, gone)
	var fe *FetchError
	if !errors.As(err, &fe) || !errors.Is(err, ErrContentGone) {
		t.Errorf("Download(gone) error = %v, want FetchError wrapping ErrContentGone", err)
	}
}

func TestRemote_NotFoundHandling(t *testing.T) {
	tests := []struct {
		name          string
		authenticated bool
		hidden        bool
		noOwner       bool
		wantAuth      bool
		wantFetchErr  bool
		wantCount     int
	}{
		{name: "authenticated missing path is empty", authenticated: true, wantCount: 2},
		{name: "unauthenticated visible repo", wantCount: 2},
		{name: "unauthenticated hidden repo", hidden: true, wantAuth: true},
		{name: "unauthenticated missing owner", hidden: true, noOwner: true, wantFetchErr: true},
		{name: "authenticated hidden repo is empty", authenticated: true, hidden: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGitHub(t, map[string]string{
				"agents/a.md": "a",
				"agents/b.md": "b",
			})
			f.hidden = tt.hidden
			f.noOwner = tt.noOwner

			p, _ := NewRemote(remoteConfig(), f.client(tt.authenticated), nil)
			ds, err := p.FetchAll(context.Background())

			switch {
			case tt.wantAuth:
				if !IsAuthRequired(err) {
					t.Fatalf("error = %v, want AuthRequiredError", err)
				}
			case tt.wantFetchErr:
				var fe *FetchError
				if !errors.As(err, &fe) || IsAuthRequired(err) {
					t.Fatalf("error = %v, want FetchError", err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(ds) != tt.wantCount {
					t.Errorf("descriptors = %d, want %d", len(ds), tt.wantCount)
				}
			}
		})
	}
}

func TestRemote_FatalStatuses(t *testing.T) {
	t.Run("forbidden", func(t *testing.T) {
		f := newFakeGitHub(t, sampleRepo)
		f.status = http.StatusUnauthorized
		p, _ := NewRemote(remoteConfig(), f.client(true), nil)

		_, err := p.FetchAll(context.Background())
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Status != http.StatusUnauthorized {
			t.Fatalf("error = %v, want FetchError with 401", err)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newFakeGitHub(t, sampleRepo)
		f.rateHit = true
		p, _ := NewRemote(remoteConfig(), f.client(false), nil)

		_, err := p.FetchAll(context.Background())
		var fe *FetchError
		if !errors.As(err, &fe) || !fe.RateLimited {
			t.Fatalf("error = %v, want rate limited FetchError", err)
		}
	})
}

func TestNewRemote_Disabled(t *testing.T) {
	cfg := remoteConfig()
	cfg.Enabled = false
	_, err := NewRemote(cfg, ghclient.NewForHost, nil)
	if !errors.Is(err, ErrSourceDisabled) {
		t.Errorf("error = %v, want ErrSourceDisabled", err)
	}
}
