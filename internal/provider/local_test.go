package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func localConfig(location string) config.SourceConfig {
	return config.SourceConfig{
		Name:     "team",
		Kind:     config.SourceLocal,
		Location: location,
		Paths:    config.DefaultPaths(),
		Enabled:  true,
	}
}

func TestLocal_FetchAll(t *testing.T) {
	ws := t.TempDir()
	root := filepath.Join(ws, "templates")
	writeFile(t, filepath.Join(root, "agents", "b.agent.md"), "b")
	writeFile(t, filepath.Join(root, "agents", "a.agent.md"), "a")
	writeFile(t, filepath.Join(root, "agents", ".hidden.md"), "x")
	writeFile(t, filepath.Join(root, "agents", "notes.txt"), "x")
	writeFile(t, filepath.Join(root, "prompts", "explain.prompt.md"), "p")
	writeFile(t, filepath.Join(root, "skills", "pdf", "SKILL.md"), "---\nname: pdf\n---\n")
	writeFile(t, filepath.Join(root, "skills", "pdf", "lib", "util.py"), "pass")
	writeFile(t, filepath.Join(root, "skills", "loose.md"), "not a skill")

	p, err := NewLocal(localConfig("./templates"), ws, nil)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()

	ds, err := p.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(ds) != 4 {
		t.Fatalf("FetchAll() = %d descriptors, want 4: %+v", len(ds), ds)
	}
	wantNames := []string{"a.agent.md", "b.agent.md", "explain.prompt.md", "pdf"}
	for i, d := range ds {
		if d.Name != wantNames[i] {
			t.Errorf("ds[%d].Name = %q, want %q", i, d.Name, wantNames[i])
		}
		if !filepath.IsAbs(d.ContentRef) {
			t.Errorf("ContentRef %q should be absolute", d.ContentRef)
		}
	}

	skill := ds[3]
	if !skill.IsDirectory || skill.RelativeSourcePath != "skills/pdf" {
		t.Errorf("skill descriptor = %+v", skill)
	}

	data, err := p.Download(ctx, ds[0])
	if err != nil || string(data) != "a" {
		t.Errorf("Download() = %q, %v", data, err)
	}

	files, err := p.DownloadDirectory(ctx, skill)
	if err != nil {
		t.Fatalf("DownloadDirectory() error = %v", err)
	}
	if len(files) != 2 || string(files["lib/util.py"]) != "pass" {
		t.Errorf("DownloadDirectory() = %v", files)
	}

	meta, ok, err := p.DownloadMetadata(ctx, skill)
	if err != nil || !ok || string(meta) != "---\nname: pdf\n---\n" {
		t.Errorf("DownloadMetadata() = %q, %v, %v", meta, ok, err)
	}
}

func TestLocal_MissingPathsAreEmpty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "agents", "only.md"), "x")

	p, _ := NewLocal(localConfig(root), "", nil)
	ds, err := p.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(ds) != 1 {
		t.Errorf("FetchAll() = %d, want 1", len(ds))
	}
}

func TestLocal_MissingRootFails(t *testing.T) {
	p, _ := NewLocal(localConfig(filepath.Join(t.TempDir(), "nope")), "", nil)
	_, err := p.FetchAll(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Errorf("error = %v, want FetchError", err)
	}
}

func TestLocal_PermissionDeniedFails(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "agents", "a.md"), "a")
	locked := filepath.Join(root, "prompts")
	if err := os.MkdirAll(locked, 0000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	p, _ := NewLocal(localConfig(root), "", nil)
	if _, err := p.FetchAll(context.Background()); err == nil {
		t.Error("expected permission error to fail the whole fetch")
	}
}

func TestLocal_DownloadGone(t *testing.T) {
	root := t.TempDir()
	p, _ := NewLocal(localConfig(root), "", nil)

	_, err := p.Download(context.Background(), artifact.Descriptor{Name: "x.md", ContentRef: filepath.Join(root, "x.md")})
	if !errors.Is(err, ErrContentGone) {
		t.Errorf("error = %v, want ErrContentGone", err)
	}

	_, ok, err := p.DownloadMetadata(context.Background(), artifact.Descriptor{IsDirectory: true, ContentRef: root})
	if ok || err != nil {
		t.Errorf("DownloadMetadata() = %v, %v, want absent", ok, err)
	}
}

func TestNewFactory_Dispatch(t *testing.T) {
	f := NewFactory(FactoryOptions{Workspace: t.TempDir()})

	lp, err := f(localConfig("./x"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lp.(*Local); !ok {
		t.Errorf("local config built %T", lp)
	}

	rp, err := f(remoteConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rp.(*Remote); !ok {
		t.Errorf("remote config built %T", rp)
	}

	bad := remoteConfig()
	bad.Kind = "ftp"
	if _, err := f(bad); err == nil {
		t.Error("expected error for unknown kind")
	}
}
