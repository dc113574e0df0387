package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/provider"
)

type fakeProvider struct {
	descriptors []artifact.Descriptor
	err         error
	panicMsg    string
	block       bool
	started     *sync.WaitGroup
	content     []byte
}

func (p *fakeProvider) FetchAll(ctx context.Context) ([]artifact.Descriptor, error) {
	if p.started != nil {
		p.started.Done()
		p.started.Wait()
	}
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p.descriptors, p.err
}

func (p *fakeProvider) Download(context.Context, artifact.Descriptor) ([]byte, error) {
	return p.content, nil
}

func (p *fakeProvider) DownloadDirectory(context.Context, artifact.Descriptor) (map[string][]byte, error) {
	return map[string][]byte{"SKILL.md": p.content}, nil
}

func (p *fakeProvider) DownloadMetadata(context.Context, artifact.Descriptor) ([]byte, bool, error) {
	return p.content, true, nil
}

type fakeSources map[string]provider.Provider

func (s fakeSources) Get(name string) (provider.Provider, bool) {
	p, ok := s[name]
	return p, ok
}

func (s fakeSources) All() map[string]provider.Provider {
	return s
}

func descriptors(source string, kind artifact.Kind, names ...string) []artifact.Descriptor {
	var out []artifact.Descriptor
	for _, n := range names {
		out = append(out, artifact.Descriptor{Name: n, Kind: kind, SourceName: source})
	}
	return out
}

func TestFetchFromAll_PartialFailure(t *testing.T) {
	srcs := fakeSources{
		"b":       &fakeProvider{descriptors: descriptors("b", artifact.KindPrompt, "p.md")},
		"a":       &fakeProvider{descriptors: descriptors("a", artifact.KindAgent, "x.md", "y.md")},
		"broken":  &fakeProvider{err: errors.New("boom")},
		"private": &fakeProvider{err: &provider.AuthRequiredError{Source: "private", Owner: "o", Repo: "r"}},
		"panics":  &fakeProvider{panicMsg: "kaboom"},
	}

	res := New(srcs).FetchFromAll(context.Background())

	if res.SuccessCount() != 2 || res.FailureCount() != 3 {
		t.Errorf("success=%d failure=%d, want 2/3", res.SuccessCount(), res.FailureCount())
	}

	all := res.AllDescriptors()
	if len(all) != 3 {
		t.Fatalf("AllDescriptors() = %d, want 3", len(all))
	}
	if all[0].SourceName != "a" || all[2].SourceName != "b" {
		t.Errorf("AllDescriptors() not in source order: %+v", all)
	}

	auth := res.AuthRequired()
	if len(auth) != 1 || auth[0] != "private" {
		t.Errorf("AuthRequired() = %v, want [private]", auth)
	}
	if res.Sources["panics"].Err == nil || res.Sources["panics"].Success {
		t.Error("panicking provider should be a failed result")
	}
	if len(res.Failures()) != 3 {
		t.Errorf("Failures() = %d, want 3", len(res.Failures()))
	}
}

func TestFetchFromAll_LaunchesConcurrently(t *testing.T) {
	// Every provider blocks until all have started; a sequential fetch would deadlock
	var started sync.WaitGroup
	started.Add(3)
	srcs := fakeSources{
		"a": &fakeProvider{started: &started},
		"b": &fakeProvider{started: &started},
		"c": &fakeProvider{started: &started},
	}

	done := make(chan *Results)
	go func() { done <- New(srcs).FetchFromAll(context.Background()) }()

	select {
	case res := <-done:
		if res.SuccessCount() != 3 {
			t.Errorf("SuccessCount() = %d, want 3", res.SuccessCount())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("FetchFromAll did not run providers concurrently")
	}
}

func TestFetchFromAll_Timeout(t *testing.T) {
	srcs := fakeSources{
		"slow": &fakeProvider{block: true},
		"fast": &fakeProvider{descriptors: descriptors("fast", artifact.KindAgent, "a.md")},
	}

	res := New(srcs, WithTimeout(50*time.Millisecond)).FetchFromAll(context.Background())

	slow := res.Sources["slow"]
	var fe *provider.FetchError
	if slow.Success || !errors.As(slow.Err, &fe) || !errors.Is(slow.Err, context.DeadlineExceeded) {
		t.Errorf("slow result = %+v, want deadline FetchError", slow)
	}
	if !res.Sources["fast"].Success {
		t.Error("fast source should succeed")
	}
}

func TestFetchFromOne(t *testing.T) {
	srcs := fakeSources{"a": &fakeProvider{descriptors: descriptors("a", artifact.KindAgent, "x.md")}}
	f := New(srcs)

	res := f.FetchFromOne(context.Background(), "a")
	if !res.Success || len(res.Descriptors) != 1 {
		t.Errorf("FetchFromOne(a) = %+v", res)
	}

	res = f.FetchFromOne(context.Background(), "missing")
	if res.Success || !errors.Is(res.Err, ErrUnknownSource) {
		t.Errorf("FetchFromOne(missing) = %+v, want ErrUnknownSource", res)
	}
}

func TestDownloadRouting(t *testing.T) {
	srcs := fakeSources{"a": &fakeProvider{content: []byte("hello")}}
	f := New(srcs)
	ctx := context.Background()

	data, err := f.DownloadTemplate(ctx, artifact.Descriptor{SourceName: "a", Name: "x.md"})
	if err != nil || string(data) != "hello" {
		t.Errorf("DownloadTemplate() = %q, %v", data, err)
	}

	files, err := f.DownloadDirectoryContents(ctx, artifact.Descriptor{SourceName: "a", IsDirectory: true})
	if err != nil || len(files) != 1 {
		t.Errorf("DownloadDirectoryContents() = %v, %v", files, err)
	}

	_, err = f.DownloadTemplate(ctx, artifact.Descriptor{SourceName: "gone"})
	var re *RoutingError
	if !errors.As(err, &re) || !errors.Is(err, ErrUnknownSource) {
		t.Errorf("DownloadTemplate(gone) error = %v, want RoutingError", err)
	}
	if _, _, err := f.DownloadMetadata(ctx, artifact.Descriptor{SourceName: "gone"}); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("DownloadMetadata(gone) error = %v", err)
	}
}
