package conversation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoaderLoadAll(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mini.yaml"), []byte(minimalCatalog), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("write txt: %v", err)
	}

	loader := NewLoader(dir, nil)
	catalogs, err := loader.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(catalogs) != 1 {
		t.Fatalf("loaded %d catalogs, want 1", len(catalogs))
	}
	c, ok := loader.Get("mini")
	if !ok {
		t.Fatal("catalog 'mini' not found")
	}
	if got := c.Recognize("I want to ask"); got != "ask" {
		t.Errorf("Recognize = %q, want ask", got)
	}
}

func TestLoaderNameFromFile(t *testing.T) {
	dir := t.TempDir()
	unnamed := strings.Replace(minimalCatalog, "name: mini\n", "", 1)
	os.WriteFile(filepath.Join(dir, "site.yml"), []byte(unnamed), 0644)

	loader := NewLoader(dir, nil)
	if _, err := loader.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if _, ok := loader.Get("site"); !ok {
		t.Errorf("names = %v, want [site]", loader.Names())
	}
}

func TestLoaderInvalidKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "mini.yaml"), []byte(minimalCatalog), 0644)

	loader := NewLoader(dir, nil)
	if _, err := loader.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("{{invalid yaml"), 0644)
	if _, err := loader.LoadAll(); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if _, ok := loader.Get("mini"); !ok {
		t.Error("previous catalog dropped after failed reload")
	}
}

func TestLoaderMissingDir(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "missing"), nil)
	if _, err := loader.LoadAll(); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestLoaderWatchAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mini.yaml")
	os.WriteFile(path, []byte(minimalCatalog), 0644)

	loader := NewLoader(dir, nil)
	if _, err := loader.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- loader.WatchAndReload(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	updated := strings.Replace(minimalCatalog, `responses: ["Go ahead."]`, `responses: ["Shoot."]`, 1)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("rewrite yaml: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c, _ := loader.Get("mini")
		if in, ok := c.Intent("ask"); ok && in.Responses[0] == "Shoot." {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	c, _ := loader.Get("mini")
	in, _ := c.Intent("ask")
	if in.Responses[0] != "Shoot." {
		t.Errorf("response = %q, want reloaded value", in.Responses[0])
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WatchAndReload: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop")
	}
}

func TestLoaderSourceFallsBackToDefault(t *testing.T) {
	var nilLoader *Loader
	if got := nilLoader.Source("mini")().Name; got != "portfolio" {
		t.Errorf("nil loader source = %q, want portfolio", got)
	}

	dir := t.TempDir()
	loader := NewLoader(dir, nil)
	src := loader.Source("mini")
	if got := src().Name; got != "portfolio" {
		t.Errorf("before load = %q, want portfolio", got)
	}

	os.WriteFile(filepath.Join(dir, "mini.yaml"), []byte(minimalCatalog), 0644)
	if _, err := loader.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got := src().Name; got != "mini" {
		t.Errorf("after load = %q, want mini", got)
	}
}
