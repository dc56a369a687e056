package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"noiseplayer/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckSourceFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "rain.flac")
	if err := os.WriteFile(source, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckSourceFile("source", source); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckSourceFile("source", dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
	if result := CheckSourceFile("source", filepath.Join(dir, "missing.flac")); result.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestRunAllIncludesSourceWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(results))
	}
	for _, result := range results {
		if !result.Passed {
			t.Fatalf("%s failed: %s", result.Name, result.Detail)
		}
	}

	cfg.Player.Source = filepath.Join(t.TempDir(), "missing.flac")
	results = RunAll(cfg)
	if len(results) != 3 || results[2].Passed {
		t.Fatalf("expected failing source check, got %+v", results)
	}
}

func TestCheckSystemDepsUsesConfiguredPlayer(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPlayerScript("exit 0\n"))
	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 1 || !statuses[0].Available {
		t.Fatalf("expected available player, got %+v", statuses)
	}

	cfg.Player.Binary = "definitely-not-a-player"
	statuses = CheckSystemDeps(cfg)
	if statuses[0].Available {
		t.Fatal("expected missing player")
	}
}
