package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFillsFromIniAndFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slamdemo.ini")
	contents := `
[Camera]
fx = 718.8
fy = 718.8
cx = 607.2
cy = 185.2

[Initializer]
minMatches = 150

[Input]
sequencePath = /data/seq01
makeVideo = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test ini file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Camera.Fx != 718.8 || cfg.Camera.Cy != 185.2 {
		t.Errorf("camera intrinsics not parsed correctly: %+v", cfg.Camera)
	}
	if cfg.Init.MinMatches != 150 {
		t.Errorf("expected overridden MinMatches 150, got %d", cfg.Init.MinMatches)
	}
	// Not present in the file: should fall back to Default()'s value.
	if cfg.Init.NumRANSACIterations != Default().Init.NumRANSACIterations {
		t.Errorf("expected default RANSAC iteration count to survive, got %d", cfg.Init.NumRANSACIterations)
	}
	if cfg.Input.SequencePath != "/data/seq01" {
		t.Errorf("expected sequence path from file, got %q", cfg.Input.SequencePath)
	}
	if !cfg.Input.MakeVideo {
		t.Error("expected makeVideo=true to be parsed")
	}
}

func TestLoadRejectsMissingCameraIntrinsics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ini")
	if err := os.WriteFile(path, []byte("[Input]\nsequencePath = /data\n"), 0o644); err != nil {
		t.Fatalf("failed to write test ini file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected Load to reject a config with no camera focal length")
	}
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/slamdemo.ini"); err == nil {
		t.Fatal("expected an error loading a nonexistent file")
	}
}
