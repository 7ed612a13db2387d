package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeWorld(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeWorld(t, "name: minimal\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "minimal" {
		t.Errorf("expected name minimal, got %q", cfg.Name)
	}
	if cfg.Dt != DefaultDt {
		t.Errorf("expected default dt %f, got %f", DefaultDt, cfg.Dt)
	}
	if cfg.PublishRate != DefaultPublishRate {
		t.Errorf("expected default publish rate, got %f", cfg.PublishRate)
	}
	if cfg.Gravity[2] != DefaultGravityZ {
		t.Errorf("expected default gravity z, got %f", cfg.Gravity[2])
	}
	if cfg.Integrator != "rk4" {
		t.Errorf("expected default integrator rk4, got %q", cfg.Integrator)
	}
}

func TestLoadFull(t *testing.T) {
	path := writeWorld(t, `
name: pendulum
dt: 0.002
links:
  - name: bob
    gravity: true
    pose: [0, 0, 1, 0, 0, 0]
    inertial:
      mass: 1.5
    collisions:
      - name: c
        geometry:
          type: sphere
          radius: 0.1
joints:
  - name: pivot
    type: hinge
    parent: base
    child: bob
    axis: [0, 1, 0]
    damping: 0.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Links) != 1 || cfg.Links[0].Inertial.Mass != 1.5 {
		t.Errorf("link block not parsed: %+v", cfg.Links)
	}
	if len(cfg.Joints) != 1 || cfg.Joints[0].Damping != 0.5 {
		t.Errorf("joint block not parsed: %+v", cfg.Joints)
	}
	if cfg.Dt != 0.002 {
		t.Errorf("expected dt 0.002, got %f", cfg.Dt)
	}
}

func TestLoadRejectsBadDt(t *testing.T) {
	path := writeWorld(t, "name: bad\ndt: -1\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for negative dt")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	cfg := DefaultWorld()
	cfg.Name = "saved"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != "saved" || got.Dt != cfg.Dt {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
