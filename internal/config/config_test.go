package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `{
  "mattresses": [
    {"id": "master", "name": "Master Bed", "side_1_name": "Summer", "side_2_name": "Winter", "flip_pin": 17, "rotate_pin": 27},
    {"id": "guest"}
  ]
}`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mattresses.json")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Mattresses) != 2 {
		t.Fatalf("got %d mattresses, want 2", len(cfg.Mattresses))
	}

	m, ok := cfg.Find("master")
	if !ok {
		t.Fatal("master not found")
	}
	if m.FlipPin != 17 || m.RotatePin != 27 {
		t.Errorf("pins: got %d/%d", m.FlipPin, m.RotatePin)
	}
	n := m.Names()
	if n.Mattress != "Master Bed" || n.Side1 != "Summer" || n.Side2 != "Winter" {
		t.Errorf("names: got %+v", n)
	}

	g, _ := cfg.Find("guest")
	if n := g.Names(); n.Mattress != "Mattress" || n.Side1 != "Side 1" || n.Side2 != "Side 2" {
		t.Errorf("default names: got %+v", n)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr string
	}{
		{"not json", `mattresses: []`, "parse config"},
		{"missing id", `{"mattresses":[{"name":"x"}]}`, "id is required"},
		{"bad id", `{"mattresses":[{"id":"Master Bed"}]}`, "id must match"},
		{"duplicate id", `{"mattresses":[{"id":"a"},{"id":"a"}]}`, "duplicate id"},
		{"shared pin", `{"mattresses":[{"id":"a","flip_pin":5},{"id":"b","rotate_pin":5}]}`, "already used"},
		{"negative pin", `{"mattresses":[{"id":"a","flip_pin":-1}]}`, "invalid pin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Mattresses) != 0 {
		t.Errorf("expected no mattresses, got %d", len(cfg.Mattresses))
	}
}
