package workspace

import (
	"strings"
	"testing"
	"testing/fstest"
)

const sampleManifest = `
encoding: utf-8
defines:
  SPEED: "2"
configurations:
  - name: racing
    actions:
      - name: turbo
        file: actions/turbo.pad
        defines:
          TURBO: "1"
      - name: gyro
        source: |
          state idle { idle() { LPadX = 128 + IMUY; } };
  - name: spare
    enabled: false
    actions: []
`

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if m.Encoding != "utf-8" || m.Defines["SPEED"] != "2" {
		t.Errorf("unexpected header %+v", m)
	}
	if len(m.Configurations) != 2 {
		t.Fatalf("expected 2 configurations, got %d", len(m.Configurations))
	}
	racing := m.Configurations[0]
	if !racing.IsEnabled() || len(racing.Actions) != 2 {
		t.Errorf("unexpected racing configuration %+v", racing)
	}
	if racing.Actions[0].File != "actions/turbo.pad" || racing.Actions[0].Defines["TURBO"] != "1" {
		t.Errorf("unexpected turbo action %+v", racing.Actions[0])
	}
	if !strings.Contains(racing.Actions[1].Source, "IMUY") {
		t.Errorf("unexpected gyro source %q", racing.Actions[1].Source)
	}
	if m.Configurations[1].IsEnabled() {
		t.Error("spare should be disabled")
	}
}

func TestLoadManifest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"empty", "", "empty manifest"},
		{"syntax", "configurations: [", "failed to parse manifest"},
		{"unknown field", "configurations: []\nextra: 1\n", "field extra not found"},
		{"unnamed configuration", "configurations:\n  - actions: [{name: a, source: x}]\n", "configuration 1 has no name"},
		{"duplicate configuration", "configurations:\n  - {name: a, actions: [{name: a, source: x}]}\n  - {name: a, actions: [{name: a, source: x}]}\n", `duplicate configuration "a"`},
		{"no actions", "configurations:\n  - name: a\n", `configuration "a" has no actions`},
		{"unnamed action", "configurations:\n  - {name: a, actions: [{source: x}]}\n", "action 1 has no name"},
		{"no source", "configurations:\n  - {name: a, actions: [{name: b}]}\n", "exactly one of file and source"},
		{"two sources", "configurations:\n  - {name: a, actions: [{name: b, file: f, source: x}]}\n", "exactly one of file and source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadManifest(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q should contain %q", err, tt.message)
			}
		})
	}
}

func TestReadManifest(t *testing.T) {
	fsys := fstest.MapFS{"Padscript.YAML": {Data: []byte(sampleManifest)}}
	m, err := ReadManifest(fsys, "padscript.yaml")
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if len(m.Configurations) != 2 {
		t.Errorf("expected 2 configurations, got %d", len(m.Configurations))
	}

	if _, err := ReadManifest(fsys, "missing.yaml"); err == nil {
		t.Error("expected error for missing manifest")
	}
}
