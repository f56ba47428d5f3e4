package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const counterSource = `state idle { idle() { LPadX = LPadX + STEP; } };
`

const manifestSource = `defines:
  SPEED: "2"
configurations:
  - name: racing
    actions:
      - name: turbo
        file: Actions/Turbo.pad
        defines:
          TURBO: "3"
`

const turboSource = `#ifdef TURBO
int period = TURBO;
#else
int period = 1;
#endif
state idle { idle() { LPadX = period * SPEED; } };
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := NewWithWriters(&stdout, &stderr).Run(args)
	return stdout.String(), stderr.String(), err
}

func TestRun_Help(t *testing.T) {
	out, _, err := runApp(t, "--help")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out, "padscript") {
		t.Errorf("help output missing program name: %q", out)
	}
}

func TestRun_InvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"コマンドなし", nil},
		{"不明なコマンド", []string{"frobnicate", "x"}},
		{"引数不足", []string{"compile"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := runApp(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCompile(t *testing.T) {
	dir := writeFiles(t, map[string]string{"counter.pad": counterSource})
	src := filepath.Join(dir, "counter.pad")
	bin := filepath.Join(dir, "counter.bin")

	t.Run("出力ファイル", func(t *testing.T) {
		if _, _, err := runApp(t, "compile", src, "-D", "STEP=1", "-o", bin); err != nil {
			t.Fatalf("compile error = %v", err)
		}
		data, err := os.ReadFile(bin)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) < 3 {
			t.Fatalf("bytecode too short: % X", data)
		}
	})

	t.Run("逆アセンブル", func(t *testing.T) {
		out, _, err := runApp(t, "disasm", bin)
		if err != nil {
			t.Fatalf("disasm error = %v", err)
		}
		if !strings.Contains(out, "; stack size") || !strings.Contains(out, "YIELD") {
			t.Errorf("unexpected listing:\n%s", out)
		}
	})

	t.Run("ダンプ", func(t *testing.T) {
		out, _, err := runApp(t, "compile", src, "-D", "STEP=1", "--listing", "--dump-ic", "--dump-ast", "--dump-symbols")
		if err != nil {
			t.Fatalf("compile error = %v", err)
		}
		for _, want := range []string{"; AST", "; symbols", "; intermediate code", "; instructions"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("コンパイルエラー", func(t *testing.T) {
		// STEP is undefined without -D
		_, stderr, err := runApp(t, "compile", src)
		if err == nil {
			t.Fatal("expected an error")
		}
		if !strings.Contains(stderr, "counter.pad") {
			t.Errorf("diagnostics should name the file: %q", stderr)
		}
	})
}

func TestRunCommand(t *testing.T) {
	dir := writeFiles(t, map[string]string{"counter.pad": counterSource})
	src := filepath.Join(dir, "counter.pad")

	out, _, err := runApp(t, "run", src, "-D", "STEP=2", "--ticks", "3", "--set", "LPadX=10")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 report lines, got %d:\n%s", len(lines), out)
	}
	for i, want := range []string{"LPadX=12 ", "LPadX=14 ", "LPadX=16 "} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("tick %d: %q does not contain %q", i+1, lines[i], want)
		}
	}
}

func TestRunCommand_UnknownField(t *testing.T) {
	dir := writeFiles(t, map[string]string{"counter.pad": counterSource})
	_, _, err := runApp(t, "run", filepath.Join(dir, "counter.pad"), "-D", "STEP=1", "--set", "Nope=1")
	if err == nil {
		t.Error("expected an error for an unknown report field")
	}
}

func TestPackUnpackRun(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"padscript.yaml":    manifestSource,
		"actions/turbo.pad": turboSource,
	})
	img := filepath.Join(dir, "workspace.img")

	if _, _, err := runApp(t, "pack", filepath.Join(dir, "padscript.yaml"), "-o", img); err != nil {
		t.Fatalf("pack error = %v", err)
	}

	out, _, err := runApp(t, "unpack", img)
	if err != nil {
		t.Fatalf("unpack error = %v", err)
	}
	if !strings.Contains(out, "1 configuration(s)") || !strings.Contains(out, "action 1:") {
		t.Errorf("unexpected unpack output:\n%s", out)
	}

	out, _, err = runApp(t, "disasm", img)
	if err != nil {
		t.Fatalf("disasm error = %v", err)
	}
	if !strings.Contains(out, "; configuration 1, action 1") {
		t.Errorf("unexpected disasm output:\n%s", out)
	}

	out, _, err = runApp(t, "run", img)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(out, "LPadX=6 ") {
		t.Errorf("expected TURBO*SPEED in the report: %q", out)
	}
}

func TestPack_BuildErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"padscript.yaml": `configurations:
  - name: main
    actions:
      - name: broken
        source: "state idle { idle() { x = 1; } };"
`,
	})
	_, stderr, err := runApp(t, "pack", filepath.Join(dir, "padscript.yaml"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(stderr, "main/broken") {
		t.Errorf("diagnostics should name the action: %q", stderr)
	}
}

func TestUnpack_NotAnImage(t *testing.T) {
	dir := writeFiles(t, map[string]string{"junk.img": "hello"})
	if _, _, err := runApp(t, "unpack", filepath.Join(dir, "junk.img")); err == nil {
		t.Error("expected an error")
	}
}

func TestTestCommand(t *testing.T) {
	suite := func(want string) string {
		return `name: smoke
tests:
  - name: add
    source: "state idle { idle() { LPadX = LPadX + 1; } };"
    input: {LPadX: 1}
    expect:
      report: {LPadX: ` + want + `}
`
	}

	t.Run("成功", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{"smoke.yaml": suite("2")})
		out, _, err := runApp(t, "test", dir)
		if err != nil {
			t.Fatalf("test error = %v", err)
		}
		if !strings.Contains(out, "PASS smoke/add") || !strings.Contains(out, "1 passed, 0 failed") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("失敗", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{"smoke.yaml": suite("5")})
		out, _, err := runApp(t, "test", dir)
		if !errors.Is(err, ErrTestsFailed) {
			t.Fatalf("expected ErrTestsFailed, got %v", err)
		}
		if !strings.Contains(out, "FAIL smoke/add") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

func TestWatch_StopsWithContext(t *testing.T) {
	dir := writeFiles(t, map[string]string{"counter.pad": counterSource})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var stdout, stderr bytes.Buffer
	err := NewWithWriters(&stdout, &stderr).RunContext(ctx, []string{"watch", filepath.Join(dir, "counter.pad"), "-D", "STEP=1"})
	if err != nil {
		t.Fatalf("watch error = %v", err)
	}
	if !strings.Contains(stdout.String(), "YIELD") {
		t.Errorf("expected an initial build:\n%s", stdout.String())
	}
}
