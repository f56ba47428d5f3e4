package cli

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/zurustar/padscript/pkg/vm"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"LOG_LEVEL", "PADSCRIPT_TICKS", "PADSCRIPT_ENCODING", "PADSCRIPT_STEP_LIMIT"} {
		t.Setenv(name, "")
	}
}

func TestParseArgs_ValidArgs(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, c *Config)
	}{
		{
			name: "デフォルト設定",
			args: []string{"compile", "turbo.pad"},
			check: func(t *testing.T, c *Config) {
				if c.Command != "compile" || !reflect.DeepEqual(c.Args, []string{"turbo.pad"}) {
					t.Errorf("Command = %q, Args = %v", c.Command, c.Args)
				}
				if c.LogLevel != "info" || c.Ticks != 1 || c.StepLimit != vm.DefaultStepLimit {
					t.Errorf("unexpected defaults %+v", c)
				}
				if c.Output != "" || c.Listing || c.Encoding != "" || len(c.Defines) != 0 {
					t.Errorf("unexpected defaults %+v", c)
				}
			},
		},
		{
			name: "出力ファイル指定（短縮形）",
			args: []string{"compile", "-o", "out.bin", "turbo.pad"},
			check: func(t *testing.T, c *Config) {
				if c.Output != "out.bin" || c.Args[0] != "turbo.pad" {
					t.Errorf("Output = %q, Args = %v", c.Output, c.Args)
				}
			},
		},
		{
			name: "位置引数の後にフラグ（順序に関係なく動作）",
			args: []string{"compile", "turbo.pad", "--listing", "--dump-ast", "--dump-ic", "--dump-symbols", "--output", "x.bin"},
			check: func(t *testing.T, c *Config) {
				if !c.Listing || !c.DumpAST || !c.DumpIC || !c.DumpSymbols || c.Output != "x.bin" {
					t.Errorf("flags not parsed: %+v", c)
				}
				if c.Args[0] != "turbo.pad" {
					t.Errorf("Args = %v", c.Args)
				}
			},
		},
		{
			name: "マクロ定義（複数）",
			args: []string{"compile", "-D", "TURBO=3", "turbo.pad", "-D", "FAST", "-D=SLOW=1"},
			check: func(t *testing.T, c *Config) {
				want := map[string]string{"TURBO": "3", "FAST": "", "SLOW": "1"}
				if !reflect.DeepEqual(c.Defines, want) {
					t.Errorf("Defines = %v, want %v", c.Defines, want)
				}
			},
		},
		{
			name: "実行オプション",
			args: []string{"run", "turbo.pad", "--ticks", "10", "--set", "Cross=1", "--set", "LPadX=-5.5", "--step-limit", "500"},
			check: func(t *testing.T, c *Config) {
				if c.Ticks != 10 || c.StepLimit != 500 {
					t.Errorf("Ticks = %d, StepLimit = %d", c.Ticks, c.StepLimit)
				}
				want := []Assignment{{"Cross", 1}, {"LPadX", -5.5}}
				if !reflect.DeepEqual(c.Set, want) {
					t.Errorf("Set = %v, want %v", c.Set, want)
				}
			},
		},
		{
			name: "文字コード指定",
			args: []string{"compile", "--encoding=shift_jis", "sjis.pad"},
			check: func(t *testing.T, c *Config) {
				if c.Encoding != "shift_jis" {
					t.Errorf("Encoding = %q", c.Encoding)
				}
			},
		},
		{
			name: "ログレベル指定（短縮形）",
			args: []string{"test", "-l", "error", "testdata"},
			check: func(t *testing.T, c *Config) {
				if c.LogLevel != "error" || c.Args[0] != "testdata" {
					t.Errorf("LogLevel = %q, Args = %v", c.LogLevel, c.Args)
				}
			},
		},
		{
			name: "ヘルプ表示はコマンド不要",
			args: []string{"-h"},
			check: func(t *testing.T, c *Config) {
				if !c.ShowHelp {
					t.Error("ShowHelp should be set")
				}
			},
		},
		{
			name: "-- 以降は位置引数",
			args: []string{"compile", "--", "-weird.pad"},
			check: func(t *testing.T, c *Config) {
				if c.Args[0] != "-weird.pad" {
					t.Errorf("Args = %v", c.Args)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, config)
		})
	}
}

func TestParseArgs_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("PADSCRIPT_TICKS", "7")
	t.Setenv("PADSCRIPT_ENCODING", "windows-1252")
	t.Setenv("PADSCRIPT_STEP_LIMIT", "42")

	config, err := ParseArgs([]string{"run", "a.pad"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.LogLevel != "debug" || config.Ticks != 7 || config.Encoding != "windows-1252" || config.StepLimit != 42 {
		t.Errorf("environment not applied: %+v", config)
	}

	// コマンドラインフラグが優先
	config, err = ParseArgs([]string{"run", "a.pad", "-l", "warn", "--ticks", "2", "--encoding", "utf-8", "--step-limit", "0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.LogLevel != "warn" || config.Ticks != 2 || config.Encoding != "utf-8" || config.StepLimit != 0 {
		t.Errorf("flags should win over environment: %+v", config)
	}
}

func TestParseArgs_InvalidArgs(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"コマンドなし", []string{}},
		{"未知のコマンド", []string{"explode", "a.pad"}},
		{"位置引数なし", []string{"compile"}},
		{"位置引数が多すぎる", []string{"compile", "a.pad", "b.pad"}},
		{"無効なログレベル", []string{"compile", "a.pad", "--log-level", "invalid"}},
		{"無効なログレベル（短縮形）", []string{"compile", "a.pad", "-l", "trace"}},
		{"負のティック数", []string{"run", "a.pad", "--ticks", "-1"}},
		{"負の命令数上限", []string{"run", "a.pad", "--step-limit", "-5"}},
		{"不正な --set", []string{"run", "a.pad", "--set", "Cross"}},
		{"不正な --set の値", []string{"run", "a.pad", "--set", "Cross=yes"}},
		{"空のマクロ名", []string{"compile", "a.pad", "-D", "=1"}},
		{"未知のフラグ", []string{"compile", "a.pad", "--bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.args)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestPrintHelp(t *testing.T) {
	var buf bytes.Buffer
	PrintHelp(&buf)
	for cmd := range Commands {
		if !strings.Contains(buf.String(), cmd) {
			t.Errorf("help does not mention %q", cmd)
		}
	}
}
