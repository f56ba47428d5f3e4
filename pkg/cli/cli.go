package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/xyproto/env/v2"

	"github.com/zurustar/padscript/pkg/logger"
	"github.com/zurustar/padscript/pkg/vm"
)

// Commands は利用可能なサブコマンドと必要な位置引数の数
var Commands = map[string]int{
	"compile": 1,
	"disasm":  1,
	"run":     1,
	"pack":    1,
	"unpack":  1,
	"test":    1,
	"watch":   1,
}

// Assignment は --set Field=value の1件
type Assignment struct {
	Field string
	Value float64
}

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	Command  string   // サブコマンド
	Args     []string // 位置引数
	LogLevel string   // ログレベル（debug, info, warn, error）
	ShowHelp bool     // ヘルプ表示フラグ

	// compile / pack / watch
	Output      string            // 出力ファイル（空なら標準出力）
	Listing     bool              // 命令リストを表示
	DumpAST     bool              // ASTを表示
	DumpIC      bool              // 中間コードを表示
	DumpSymbols bool              // シンボルテーブルを表示
	Defines     map[string]string // -D NAME=VALUE
	Encoding    string            // ソースの文字コード（空なら自動判定）

	// run
	Ticks     int          // 実行するティック数
	Set       []Assignment // 初期レポート値
	StepLimit int          // 1ティックあたりの最大命令数
}

type defineFlag map[string]string

func (d defineFlag) String() string { return fmt.Sprint(map[string]string(d)) }

func (d defineFlag) Set(s string) error {
	name, value, _ := strings.Cut(s, "=")
	if name == "" {
		return errors.New("empty macro name")
	}
	d[name] = value
	return nil
}

type setFlag struct{ list *[]Assignment }

func (s setFlag) String() string { return "" }

func (s setFlag) Set(v string) error {
	field, value, ok := strings.Cut(v, "=")
	if !ok || field == "" {
		return fmt.Errorf("expected Field=value, got %q", v)
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", field, err)
	}
	*s.list = append(*s.list, Assignment{Field: field, Value: f})
	return nil
}

var boolFlags = []string{"h", "help", "listing", "dump-ast", "dump-ic", "dump-symbols"}

// ParseArgs コマンドライン引数を解析してConfigを返す
// 最初の引数はサブコマンド
func ParseArgs(args []string) (*Config, error) {
	config := &Config{Defines: make(map[string]string)}

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		config.Command = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("padscript", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")
	fs.StringVar(&config.Output, "output", "", "出力ファイル")
	fs.StringVar(&config.Output, "o", "", "出力ファイル（短縮形）")
	fs.BoolVar(&config.Listing, "listing", false, "命令リストを表示")
	fs.BoolVar(&config.DumpAST, "dump-ast", false, "ASTを表示")
	fs.BoolVar(&config.DumpIC, "dump-ic", false, "中間コードを表示")
	fs.BoolVar(&config.DumpSymbols, "dump-symbols", false, "シンボルテーブルを表示")
	fs.Var(defineFlag(config.Defines), "D", "マクロ定義 NAME=VALUE")
	fs.StringVar(&config.Encoding, "encoding", "", "ソースの文字コード")
	fs.IntVar(&config.Ticks, "ticks", 1, "実行するティック数")
	fs.Var(setFlag{&config.Set}, "set", "レポートの初期値 Field=value")
	fs.IntVar(&config.StepLimit, "step-limit", vm.DefaultStepLimit, "1ティックあたりの最大命令数")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return nil, err
	}
	config.Args = fs.Args()

	// 環境変数からの設定（コマンドラインフラグが優先）
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["log-level"] && !set["l"] {
		config.LogLevel = strings.ToLower(env.Str("LOG_LEVEL", config.LogLevel))
	}
	if !set["ticks"] {
		config.Ticks = env.Int("PADSCRIPT_TICKS", config.Ticks)
	}
	if !set["encoding"] {
		config.Encoding = env.Str("PADSCRIPT_ENCODING", config.Encoding)
	}
	if !set["step-limit"] {
		config.StepLimit = env.Int("PADSCRIPT_STEP_LIMIT", config.StepLimit)
	}

	if config.ShowHelp {
		return config, nil
	}

	if _, err := logger.ParseLevel(config.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}
	if config.Ticks < 0 {
		return nil, fmt.Errorf("ticks must be non-negative, got %d", config.Ticks)
	}
	if config.StepLimit < 0 {
		return nil, fmt.Errorf("step limit must be non-negative, got %d", config.StepLimit)
	}

	if config.Command == "" {
		return nil, errors.New("no command given")
	}
	want, ok := Commands[config.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", config.Command)
	}
	if len(config.Args) != want {
		return nil, fmt.Errorf("%s takes %d argument(s), got %d", config.Command, want, len(config.Args))
	}

	return config, nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			// -D NAME=VALUE のように値が次の引数にある場合
			name := strings.TrimLeft(arg, "-")
			if !strings.Contains(name, "=") && !slices.Contains(boolFlags, name) && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置（"--" で区切る）
	return append(append(flags, "--"), positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp(w io.Writer) {
	fmt.Fprint(w, `padscript - controller action compiler and VM

Usage:
  padscript <command> [options] <argument>

Commands:
  compile <file>       アクションをバイトコードにコンパイル
  disasm <file>        アクションまたはイメージを逆アセンブル
  run <file>           アクション（ソース、バイトコード、イメージ）を実行
  pack <manifest>      マニフェストの全アクションをイメージにまとめる
  unpack <image>       イメージの内容を一覧表示
  test <dir>           ディレクトリ内の適合性テスト（*.yaml）を実行
  watch <file>         ファイルの変更を監視して再コンパイル

Options:
  -o, --output <file>         出力ファイル（デフォルト: 標準出力）
  --listing                   命令リストを表示
  --dump-ast                  ASTを表示
  --dump-ic                   中間コードを表示
  --dump-symbols              シンボルテーブルを表示
  -D NAME[=VALUE]             マクロを定義（複数指定可）
  --encoding <name>           ソースの文字コード（例: shift_jis, windows-1252）
  --ticks <n>                 実行するティック数（デフォルト: 1）
  --set Field=value           レポートの初期値（複数指定可）
  --step-limit <n>            1ティックあたりの最大命令数（0は無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  -h, --help                  このヘルプを表示

Environment Variables:
  LOG_LEVEL=<level>           ログレベル
  PADSCRIPT_TICKS=<n>         ティック数
  PADSCRIPT_ENCODING=<name>   ソースの文字コード
  PADSCRIPT_STEP_LIMIT=<n>    1ティックあたりの最大命令数

Examples:
  padscript compile turbo.pad -o turbo.bin
  padscript compile turbo.pad --listing -D TURBO=3
  padscript run turbo.pad --ticks 10 --set Cross=1
  padscript pack padscript.yaml -o workspace.img
  padscript test testdata
`)
}
