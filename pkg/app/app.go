package app

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/zurustar/padscript/pkg/bytecode"
	"github.com/zurustar/padscript/pkg/cli"
	"github.com/zurustar/padscript/pkg/compiler"
	"github.com/zurustar/padscript/pkg/compiler/ast"
	"github.com/zurustar/padscript/pkg/compiler/ic"
	"github.com/zurustar/padscript/pkg/conformance"
	"github.com/zurustar/padscript/pkg/fileutil"
	"github.com/zurustar/padscript/pkg/host"
	"github.com/zurustar/padscript/pkg/logger"
	"github.com/zurustar/padscript/pkg/vm"
	"github.com/zurustar/padscript/pkg/watch"
	"github.com/zurustar/padscript/pkg/workspace"
)

// ErrTestsFailed はテストが1件以上失敗したときに返される
var ErrTestsFailed = errors.New("conformance tests failed")

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config *cli.Config
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// New Applicationを作成
func New() *Application {
	return NewWithWriters(os.Stdout, os.Stderr)
}

// NewWithWriters 出力先を指定してApplicationを作成
func NewWithWriters(stdout, stderr io.Writer) *Application {
	return &Application{stdout: stdout, stderr: stderr}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	return app.RunContext(context.Background(), args)
}

// RunContext ctxが終了するとwatchコマンドも終了する
func (app *Application) RunContext(ctx context.Context, args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp(app.stdout)
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Debug("Application started", "command", app.config.Command, "args", app.config.Args)

	// 3. サブコマンドの実行
	arg := app.config.Args[0]
	switch app.config.Command {
	case "compile":
		return app.compile(arg)
	case "disasm":
		return app.disasm(arg)
	case "run":
		return app.run(arg)
	case "pack":
		return app.pack(arg)
	case "unpack":
		return app.unpack(arg)
	case "test":
		return app.test(arg)
	case "watch":
		return app.watch(ctx, arg)
	}
	return fmt.Errorf("unknown command %q", app.config.Command)
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLoggerWithWriter(app.stderr, app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

func (app *Application) compileOptions() []compiler.Option {
	return []compiler.Option{
		compiler.WithDefines(app.config.Defines),
		compiler.WithEncoding(app.config.Encoding),
		compiler.WithLogger(app.log),
	}
}

// compileSource ソースをコンパイルし、警告とエラーを標準エラーに出力する
func (app *Application) compileSource(path string) (*compiler.Artifacts, error) {
	art, warnings, err := compiler.CompileFile(path, app.compileOptions()...)
	for _, w := range warnings {
		fmt.Fprintf(app.stderr, "%s: %s\n", path, w.Error())
	}
	if err != nil {
		var ge *compiler.BytecodeGenError
		if !errors.As(err, &ge) {
			return nil, err
		}
		for _, ce := range ge.Errors {
			fmt.Fprintf(app.stderr, "%s: %s\n", path, ce.Error())
		}
		return nil, fmt.Errorf("%s: %d error(s)", path, len(ge.Errors))
	}
	app.log.Info("Compiled", "file", path, "bytes", len(art.Bytes), "stack", art.StackSize, "warnings", len(warnings))
	return art, nil
}

// compile アクションをコンパイルし、ダンプまたはバイトコードを出力する
func (app *Application) compile(path string) error {
	art, err := app.compileSource(path)
	if err != nil {
		return err
	}

	dumped := app.dump(art)
	if app.config.Output != "" {
		if err := os.WriteFile(app.config.Output, art.Bytes, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", app.config.Output, err)
		}
		app.log.Info("Bytecode written", "file", app.config.Output, "bytes", len(art.Bytes))
		return nil
	}
	if !dumped {
		return bytecode.Disassemble(app.stdout, art.Bytes)
	}
	return nil
}

// dump 指定されたダンプを出力し、何か出力したかを返す
func (app *Application) dump(art *compiler.Artifacts) bool {
	cfg := app.config
	if cfg.DumpAST {
		fmt.Fprintln(app.stdout, "; AST")
		ast.Dump(app.stdout, art.Unit.Root)
	}
	if cfg.DumpSymbols {
		fmt.Fprintln(app.stdout, "; symbols")
		art.Unit.Tables.Dump(app.stdout)
	}
	if cfg.DumpIC {
		fmt.Fprintln(app.stdout, "; intermediate code")
		fmt.Fprint(app.stdout, ic.Listing(art.IC))
	}
	if cfg.Listing {
		fmt.Fprintf(app.stdout, "; instructions, stack size %d\n", art.StackSize)
		fmt.Fprint(app.stdout, bytecode.Listing(art.Instructions))
	}
	return cfg.DumpAST || cfg.DumpSymbols || cfg.DumpIC || cfg.Listing
}

func isImage(data []byte) bool {
	return len(data) >= 2 && binary.LittleEndian.Uint16(data) == workspace.Magic
}

// disasm アクションまたはイメージを逆アセンブル
func (app *Application) disasm(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !isImage(data) {
		return bytecode.Disassemble(app.stdout, data)
	}

	img, err := workspace.DecodeImage(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for i, c := range img.Configurations {
		for j, a := range c.Actions {
			fmt.Fprintf(app.stdout, "; configuration %d, action %d\n", i+1, j+1)
			if err := bytecode.Disassemble(app.stdout, a.Bytecode); err != nil {
				return fmt.Errorf("configuration %d, action %d: %w", i+1, j+1, err)
			}
		}
	}
	return nil
}

// loadImage ファイルの種類（イメージ、バイトコード、ソース）を判定してイメージにする
func (app *Application) loadImage(path string) (*workspace.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if isImage(data) {
		return workspace.DecodeImage(data)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	code := data
	if !strings.EqualFold(filepath.Ext(path), ".bin") {
		art, err := app.compileSource(path)
		if err != nil {
			return nil, err
		}
		code = art.Bytes
	}
	return &workspace.Image{Configurations: []workspace.Configuration{{
		Name:    name,
		Actions: []workspace.Action{{Name: name, Bytecode: code}},
	}}}, nil
}

// run アクションを指定ティック数だけ実行し、毎ティックのレポートを出力する
func (app *Application) run(path string) error {
	img, err := app.loadImage(path)
	if err != nil {
		return err
	}
	h, err := host.FromImage(img,
		host.WithLogger(app.log),
		host.WithVMOptions(vm.WithStepLimit(app.config.StepLimit)))
	if err != nil {
		return err
	}

	r := vm.NewReport()
	for _, a := range app.config.Set {
		if err := r.SetField(a.Field, a.Value); err != nil {
			return err
		}
	}

	// 致命的エラーになったアクションはスキップされるので、最後まで実行する
	var first error
	for tick := 1; tick <= app.config.Ticks; tick++ {
		if err := h.Tick(r); err != nil && first == nil {
			first = fmt.Errorf("tick %d: %w", tick, err)
		}
		fmt.Fprintf(app.stdout, "%d\t%s\n", tick, r.String())
	}
	return first
}

// printBuildErrors ビルドエラーをアクション単位で出力する
func (app *Application) printBuildErrors(err error) {
	errs := []error{err}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		var ae *workspace.ActionError
		if errors.As(e, &ae) {
			if diags := ae.Diagnostics(); len(diags) > 0 {
				for _, d := range diags {
					fmt.Fprintln(app.stderr, d.String())
				}
				continue
			}
		}
		fmt.Fprintln(app.stderr, e)
	}
}

// build マニフェストを読み込んで全アクションをコンパイルする
func (app *Application) build(path string) (*workspace.Manifest, *workspace.Image, error) {
	fsys := os.DirFS(filepath.Dir(path))
	m, err := workspace.ReadManifest(fsys, filepath.Base(path))
	if err != nil {
		return nil, nil, err
	}
	img, warnings, err := workspace.Build(m, fsys, app.compileOptions()...)
	for _, w := range warnings {
		fmt.Fprintln(app.stderr, w.String())
	}
	if err != nil {
		app.printBuildErrors(err)
		return m, nil, fmt.Errorf("failed to build %s", path)
	}
	return m, img, nil
}

// pack マニフェストからイメージを作成
func (app *Application) pack(path string) error {
	_, img, err := app.build(path)
	if err != nil {
		return err
	}
	data, err := img.Encode()
	if err != nil {
		return err
	}
	if app.config.Output == "" {
		_, err = app.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(app.config.Output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", app.config.Output, err)
	}
	app.log.Info("Image written", "file", app.config.Output, "bytes", len(data))
	return nil
}

// unpack イメージの内容を一覧表示
func (app *Application) unpack(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	img, err := workspace.DecodeImage(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(app.stdout, "%s: %d bytes, %d configuration(s)\n", path, len(data), len(img.Configurations))
	for i, c := range img.Configurations {
		fmt.Fprintf(app.stdout, "configuration %d: %d action(s)\n", i+1, len(c.Actions))
		for j, a := range c.Actions {
			stack, err := a.StackSize()
			if err != nil {
				return fmt.Errorf("configuration %d, action %d: %w", i+1, j+1, err)
			}
			fmt.Fprintf(app.stdout, "  action %d: %d bytes, stack %d\n", j+1, len(a.Bytecode), stack)
		}
	}
	return nil
}

// test ディレクトリ内の適合性テストを実行
func (app *Application) test(dir string) error {
	suites, err := conformance.LoadSuites(os.DirFS(dir))
	if err != nil {
		return err
	}

	passed, failed := 0, 0
	for _, s := range suites {
		for _, res := range s.Run(app.compileOptions()...) {
			fmt.Fprintln(app.stdout, res.String())
			if res.Passed() {
				passed++
			} else {
				failed++
			}
		}
	}
	fmt.Fprintf(app.stdout, "%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrTestsFailed, failed, passed+failed)
	}
	return nil
}

func isManifest(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// rebuild 変更されたファイルを再コンパイルする。マニフェストならイメージを作り直す
func (app *Application) rebuild(path string) {
	var err error
	if isManifest(path) {
		err = app.pack(path)
	} else {
		err = app.compile(path)
	}
	if err != nil {
		app.log.Error("Rebuild failed", "file", path, "error", err)
	}
}

// watchedFiles マニフェストなら参照しているアクションファイルも返す
func watchedFiles(path string, m *workspace.Manifest) []string {
	files := []string{path}
	if m == nil {
		return files
	}
	dir := filepath.Dir(path)
	fsys := os.DirFS(dir)
	for _, c := range m.Configurations {
		for _, a := range c.Actions {
			if a.File == "" {
				continue
			}
			if p, err := fileutil.Resolve(fsys, a.File); err == nil {
				files = append(files, filepath.Join(dir, filepath.FromSlash(p)))
			}
		}
	}
	return files
}

// watch ファイルの変更を監視して再コンパイル
func (app *Application) watch(ctx context.Context, path string) error {
	var m *workspace.Manifest
	if isManifest(path) {
		var err error
		m, err = workspace.ReadManifest(os.DirFS(filepath.Dir(path)), filepath.Base(path))
		if err != nil {
			return err
		}
	}
	app.rebuild(path)

	w, err := watch.New(func(string) { app.rebuild(path) }, watch.WithLogger(app.log))
	if err != nil {
		return err
	}
	defer w.Close()

	for _, f := range watchedFiles(path, m) {
		if err := w.Add(f); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.log.Info("Watching for changes", "file", path)
	return w.Run(ctx)
}
