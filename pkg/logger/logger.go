package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var globalLogger *slog.Logger

// ParseLevel ログレベル名をslog.Levelに変換
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", level)
}

// InitLogger ログレベルに応じてslogを初期化。出力先は標準エラー
// (標準出力はバイトコードや逆アセンブル結果に使う)
func InitLogger(level string) error {
	return InitLoggerWithWriter(os.Stderr, level)
}

// InitLoggerWithWriter 出力先を指定してslogを初期化
func InitLoggerWithWriter(w io.Writer, level string) error {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slogLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return nil
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		// デフォルトロガーを返す
		return slog.Default()
	}
	return globalLogger
}
