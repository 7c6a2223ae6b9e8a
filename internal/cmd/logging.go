package cmd

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var logger *slog.Logger

// render.jpeg_quality is read from STATICMAP_RENDER_JPEG_QUALITY.
var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// initLogging installs the process logger. Logs go to stderr so stdout can
// carry an image.
func initLogging() {
	logger = newLogger(os.Stderr, viper.GetString("log-format"), viper.GetBool("verbose"))
	slog.SetDefault(logger)
}

func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
