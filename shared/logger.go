package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	wd, err := os.Getwd()
	if err != nil {
		wd = ""
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
		FormatCaller: func(i interface{}) string {
			path, ok := i.(string)
			if !ok {
				return ""
			}
			relPath, err := filepath.Rel(wd, path)
			if err != nil {
				relPath = path
			}
			return fmt.Sprintf("[%s]", relPath)
		},
		NoColor: false,
	}
	log.Logger = zerolog.New(consoleWriter).
		Level(logLevelFromEnv()).
		With().
		Timestamp().
		Caller().
		Logger()
}

func logLevelFromEnv() zerolog.Level {
	switch strings.ToLower(os.Getenv("OPSCHAT_LOG_LEVEL")) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
