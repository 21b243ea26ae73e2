package logger

import (
	"io"
	"log"
	"os"
	"strings"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

const logFlags = log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

func init() {
	Setup("info", os.Stdout)
}

// Setup rebuilds the loggers on w. Debug output is discarded unless level is
// "debug".
func Setup(level string, w io.Writer) {
	Info = log.New(w, "INFO: ", logFlags)
	Error = log.New(w, "ERROR: ", logFlags)
	Warn = log.New(w, "WARN: ", logFlags)

	debugOut := io.Discard
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		debugOut = w
	}
	Debug = log.New(debugOut, "DEBUG: ", logFlags)
}
