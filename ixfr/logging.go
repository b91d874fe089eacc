package ixfr

import (
	"log"
	"os"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging builds a logger the way the host server's SetupLogging
// does: plain stderr when no file is configured, a rotating lumberjack
// sink otherwise. Engine components log through the logger handed to
// them; NewEngine falls back to log.Default() when given nil.
func SetupLogging(logfile string) *log.Logger {
	if logfile == "" {
		return log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
	}
	return log.New(&lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	}, "", log.Ldate|log.Ltime|log.Lshortfile)
}
