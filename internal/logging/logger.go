package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logrus instance.
var Logger = logrus.New()

var once sync.Once

// CustomFormatter renders entries as a single line with an event id per entry.
type CustomFormatter struct {
	SystemName string
}

func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	ts := entry.Time
	fmt.Fprintf(b, "Date: %s, Time: %s, ", ts.Format("2006-01-02"), ts.Format("15:04:05"))
	fmt.Fprintf(b, "Event Source: %s, ", f.SystemName)
	fmt.Fprintf(b, "Event Type: %s, ", strings.ToUpper(entry.Level.String()))
	fmt.Fprintf(b, "Event ID: %s, ", uuid.New().String())
	fmt.Fprintf(b, "Message: %s", entry.Message)

	for key, value := range entry.Data {
		fmt.Fprintf(b, ", %s=%v", key, value)
	}

	if entry.HasCaller() {
		fmt.Fprintf(b, ", Location: %s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Options control where and how much the logger writes.
type Options struct {
	File  string
	Level string
}

// InitLogger configures the global logger once. An empty File keeps output on stdout.
func InitLogger(opts Options) {
	once.Do(func() {
		var out io.Writer = os.Stdout
		if opts.File != "" {
			if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
				logrus.Fatalf("Event ID: LOG_DIR_CREATE_FAILED, Description: Failed to create log directory: %v", err)
			}
			out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			})
		}

		Logger.SetOutput(out)
		Logger.SetFormatter(&CustomFormatter{SystemName: "task-calendar"})
		Logger.SetLevel(parseLevel(opts.Level))
		Logger.SetReportCaller(true)

		Logger.Infof("Event ID: LOGGER_INITIALIZED, Description: Logger initialized, file: %q", opts.File)
	})
}

func parseLevel(raw string) logrus.Level {
	if raw == "" {
		return logrus.InfoLevel
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
