package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a logger with a console sink at level writing to w.
// When file is set, a second JSON sink receives records at fileLevel and
// above. The returned close function releases the file.
func NewLogger(w io.Writer, level, file, fileLevel string) (*logrus.Logger, func() error, error) {
	consoleLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetOutput(w)
	log.SetLevel(consoleLevel)

	closeFn := func() error { return nil }
	if file == "" {
		return log, closeFn, nil
	}

	lvl, err := logrus.ParseLevel(fileLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("log file level: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	// Sinks become hooks so each keeps its own level; the logger itself
	// runs at the finer of the two.
	log.SetOutput(io.Discard)
	log.SetLevel(max(consoleLevel, lvl))
	log.AddHook(&sinkHook{
		w:         w,
		max:       consoleLevel,
		formatter: &logrus.TextFormatter{DisableTimestamp: true},
	})
	log.AddHook(&sinkHook{
		w:         f,
		max:       lvl,
		formatter: &logrus.JSONFormatter{},
	})

	return log, f.Close, nil
}

// sinkHook writes every record at or above max to w
type sinkHook struct {
	w         io.Writer
	max       logrus.Level
	formatter logrus.Formatter
}

func (h *sinkHook) Levels() []logrus.Level {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= h.max {
			levels = append(levels, l)
		}
	}
	return levels
}

func (h *sinkHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(b)
	return err
}
