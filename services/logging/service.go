// Package logging renders log events to the local log file or console.
// It is the writer-side diag handler; live streaming to operators lives
// in services/adminlog.
package logging

import (
	"io"
	"os"
	"path"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/logtap/logtap/diag"
)

type Service struct {
	c      Config
	stdout zapcore.WriteSyncer
	stderr zapcore.WriteSyncer
	closer io.Closer

	level zap.AtomicLevel
	root  *zap.Logger
}

func NewService(c Config, stdout, stderr zapcore.WriteSyncer) *Service {
	return &Service{
		c:      c,
		stdout: stdout,
		stderr: stderr,
		level:  zap.NewAtomicLevel(),
	}
}

func (s *Service) Open() error {
	var output zapcore.WriteSyncer
	switch s.c.File {
	case "STDERR":
		output = s.stderr
	case "STDOUT":
		output = s.stdout
	default:
		dir := path.Dir(s.c.File)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}

		f, err := os.OpenFile(s.c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return err
		}
		output = f
		s.closer = f
	}

	if err := s.SetLevel(s.c.Level); err != nil {
		return err
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	switch s.c.Encoding {
	case "console":
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(cfg)
	default:
		return errors.Errorf("unknown log encoding %s", s.c.Encoding)
	}

	s.root = zap.New(zapcore.NewCore(encoder, output, s.level))

	return nil
}

func (s *Service) Close() error {
	if s.root != nil {
		s.root.Sync()
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// SetLevel changes the minimum severity written to the local output.
func (s *Service) SetLevel(level string) error {
	lvl, err := diag.LevelFromName(level)
	if err != nil {
		return err
	}
	s.level.SetLevel(zapLevel(lvl))
	return nil
}

// Log implements diag.Handler. Events arriving before Open are dropped.
func (s *Service) Log(e diag.Event) {
	if s.root == nil {
		return
	}
	lvl := zapLevel(e.Level)
	if !s.level.Enabled(lvl) {
		return
	}
	if ce := s.root.Check(lvl, e.Message()); ce != nil {
		ce.Write(zap.String("file", e.File), zap.Int("line", e.Line))
	}
}

// zapLevel maps a diag level onto zap's scale. CRITICAL maps to DPanic,
// the most severe zap level that does not terminate the process.
func zapLevel(l diag.Level) zapcore.Level {
	switch l {
	case diag.Debug:
		return zapcore.DebugLevel
	case diag.Info:
		return zapcore.InfoLevel
	case diag.Warn:
		return zapcore.WarnLevel
	case diag.Error:
		return zapcore.ErrorLevel
	case diag.Critical:
		return zapcore.DPanicLevel
	}
	return zapcore.InfoLevel
}
