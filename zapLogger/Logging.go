package zapLogger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bohemiyan/supportdesk/internal/auth"
	"github.com/gofiber/fiber/v2"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once sync.Once
	Log  *zap.SugaredLogger = zap.NewNop().Sugar()
)

// New builds a console logger at level. When logFile is set, entries are
// also appended to it; the returned close func releases the file.
func New(level, logFile string) (*zap.SugaredLogger, func() error, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	closeFn := func() error { return nil }
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open log file: %w", err)
		}
		writers = append(writers, zapcore.AddSync(f))
		closeFn = f.Close
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.NewMultiWriteSyncer(writers...),
		lvl,
	)
	return zap.New(core, zap.AddCaller()).Sugar(), closeFn, nil
}

// Init sets the package logger once. Later calls return the same logger.
func Init(level, logFile string) (*zap.SugaredLogger, func() error, error) {
	closeFn := func() error { return nil }
	var err error
	once.Do(func() {
		var l *zap.SugaredLogger
		l, closeFn, err = New(level, logFile)
		if err == nil {
			Log = l
		}
	})
	return Log, closeFn, err
}

// FiberLoggingMiddleware logs one line per request with the caller, status
// and latency. Handler errors are rendered by the app's error handler first
// so the logged status is the one sent.
func FiberLoggingMiddleware(log *zap.SugaredLogger) fiber.Handler {
	if log == nil {
		log = Log
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()
		fields := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
			"actor_id", auth.ActorID(c),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Errorw("request", fields...)
		case status >= fiber.StatusBadRequest:
			log.Warnw("request", fields...)
		default:
			log.Infow("request", fields...)
		}
		return nil
	}
}
