// Package logging builds the service's zap logger and request log middleware.
package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	logfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSize    = 50 // MB
	defaultMaxAge     = 30 // days
	defaultMaxBackups = 3
)

type Options struct {
	Level  string
	Format string // "logfmt" or "json"
	// File enables a rotated JSON file sink in addition to stdout.
	File string
}

func toLevel(lvl string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(lvl)); err != nil {
		return level, fmt.Errorf("unsupported log level %q", lvl)
	}
	return level, nil
}

func encoderConfig() zapcore.EncoderConfig {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderCfg
}

// New builds a logger writing to stdout, teed to a rotated file when
// opts.File is set.
func New(opts Options) (*zap.Logger, error) {
	return newLogger(opts, os.Stdout)
}

func newLogger(opts Options, stdout io.Writer) (*zap.Logger, error) {
	if opts.Level == "" {
		opts.Level = "info"
	}
	level, err := toLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	atom := zap.NewAtomicLevelAt(level)
	encoderCfg := encoderConfig()

	var encoder zapcore.Encoder
	switch opts.Format {
	case "", "logfmt":
		encoder = logfmt.NewEncoder(encoderCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(stdout)), atom),
	}

	if opts.File != "" {
		fw := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    defaultMaxSize,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAge,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fw, atom))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Middleware logs one line per request. It expects chi's RequestID
// middleware to run first.
func Middleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			latency := time.Since(start)
			fields := []zapcore.Field{
				zap.Int("status", ww.Status()),
				zap.Duration("took", latency),
				zap.String("remote", r.RemoteAddr),
				zap.String("request", r.RequestURI),
				zap.String("method", r.Method),
			}
			if requestID := middleware.GetReqID(r.Context()); requestID != "" {
				fields = append(fields, zap.String("request-id", requestID))
			}
			logger.Info("request completed", fields...)
		}
		return http.HandlerFunc(fn)
	}
}
