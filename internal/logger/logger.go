// Package logger builds the process logger: zap JSON to stdout, or to a
// lumberjack-rotated file under LOG_DIR when one is configured.
package logger

import (
    "os"
    "path/filepath"

    "github.com/natefinch/lumberjack"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// New returns a *zap.SugaredLogger at the given level ("debug", "info",
// "warn", "error"; unknown names fall back to info).  With a non-empty dir
// the JSON stream goes to <dir>/server.log with rotation and a copy is
// written to stdout.  The logger is installed as the process-wide default
// via zap.ReplaceGlobals.
func New(dir, level string) (*zap.SugaredLogger, error) {
    lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
    if err := lvl.UnmarshalText([]byte(level)); err != nil {
        lvl.SetLevel(zap.InfoLevel)
    }

    encCfg := zapcore.EncoderConfig{
        TimeKey:      "ts",
        LevelKey:     "level",
        MessageKey:   "msg",
        CallerKey:    "caller",
        EncodeTime:   zapcore.ISO8601TimeEncoder,
        EncodeLevel:  zapcore.LowercaseLevelEncoder,
        EncodeCaller: zapcore.ShortCallerEncoder,
    }
    enc := zapcore.NewJSONEncoder(encCfg)

    cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), lvl)}
    errOut := zapcore.AddSync(os.Stderr)

    if dir != "" {
        if err := os.MkdirAll(dir, 0o755); err != nil {
            return nil, err
        }
        fileSink := zapcore.AddSync(&lumberjack.Logger{
            Filename:   filepath.Join(dir, "server.log"),
            MaxSize:    50, // MB
            MaxBackups: 7,
            MaxAge:     14, // days
            Compress:   true,
        })
        cores = append(cores, zapcore.NewCore(enc, fileSink, lvl))
        errOut = fileSink
    }

    z := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.ErrorOutput(errOut)).Sugar()
    zap.ReplaceGlobals(z.Desugar())
    z.Infow("logger online", "dir", dir, "level", lvl.String())
    return z, nil
}
