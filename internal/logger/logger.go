package logger

import (
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once   sync.Once
	logger = zap.NewNop()

	// Log is the shared sugared logger. It is a no-op until Init runs.
	Log = logger.Sugar()
)

var (
	AppName = "IacAnalyticsService"
	Env     = "production"
	LogPath = "logs/app.log"
	Level   = zapcore.DebugLevel
)

// Init builds the console + rotating file logger. Safe to call more than once.
func Init() error {
	once.Do(func() {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "timestamp"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderCfg.CallerKey = "caller"
		encoderCfg.LevelKey = "level"
		encoderCfg.MessageKey = "message"

		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

		fileCfg := encoderCfg
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   LogPath,
			MaxSize:    50,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		})

		core := zapcore.NewTee(
			zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stdout), Level),
			zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), fileWriter, Level),
		)

		logger = zap.New(core,
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
			zap.Fields(
				zap.String("app", AppName),
				zap.String("env", Env),
			),
		)
		Log = logger.Sugar()
	})
	return nil
}

// Sync flushes buffered entries; errors from syncing stdout are ignored.
func Sync() {
	_ = logger.Sync()
}

func Trace(fn string, start time.Time) {
	Log.Debugf("%s executed in %d ms", fn, time.Since(start).Milliseconds())
}

func TraceAuto() func() {
	start := time.Now()
	pc, _, _, ok := runtime.Caller(1)
	funcName := "unknown"
	if ok {
		funcName = trimPackagePath(runtime.FuncForPC(pc).Name())
	}
	Log.Debugw("function start", "function", funcName, "start", start.Format(time.RFC3339Nano))
	return func() {
		Log.Debugw("function end", "function", funcName, "duration", time.Since(start).String())
	}
}

func trimPackagePath(fullName string) string {
	if idx := strings.LastIndex(fullName, "/"); idx != -1 {
		fullName = fullName[idx+1:]
	}
	if idx := strings.Index(fullName, "."); idx != -1 {
		return fullName[idx+1:]
	}
	return fullName
}
