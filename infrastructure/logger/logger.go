package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 封装zap日志器，文件输出走缓冲写入，热路径不等待磁盘
type Logger struct {
	*zap.Logger
	config  Config
	level   zap.AtomicLevel
	buffers []*zapcore.BufferedWriteSyncer
	files   []*os.File
}

// Config 日志配置
type Config struct {
	Level         string   `yaml:"level"`         // debug, info, warn, error
	Outputs       []string `yaml:"outputs"`       // stdout, file
	OutputFile    string   `yaml:"outputFile"`    // 日志文件路径
	ErrorFile     string   `yaml:"errorFile"`     // 错误日志单独文件
	Format        string   `yaml:"format"`        // json 或 console
	BufferKB      int      `yaml:"bufferKB"`      // 文件缓冲大小
	FlushInterval int      `yaml:"flushInterval"` // 文件刷盘间隔（毫秒）
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		Outputs:       []string{"stdout"},
		Format:        "json",
		BufferKB:      256,
		FlushInterval: 1000,
	}
}

// New 创建新的Logger实例
func New(cfg Config) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	atom := zap.NewAtomicLevelAt(lvl)

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	l := &Logger{config: cfg, level: atom}
	cores := []zapcore.Core{}

	if contains(cfg.Outputs, "stdout") {
		var encoder zapcore.Encoder
		if cfg.Format == "console" {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), atom))
	}

	if contains(cfg.Outputs, "file") && cfg.OutputFile != "" {
		ws, err := l.openBuffered(cfg.OutputFile)
		if err != nil {
			return nil, fmt.Errorf("open log file failed: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), ws, atom))
	}

	// 错误日志单独文件
	if cfg.ErrorFile != "" {
		ws, err := l.openBuffered(cfg.ErrorFile)
		if err != nil {
			return nil, fmt.Errorf("open error log file failed: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), ws, zapcore.ErrorLevel))
	}

	l.Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return l, nil
}

func (l *Logger) openBuffered(path string) (zapcore.WriteSyncer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	size := l.config.BufferKB * 1024
	interval := time.Duration(l.config.FlushInterval) * time.Millisecond
	ws := &zapcore.BufferedWriteSyncer{
		WS:            zapcore.AddSync(f),
		Size:          size,
		FlushInterval: interval,
	}
	l.buffers = append(l.buffers, ws)
	l.files = append(l.files, f)
	return ws, nil
}

// SetLevel 运行时调整日志级别（配置热更新使用）
func (l *Logger) SetLevel(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", level, err)
	}
	l.level.SetLevel(lvl)
	return nil
}

// Level 当前日志级别
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// LogOrder 记录订单相关事件
func (l *Logger) LogOrder(event string, clientID string, fields map[string]interface{}) {
	zapFields := make([]zap.Field, 0, len(fields)+2)
	zapFields = append(zapFields, zap.String("event", event), zap.String("client_id", clientID))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	l.Info("order_event", zapFields...)
}

// LogError 记录错误并附带上下文
func (l *Logger) LogError(err error, context map[string]interface{}) {
	zapFields := make([]zap.Field, 0, len(context)+1)
	zapFields = append(zapFields, zap.Error(err))
	for k, v := range context {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	l.Error("error_event", zapFields...)
}

// Close 刷新缓冲并关闭文件
func (l *Logger) Close() error {
	_ = l.Sync()
	var lastErr error
	for _, b := range l.buffers {
		if err := b.Stop(); err != nil {
			lastErr = err
		}
	}
	for _, f := range l.files {
		if err := f.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
