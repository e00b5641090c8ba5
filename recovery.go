package websock

import (
	"io"
	"log"
	"os"
	"runtime"
	"unsafe"
)

// LogLevel 日志级别, 数值越大输出越多
// Log verbosity. Higher levels print more.
type LogLevel uint8

const (
	LevelError LogLevel = iota
	LevelInfo
	LevelDebug
)

type Logger interface {
	Error(v ...any)
	Info(v ...any)
	Debug(v ...any)
}

var defaultLogger Logger = &stdLogger{level: LevelError, l: log.Default()}

type stdLogger struct {
	level LogLevel
	l     *log.Logger
}

// NewLogger 创建日志工具. filename 为空时输出到标准错误, 否则追加写入文件
// Creates a logger. It writes to stderr when filename is empty, otherwise appends to the file.
func NewLogger(level LogLevel, filename string) (Logger, error) {
	var w io.Writer = os.Stderr
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		w = f
	}
	return &stdLogger{level: level, l: log.New(w, "", log.LstdFlags)}, nil
}

func (c *stdLogger) output(level LogLevel, prefix string, v []any) {
	if level > c.level {
		return
	}
	c.l.Println(append([]any{prefix}, v...)...)
}

func (c *stdLogger) Error(v ...any) { c.output(LevelError, "[ERROR]", v) }

func (c *stdLogger) Info(v ...any) { c.output(LevelInfo, "[INFO]", v) }

func (c *stdLogger) Debug(v ...any) { c.output(LevelDebug, "[DEBUG]", v) }

// Recovery 打印 panic 的堆栈信息
// Logs the recovered value together with the stack of the panicking goroutine
func Recovery(logger Logger, e any) {
	const size = 64 << 10
	buf := make([]byte, size)
	buf = buf[:runtime.Stack(buf, false)]
	msg := *(*string)(unsafe.Pointer(&buf))
	logger.Error("fatal error:", e, msg)
}
