package wasmhost

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// guestLog bridges guest log lines into the host logger. The level encoding
// matches zapcore: -1 debug, 0 info, 1 warn, 2 error. Levels outside that
// range clamp rather than fail; logging must never abort a run.
func (b *boundary) guestLog(ctx context.Context, mem guestMemory, stack []uint64) {
	level := zapcore.Level(int8(uint32(stack[0])))
	if level < zapcore.DebugLevel || level > zapcore.ErrorLevel {
		level = zapcore.InfoLevel
	}

	msg, ok := mem.Read(uint32(stack[1]), uint32(stack[2]))
	if !ok {
		panic("out of memory range reading log message") // Bug: caller passed a length outside memory
	}

	if ce := b.log.Check(level, string(msg)); ce != nil {
		ce.Write(zap.String("source", "guest"))
	}
}
