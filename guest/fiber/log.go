package fiber

import "unsafe"

// Level selects the host log level for a guest message. The numbering
// matches the host logger: -1 debug through 2 error.
type Level int32

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

// Log sends msg to the host logger at the given level. Out-of-range levels
// are logged at info by the host rather than rejected.
func Log(level Level, msg string) {
	if len(msg) == 0 {
		fiberLog(uint32(level), nil, 0)
		return
	}
	fiberLog(uint32(level), unsafe.Pointer(unsafe.StringData(msg)), uint32(len(msg)))
}
