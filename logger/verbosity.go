package logger

import "go.uber.org/zap/zapcore"

// Verbosity flag counts from the CLI (-v, -vv, ...). Levels gate output
// categories, not just log severity; see output.go.
const (
	VerbosityUser  = 0 // results and errors only
	VerbosityInfo  = 1 // + progress, startup, inference summaries
	VerbosityDebug = 2 // + parsed statements, timing, config details
	VerbosityTrace = 3 // + rule firings, SQL, evaluation steps
	VerbosityAll   = 4 // + full partitions and snapshots
)

// VerbosityToLevel maps a flag count to the zap level that backs it.
// Zap has nothing finer than Debug; trace-grade detail is gated by
// ShouldOutput instead.
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch verbosity {
	case VerbosityUser:
		return zapcore.WarnLevel
	case VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// LevelName renders a verbosity count for banners and diagnostics.
func LevelName(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "User"
	case VerbosityInfo:
		return "Info (-v)"
	case VerbosityDebug:
		return "Debug (-vv)"
	case VerbosityTrace:
		return "Trace (-vvv)"
	default:
		if verbosity >= VerbosityAll {
			return "All (-vvvv)"
		}
		return "Unknown"
	}
}
