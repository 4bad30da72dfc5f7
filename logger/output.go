package logger

// Output controls what categories of information are shown at each verbosity level.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed regardless of severity.
//
// Verbosity Levels:
//
//	0 (default) - User-facing output only: results, errors with hints, final status
//	1 (-v)      - + Progress, startup info, inference summaries
//	2 (-vv)     - + Statement parsing, timing, config loaded
//	3 (-vvv)    - + Rule firings, SQL queries, evaluation steps
//	4 (-vvvv)   - + Full partitions, snapshot dumps

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults    OutputCategory = iota // Query results, command output
	OutputErrors                           // Errors with hints and resolution steps
	OutputUserStatus                       // Final success/failure status

	// Level 1 (-v) - Informational
	OutputProgress     // Progress indicators (e.g., "Round 3/100")
	OutputStartup      // Startup banners, config summary
	OutputInferenceRun // Inference pass summaries (rounds, derived counts)

	// Level 2 (-vv) - Detailed
	OutputStatements // Parsed statement details
	OutputTiming     // Operation timing (e.g., "eval took 4ms")
	OutputConfig     // Config values loaded/applied
	OutputDBStats    // Database statistics and connection info

	// Level 3 (-vvv) - Debug
	OutputRuleFirings // Individual rule matches and derivations
	OutputEvalSteps   // Context evaluation node-by-node
	OutputSQLQueries  // Individual SQL queries executed

	// Level 4 (-vvvv) - Full dump
	OutputPartitions   // Full temporal partitions
	OutputSnapshotDump // Full snapshot contents
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputUserStatus: VerbosityUser,

	OutputProgress:     VerbosityInfo,
	OutputStartup:      VerbosityInfo,
	OutputInferenceRun: VerbosityInfo,

	OutputStatements: VerbosityDebug,
	OutputTiming:     VerbosityDebug,
	OutputConfig:     VerbosityDebug,
	OutputDBStats:    VerbosityDebug,

	OutputRuleFirings: VerbosityTrace,
	OutputEvalSteps:   VerbosityTrace,
	OutputSQLQueries:  VerbosityTrace,

	OutputPartitions:   VerbosityAll,
	OutputSnapshotDump: VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		// Unknown category, default to highest verbosity required
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// categoryNames provides human-readable names for output categories
var categoryNames = map[OutputCategory]string{
	OutputResults:      "results",
	OutputErrors:       "errors",
	OutputUserStatus:   "status",
	OutputProgress:     "progress",
	OutputStartup:      "startup",
	OutputInferenceRun: "inference",
	OutputStatements:   "statements",
	OutputTiming:       "timing",
	OutputConfig:       "config",
	OutputDBStats:      "db-stats",
	OutputRuleFirings:  "rule-firings",
	OutputEvalSteps:    "eval-steps",
	OutputSQLQueries:   "sql",
	OutputPartitions:   "partitions",
	OutputSnapshotDump: "snapshot-dump",
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}

// VerbosityDescription returns a description of what's shown at each level
func VerbosityDescription(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "results and errors only"
	case VerbosityInfo:
		return "results, errors, progress, and inference summaries"
	case VerbosityDebug:
		return "above + statements, timing, config details"
	case VerbosityTrace:
		return "above + rule firings, SQL, evaluation steps"
	case VerbosityAll:
		return "full output including partitions and snapshots"
	default:
		if verbosity > VerbosityAll {
			return "maximum verbosity"
		}
		return "unknown verbosity level"
	}
}
