// Package harness records a chain's listener and delegate event stream and
// compares it against golden files.
//
// # Event Format
//
// A Recorder appends one line per notification:
//
//	best 0 -1.5
//	current 3 -1.5
//	start 3
//	end 3
//	finished 10
//	delegate-finished 10
//
// Scores are formatted with strconv 'g' and full precision so golden files
// change only when behaviour changes.
//
// # Deterministic Testing
//
// Golden comparisons only make sense for deterministic chains. Use
// sequential schedules, scripted operators and testutil.NewRand seeds so the
// same scenario produces byte-identical logs.
//
// To regenerate golden files, run:
//
//	go test ./internal/chain -update
package harness
