package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Yetoo1/beast-mcmc/internal/model"
)

// Recorder implements the chain's Listener and, through Delegate, its
// Delegate protocol. Both views append to the same ordered event log.
//
// Thread-safety: Recorder is not safe for concurrent use. The chain notifies
// on its sampling goroutine only.
type Recorder struct {
	lines []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// BestState records a best-state event with the density's score.
func (r *Recorder) BestState(state int64, d model.Density) {
	r.addf("best %d %s", state, formatScore(d.LogDensity()))
}

// CurrentState records the top of an iteration with the density's score.
func (r *Recorder) CurrentState(state int64, d model.Density) {
	r.addf("current %d %s", state, formatScore(d.LogDensity()))
}

// Finished records the listener's finished event.
func (r *Recorder) Finished(length int64) {
	r.addf("finished %d", length)
}

// Delegate returns the delegate view of r.
func (r *Recorder) Delegate() *DelegateView {
	return &DelegateView{r: r}
}

// Lines returns a copy of the event log.
func (r *Recorder) Lines() []string {
	return append([]string(nil), r.lines...)
}

// Count returns the number of events whose kind (first word) is kind.
func (r *Recorder) Count(kind string) int {
	n := 0
	for _, l := range r.lines {
		if k, _, _ := strings.Cut(l, " "); k == kind {
			n++
		}
	}
	return n
}

// Bytes returns the event log, one event per line.
func (r *Recorder) Bytes() []byte {
	if len(r.lines) == 0 {
		return nil
	}
	return []byte(strings.Join(r.lines, "\n") + "\n")
}

// Reset clears the event log.
func (r *Recorder) Reset() {
	r.lines = nil
}

func (r *Recorder) addf(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

// DelegateView records delegate events into its Recorder.
type DelegateView struct {
	r *Recorder
}

// IterationStart records the delegate's start-of-iteration event.
func (v *DelegateView) IterationStart(state int64) {
	v.r.addf("start %d", state)
}

// IterationEnd records the end of an iteration.
func (v *DelegateView) IterationEnd(state int64) {
	v.r.addf("end %d", state)
}

// Finished records the delegate's finished event.
func (v *DelegateView) Finished(length int64) {
	v.r.addf("delegate-finished %d", length)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
