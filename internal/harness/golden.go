package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertGolden compares the recorder's event log against
// testdata/golden/{name}.golden in the calling package.
//
// To regenerate golden files, run the test with -update.
func AssertGolden(t *testing.T, name string, r *Recorder) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, r.Bytes())
}
