package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const normalConfig = `
name: cli-normal
chain:
  length: 200
  full_evaluation: 50
  seed: 7
  log_every: 10
parameters:
  - id: mu
    value: [0.5]
  - id: sigma
    value: [1.0]
    lower: 0
densities:
  - id: mu.prior
    type: normal
    parameter: mu
    stddev: 1
  - id: sigma.prior
    type: exponential
    parameter: sigma
    rate: 1
operators:
  - id: mu.walk
    type: random_walk
    parameter: mu
    size: 0.5
  - id: sigma.scale
    type: scale
    parameter: sigma
    size: 0.8
`

// impossibleConfig starts outside the support of its only density.
const impossibleConfig = `
chain: {length: 10, seed: 1}
parameters: [{id: x, value: [2]}]
densities: [{id: x.prior, type: uniform, parameter: x, lower: 0, upper: 1}]
operators: [{id: x.walk, type: random_walk, parameter: x}]
`

// writeConfig writes doc to a temporary YAML file and returns its path.
func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(ctx context.Context, args ...string) (string, string, error) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

// decodeResponse decodes a JSON CLIResponse and re-decodes its data into v.
func decodeResponse(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if v != nil && resp.Data != nil {
		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, v))
	}
	return resp
}
