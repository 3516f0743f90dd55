package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulexconde/justasking/internal/logic"
	"github.com/paulexconde/justasking/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with a config directory holding the given
// config.yaml body (none when empty).
func run(t *testing.T, configBody string, args ...string) (string, string, error) {
	t.Helper()

	dir := t.TempDir()
	if configBody != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configBody), 0o600))
	}

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", dir}, args...))

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestValidate(t *testing.T) {
	out, _, err := run(t, "", "validate", "testdata/car_check.yaml", "testdata/loop.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "testdata/car_check.yaml: ok\n")
	assert.Contains(t, out, "warning BackwardJump (rule again)")
}

func TestValidate_Errors(t *testing.T) {
	out, _, err := run(t, "", "validate", "testdata/car_check.yaml", "testdata/broken.yaml", "testdata/missing.yaml")
	assert.EqualError(t, err, "2 of 3 survey files invalid")

	assert.Contains(t, out, "error SelfReferentialRule (rule self)")
	assert.Contains(t, out, "warning BackwardJump (rule back)")
	assert.Contains(t, out, "testdata/missing.yaml: open testdata/missing.yaml")
}

func TestValidate_JSON(t *testing.T) {
	out, _, err := run(t, "workers:\n  count: 2\n  queue: 1\n", "validate", "--json", "testdata/broken.yaml")
	require.Error(t, err)

	var reports []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)

	errs := reports[0]["errors"].([]any)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	assert.Equal(t, "SelfReferentialRule", first["code"])
	assert.Equal(t, "error", first["severity"])
	assert.Equal(t, "self", first["ruleId"])
}

func TestMap(t *testing.T) {
	out, _, err := run(t, "", "map", "testdata/car_check.yaml")
	require.NoError(t, err)

	var m logic.Map
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "car-check", m.SurveyID)
	require.Len(t, m.Nodes, 4)
	require.Len(t, m.Edges, 3)
	assert.Equal(t, "= 'No' → Skip", m.Edges[0].Label)
	assert.Equal(t, logic.JumpTo, m.Edges[2].Action)
	assert.Equal(t, "q4", m.Edges[2].TargetID)
}

func TestMap_YAML(t *testing.T) {
	out, _, err := run(t, "", "map", "-o", "yaml", "testdata/car_check.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "survey_id: car-check")
	assert.Contains(t, out, "action: end_survey")

	_, _, err = run(t, "", "map", "-o", "toml", "testdata/car_check.yaml")
	assert.EqualError(t, err, `unknown output format "toml"`)
}

func TestSimulate_SkipAndJump(t *testing.T) {
	out, _, err := run(t, "", "simulate", "testdata/car_check.yaml", "-a", "q1=No", "-a", "q3=10")
	require.NoError(t, err)

	assert.Equal(t, `q1 = "No"
q3 = "10"
q4 (unanswered)
completed: exhausted
visible: q1, q3, q4
`, out)
}

func TestSimulate_EndRule(t *testing.T) {
	out, _, err := run(t, "", "simulate", "testdata/car_check.yaml",
		"--answer", "q1=Yes", "--answer", "q2=Volvo", "--answer", "q3=1")
	require.NoError(t, err)

	assert.Equal(t, `q1 = "Yes"
q2 = "Volvo"
q3 = "1"
completed: end_rule
visible: q1, q2, q3, q4
`, out)
}

func TestSimulate_LoopGuard(t *testing.T) {
	_, logs, err := run(t, "session:\n  max_visits: 3\n", "simulate", "testdata/loop.yaml", "-a", "q1=Yes", "-a", "q2=x")

	assert.ErrorIs(t, err, fault.ErrNavigationLoop)
	assert.Contains(t, logs, "navigation loop detected")
}

func TestSimulate_BadAnswerFlag(t *testing.T) {
	_, _, err := run(t, "", "simulate", "testdata/car_check.yaml", "-a", "q1")
	assert.EqualError(t, err, `answer "q1": want question=value`)
}

func TestDB_RequiresDSN(t *testing.T) {
	t.Setenv("JUSTASKING_DATABASE_DSN", "")
	t.Setenv("DATABASE_URL", "")

	_, _, err := run(t, "", "db", "validate", "--survey", "s1")
	assert.ErrorContains(t, err, "database.dsn is not configured")
}
