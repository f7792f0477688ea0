package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestScriptFileParsing(t *testing.T) {
	data := []byte(`
steps:
  - action: fill
    selector: "#email"
    value: user@example.com
    name: emailField
  - action: click
    selector: "#login"
    name: loginButton
  - action: wait
    selector: "#banner"
    timeout: 5s
  - action: assert
    selector: "#banner"
    assertion:
      kind: text
      expected: Welcome
`)
	var script scriptFile
	require.NoError(t, yaml.Unmarshal(data, &script))
	require.Len(t, script.Steps, 4)

	assert.Equal(t, "fill", script.Steps[0].Action)
	assert.Equal(t, "user@example.com", script.Steps[0].Value)
	assert.Equal(t, "emailField", script.Steps[0].Name)
	assert.Equal(t, "5s", script.Steps[2].Timeout)
	require.NotNil(t, script.Steps[3].Assertion)
	assert.Equal(t, "text", script.Steps[3].Assertion.Kind)
	assert.Equal(t, "Welcome", script.Steps[3].Assertion.Expected)
}

func TestRunScriptStepRejectsUnknownAction(t *testing.T) {
	err := runScriptStep(context.Background(), nil, "id", scriptStep{Action: "teleport"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestRunScriptStepRejectsBadTimeout(t *testing.T) {
	err := runScriptStep(context.Background(), nil, "id", scriptStep{
		Action:   "wait",
		Selector: "#x",
		Timeout:  "soon",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout")
}

func TestRunScriptStepRequiresAssertionBlock(t *testing.T) {
	err := runScriptStep(context.Background(), nil, "id", scriptStep{
		Action:   "assert",
		Selector: "#x",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion block")
}
