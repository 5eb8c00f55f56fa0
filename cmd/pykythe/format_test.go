package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saidctb/pykythe"
)

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("yaml"))
}

func sampleResults() []*pykythe.ModuleResult {
	return []*pykythe.ModuleResult{
		{
			FQN:    "a",
			Path:   "/src/a.py",
			Status: pykythe.StatusResolved,
			Facts: []pykythe.Fact{
				{Kind: pykythe.FactImports, Module: "a", Target: "b"},
				{Kind: pykythe.FactDefines, Scope: "a", Name: "f", FQN: "a.f"},
				{Kind: pykythe.FactContains, Parent: "a", Child: "a.f"},
				{Kind: pykythe.FactReferences, Pos: &pykythe.Position{Line: 5, Col: 0}, FQN: "b.X"},
			},
		},
		{
			FQN:    "broken",
			Path:   "/src/broken.py",
			Status: pykythe.StatusFailed,
			Err:    errors.New("read failed"),
		},
	}
}

func TestWriteResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, "json", sampleResults()))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2, "one JSON line per module")

	var first moduleOutput
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "a", first.Module)
	assert.Equal(t, "resolved", first.Status)
	assert.Len(t, first.Facts, 4)

	var second moduleOutput
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "failed", second.Status)
	assert.Equal(t, "read failed", second.Error)
	assert.Empty(t, second.Facts)
}

func TestWriteResultsText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, "text", sampleResults()))

	out := buf.String()
	assert.Contains(t, out, "module a (/src/a.py) resolved")
	assert.Contains(t, out, "imports")
	assert.Contains(t, out, "a.f")
	assert.Contains(t, out, "5:0")
	assert.Contains(t, out, "module broken (/src/broken.py) failed")
	assert.Contains(t, out, "error: read failed")
}
