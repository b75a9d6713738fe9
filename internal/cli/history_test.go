package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeHistory(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// recordScenarios parses each scenario into a fresh history database.
// Expectation failures still record the parsed model.
func recordScenarios(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	for name, content := range scenarios {
		path := writeScenario(t, dir, name, content)
		_, err := executeParse(t, &RootOptions{Format: "text"}, path, "--store", db)
		if err != nil {
			require.Equal(t, ExitFailure, GetExitCode(err), err.Error())
		}
	}
	return db
}

func TestHistoryCommandRequiresStore(t *testing.T) {
	_, err := executeHistory(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store")
}

func TestHistoryCommandEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := executeHistory(t, "text", "--store", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No snapshots recorded.")
}

func TestHistoryCommandText(t *testing.T) {
	db := recordScenarios(t, map[string]string{"adults.yaml": adultsScenario})

	out, err := executeHistory(t, "text", "--store", db)
	require.NoError(t, err)
	assert.Contains(t, out, "SEQ")
	assert.Contains(t, out, "MODEL HASH")
	assert.Contains(t, out, "adults_count")
	assert.Contains(t, out, "from Person p in people where ([p].Age > 30) select [p] => Count()")
}

func TestHistoryCommandJSON(t *testing.T) {
	db := recordScenarios(t, map[string]string{
		"adults.yaml": adultsScenario,
		"wrong.yaml":  wrongModelScenario,
	})

	out, err := executeHistory(t, "json", "--store", db)
	require.NoError(t, err)

	var response struct {
		Status string        `json:"status"`
		Data   HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	// wrong_model misses its expectation but its model still parses.
	require.Len(t, response.Data.Entries, 2)
	for _, e := range response.Data.Entries {
		assert.NotEmpty(t, e.ID)
		assert.NotEmpty(t, e.ModelHash)
		assert.NotEmpty(t, e.Model)
	}
}

func TestHistoryCommandScenarioFilter(t *testing.T) {
	db := recordScenarios(t, map[string]string{
		"adults.yaml": adultsScenario,
		"wrong.yaml":  wrongModelScenario,
	})

	out, err := executeHistory(t, "json", "--store", db, "--scenario", "adults_count")
	require.NoError(t, err)

	var response struct {
		Data HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	require.Len(t, response.Data.Entries, 1)
	assert.Equal(t, "adults_count", response.Data.Entries[0].Scenario)
	assert.Equal(t, "people.Where(p => p.Age > limit).Count()", response.Data.Entries[0].Query)
}

func TestHistoryCommandKeepRequiresScenario(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	_, err := executeHistory(t, "text", "--store", db, "--keep", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--keep requires --scenario")
}

func TestHistoryCommandKeep(t *testing.T) {
	db := recordScenarios(t, map[string]string{"adults.yaml": adultsScenario})

	out, err := executeHistory(t, "json", "--store", db, "--scenario", "adults_count", "--keep", "1")
	require.NoError(t, err)

	var response struct {
		Data HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, int64(0), response.Data.Pruned)
	assert.Len(t, response.Data.Entries, 1)
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "abc", shortHash("abc"))
	assert.Equal(t, "0123456789ab", shortHash("0123456789abcdef"))
}
