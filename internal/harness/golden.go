package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/relinq/internal/canon"
)

// GoldenData encodes a scenario outcome as canonical JSON:
//
//	{"name": ..., "query": ..., "snapshot": {...}}
//
// or, for a failed parse,
//
//	{"name": ..., "query": ..., "error": {"code": ..., "message": ...}}
func GoldenData(scenario *Scenario, result *Result) ([]byte, error) {
	obj := canon.Object{
		"name":  canon.String(scenario.Name),
		"query": canon.String(scenario.Query),
	}
	if result.Failed() {
		obj["error"] = canon.Object{
			"code":    canon.String(result.ErrorCode),
			"message": canon.String(result.ErrorMessage),
		}
	} else {
		obj["snapshot"] = result.Snapshot
	}
	data, err := canon.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("golden %s: %w", scenario.Name, err)
	}
	return data, nil
}

// RunWithGolden executes a scenario and compares its outcome against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, h *Harness, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := h.Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := GoldenData(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}

// GoldenPath returns the golden file of a scenario file: a golden/
// directory next to it, named after the scenario file.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// UpdateGolden writes data as the golden file at path.
func UpdateGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the golden file at path holds data.
// A missing file is reported through os.ErrNotExist.
func CompareGolden(path string, data []byte) (bool, error) {
	golden, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return bytes.Equal(golden, data), nil
}
