package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knapsack/internal/model"
)

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}

var scenarioItemArgs = []string{"--item", "A:10:5", "--item", "B:6:4", "--item", "C:8:3"}

func TestRunRequiresCommand(t *testing.T) {
	err := run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: knapsackctl")

	err = run(context.Background(), []string{"evolve"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: evolve")
}

func TestSolveCommandPrintsSelection(t *testing.T) {
	args := append([]string{"solve", "--weight-limit", "7", "--generations", "15", "--seed", "3", "--log-level", "error"}, scenarioItemArgs...)
	out, err := captureStdout(func() error {
		return run(context.Background(), args)
	})
	require.NoError(t, err)
	assert.Contains(t, out, "run_id=")
	assert.Contains(t, out, "stop_reason=generation_limit generation=14")
	assert.Contains(t, out, "selected: ")
}

func TestSolveCommandJSON(t *testing.T) {
	args := append([]string{"solve", "--json", "--weight-limit", "7", "--generations", "10", "--run-id", "fixed", "--log-level", "error"}, scenarioItemArgs...)
	out, err := captureStdout(func() error {
		return run(context.Background(), args)
	})
	require.NoError(t, err)

	var decoded solveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "fixed", decoded.RunID)
	assert.Equal(t, 9, decoded.Generation)
	assert.Len(t, decoded.BestByGeneration, 10)
	assert.Len(t, decoded.Best, 3)
	assert.LessOrEqual(t, decoded.BestWeight, 7.0)
}

func TestSolveCommandReadsCatalog(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "items.csv")
	require.NoError(t, os.WriteFile(catalogPath, []byte("name,value,weight\nmap,10,5\ncompass,6,4\n"), 0o644))
	metricsPath := filepath.Join(dir, "knapsack.prom")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"solve", "--catalog", catalogPath, "--item", "water:8:3",
			"--weight-limit", "7", "--generations", "4", "--json",
			"--metrics-file", metricsPath, "--log-level", "error",
		})
	})
	require.NoError(t, err)

	var decoded solveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded.Best, 3)

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "knapsack_generations_total 4")
}

func TestSolveCommandValidation(t *testing.T) {
	err := run(context.Background(), []string{"solve", "--log-level", "error"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--catalog")

	args := append([]string{"solve", "--population", "5"}, scenarioItemArgs...)
	err = run(context.Background(), args)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "even")

	err = run(context.Background(), []string{"solve", "--item", "broken"})
	require.Error(t, err)

	err = run(context.Background(), []string{"solve", "--item", "neg:-1:2"})
	require.Error(t, err)
}

func TestSolveCommandTimeout(t *testing.T) {
	args := append([]string{"solve", "--generations", "100000000", "--fitness-limit", "1e12", "--timeout", "1ns", "--json", "--log-level", "error"}, scenarioItemArgs...)
	out, err := captureStdout(func() error {
		return run(context.Background(), args)
	})
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)

	var decoded solveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "cancelled", decoded.StopReason)
}

func TestInitResetAndRunsMemory(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"init", "--log-level", "error"})
	})
	require.NoError(t, err)
	assert.Equal(t, "initialized store=memory\n", out)

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"reset", "--log-level", "error"})
	})
	require.NoError(t, err)
	assert.Equal(t, "reset store=memory\n", out)

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"runs", "--log-level", "error"})
	})
	require.NoError(t, err)
	assert.Equal(t, "no runs found\n", out)

	err = run(context.Background(), []string{"runs", "--limit", "0"})
	assert.Error(t, err)
}

func TestShowRequiresSelector(t *testing.T) {
	err := run(context.Background(), []string{"show", "--log-level", "error"})
	assert.Error(t, err)
}

func TestDefaultsCommand(t *testing.T) {
	templatePath := filepath.Join(t.TempDir(), "items.csv")
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"defaults", "--catalog-template", templatePath})
	})
	require.NoError(t, err)
	for _, fragment := range []string{"population_size: 10", "generation_limit: 100", "mutation_probability: 0.65", "fitness_limit: 1000", "value: 25", "weight: 5"} {
		assert.Contains(t, out, fragment)
	}

	data, err := os.ReadFile(templatePath)
	require.NoError(t, err)
	assert.Equal(t, "name,value,weight\nitem,25,5\n", string(data))
}

func TestParseItemSpec(t *testing.T) {
	item, err := parseItemSpec("tent:12.5:4")
	require.NoError(t, err)
	assert.Equal(t, model.Item{Name: "tent", Value: 12.5, Weight: 4}, item)

	item, err = parseItemSpec("ns:key:1:2")
	require.NoError(t, err)
	assert.Equal(t, "ns:key", item.Name)

	for _, bad := range []string{"tent", "tent:1", "tent:x:1", "tent:1:y"} {
		_, err := parseItemSpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestExportRequiresSelector(t *testing.T) {
	err := run(context.Background(), []string{"export", "--out", t.TempDir(), "--log-level", "error"})
	assert.Error(t, err)
}
