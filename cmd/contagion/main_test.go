package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/contagion-core/internal/store"
)

func TestRunRequiresExistingStore(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-population", "20", "-iterations", "2", "-no-plot"}, &stdout, &stderr)
	if !errors.Is(err, store.ErrStoreMissing) {
		t.Fatalf("expected ErrStoreMissing, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "data.json")); !os.IsNotExist(statErr) {
		t.Fatalf("store must not be created implicitly")
	}
}

func TestRunSweepMergesAndPlots(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	storePath := filepath.Join(dir, "data.json")
	if err := os.WriteFile(storePath, []byte(`{"12.5": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	plotPath := filepath.Join(dir, "curve.png")

	var stdout, stderr bytes.Buffer
	args := []string{"-population", "30", "-iterations", "3", "-seed", "5", "-store", storePath, "-plot", plotPath}
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v\n%s", err, stderr.String())
	}

	data, err := os.ReadFile(storePath)
	if err != nil {
		t.Fatal(err)
	}
	var curve map[string]float64
	if err := json.Unmarshal(data, &curve); err != nil {
		t.Fatalf("store is not a JSON object: %v", err)
	}
	// 20 sweep points (0.0 .. 9.5) plus the pre-existing key.
	if len(curve) != 21 || curve["12.5"] != 1 {
		t.Fatalf("unexpected stored curve %v", curve)
	}
	if _, ok := curve["9.5"]; !ok {
		t.Fatalf("expected key 9.5")
	}
	if _, ok := curve["10.0"]; ok {
		t.Fatalf("stop density must be excluded")
	}

	if info, err := os.Stat(plotPath); err != nil || info.Size() == 0 {
		t.Fatalf("expected plot at %s: %v", plotPath, err)
	}
	if !strings.Contains(stdout.String(), "seed 5, 30 banks, 3 trials per point") {
		t.Fatalf("unexpected summary:\n%s", stdout.String())
	}
}

func TestRunInitCreatesStore(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	var stdout, stderr bytes.Buffer

	args := []string{"-init", "-population", "10", "-iterations", "1", "-no-plot"}
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data.json")); err != nil {
		t.Fatalf("expected store to be created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "contagion.png")); !os.IsNotExist(err) {
		t.Fatalf("-no-plot must skip rendering")
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-bogus"}, &stdout, &stderr); err == nil {
		t.Fatalf("expected flag error")
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile("data.json", []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	err := run(ctx, []string{"-population", "10", "-iterations", "1", "-no-plot"}, &stdout, &stderr)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	data, _ := os.ReadFile("data.json")
	if string(data) != "{}" {
		t.Fatalf("cancelled sweep must not touch the store, got %s", data)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
