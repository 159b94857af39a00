package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer

	if err := run(context.Background(), &stdout, &stderr, []string{"version"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "contreact") {
		t.Errorf("version output: %q", stdout.String())
	}
}

func TestRunNoCommandPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	if err := run(context.Background(), &stdout, &stderr, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "Usage:") {
		t.Errorf("expected usage text:\n%s", stdout.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), &stdout, &stderr, []string{"explode"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("got %v", err)
	}
}

func TestRunUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), &stdout, &stderr, []string{"run", "-frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "unknown argument") {
		t.Errorf("got %v", err)
	}
}

func TestRunExperimentRequiresConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), &stdout, &stderr, []string{"run"})
	if err == nil || !strings.Contains(err.Error(), "-config") {
		t.Errorf("got %v", err)
	}
}

func TestRunInitCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	dir := t.TempDir()

	if err := run(context.Background(), &stdout, &stderr, []string{"init", dir}); err != nil {
		t.Fatalf("run init: %v", err)
	}
	if !strings.Contains(stdout.String(), dir) {
		t.Errorf("init output should name the directory:\n%s", stdout.String())
	}
}
