package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRun_ExitCodes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"scenarios", "--no-color"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run(scenarios) = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "documents-with-bulk-insert") {
		t.Errorf("scenarios output = %q", stdout.String())
	}

	stderr.Reset()
	if code := run([]string{"run", "not-a-number", "memory"}, &stdout, &stderr); code != 1 {
		t.Errorf("run(bad args) = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "invalid document count") {
		t.Errorf("stderr = %q", stderr.String())
	}
}
