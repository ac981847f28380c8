package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no source", nil, "exactly one of -source or -file"},
		{"both sources", []string{"-source", "nightly", "-file", "inventory.csv"}, "exactly one of -source or -file"},
		{"unknown scope", []string{"-source", "nightly", "-scope", "orders"}, `unknown scope "orders"`},
		{"unknown flag", []string{"-force"}, "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != 2 {
				t.Errorf("expected exit code 2, got %d", code)
			}
			if !strings.Contains(stderr.String(), tt.wantErr) {
				t.Errorf("expected %q in stderr, got %q", tt.wantErr, stderr.String())
			}
			if stdout.Len() != 0 {
				t.Errorf("nothing should be printed on stdout, got %q", stdout.String())
			}
		})
	}
}
