package utils

import (
	"context"
	"testing"
)

func TestConcurrencyScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if concurrencyAcquireScript == nil || concurrencyReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestAcquireConcurrencyCap_RejectsInvalidArgs(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, 1); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseConcurrencyCap(ctx, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
