package main

import (
	"bytes"
	"strings"
	"testing"
)

func devEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV", "dev")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("QUEUE_BACKEND", "")
	t.Setenv("SECRETS_GCP_PROJECT", "")
	t.Setenv("OBJECT_STORE", "local")
	t.Setenv("LOCAL_STORE_DIR", t.TempDir())
	t.Setenv("GENERATION_PROVIDER", "stub")
	t.Setenv("PAYMENT_PROVIDER", "dev")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestItemsListPrintsHeader(t *testing.T) {
	devEnv(t)
	out, err := run(t, "items", "list", "--limit", "5")
	if err != nil {
		t.Fatalf("items list: %v", err)
	}
	if !strings.HasPrefix(out, "ID") || !strings.Contains(out, "STAGE") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGrantRejectsNonPositiveAmount(t *testing.T) {
	devEnv(t)
	if _, err := run(t, "credits", "grant", "user-1", "--amount", "0"); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}

func TestBalanceUnknownUserFails(t *testing.T) {
	devEnv(t)
	if _, err := run(t, "credits", "balance", "missing-user"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}

func TestSweepWithNothingPending(t *testing.T) {
	devEnv(t)
	out, err := run(t, "items", "sweep")
	if err != nil {
		t.Fatalf("items sweep: %v", err)
	}
	if !strings.Contains(out, "failed 0") {
		t.Fatalf("unexpected output %q", out)
	}
}
