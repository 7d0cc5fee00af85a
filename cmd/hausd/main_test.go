package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarkoPoloResearchLab/haus/pkg/lottery"
)

func runCommand(test *testing.T, args ...string) (string, error) {
	test.Helper()
	cmd := newRootCommand()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return output.String(), err
}

func TestMigrateDrawAndAudit(test *testing.T) {
	databaseURL := "sqlite://" + filepath.Join(test.TempDir(), "haus.db")

	output, err := runCommand(test, "migrate", "--database-url", databaseURL)
	if err != nil {
		test.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(output, "schema up to date (sqlite)") {
		test.Fatalf("unexpected migrate output %q", output)
	}

	_, err = runCommand(test, "draw", "2025-02", "--database-url", databaseURL)
	if !errors.Is(err, lottery.ErrNoEntries) {
		test.Fatalf("expected no entries, got %v", err)
	}

	_, err = runCommand(test, "draw", "next", "--database-url", databaseURL)
	if !errors.Is(err, lottery.ErrInvalidPeriod) {
		test.Fatalf("expected invalid period, got %v", err)
	}

	_, err = runCommand(test, "audit", "ghost", "--database-url", databaseURL)
	if err == nil {
		test.Fatalf("expected audit of unknown account to fail")
	}
}

func TestTokenRequiresSigningKey(test *testing.T) {
	test.Setenv("HAUS_JWT_SIGNING_KEY", "")
	databaseURL := "sqlite://" + filepath.Join(test.TempDir(), "haus.db")

	if _, err := runCommand(test, "token", "--database-url", databaseURL); err == nil {
		test.Fatalf("expected missing signing key to fail")
	}

	output, err := runCommand(test, "token", "--database-url", databaseURL, "--jwt-signing-key", "k", "--subject", "operator", "--roles", "admin")
	if err != nil {
		test.Fatalf("token: %v", err)
	}
	if strings.Count(strings.TrimSpace(output), ".") != 2 {
		test.Fatalf("expected a compact jwt, got %q", output)
	}
}

func TestEnvironmentOverridesEconomy(test *testing.T) {
	test.Setenv("HAUS_REEL_TRIPLE_PERCENT", "2")
	databaseURL := "sqlite://" + filepath.Join(test.TempDir(), "haus.db")

	_, err := runCommand(test, "migrate", "--database-url", databaseURL)
	if err == nil || !strings.Contains(err.Error(), "triple") {
		test.Fatalf("expected triple percentage to be rejected, got %v", err)
	}
}
