package cli_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"stock-ledger/internal/adapters/cli"
	"stock-ledger/internal/app"
	"stock-ledger/internal/core"
)

func setupCLI(t *testing.T) app.ApplicationService {
	t.Helper()
	ctx := context.Background()
	store := core.NewMemoryStore()
	store.AddLocation("CENTRAL", "Central Warehouse", true)
	store.AddLocation("CTR-A", "Center A", false)
	store.AddItem(core.ItemSummary{Code: "X-100", Name: "Projector"})

	registry := core.NewLocationRegistry(store, "CENTRAL")
	ledger, err := core.NewLedgerService(ctx, store, registry, core.LedgerOptions{})
	if err != nil {
		t.Fatalf("NewLedgerService failed: %v", err)
	}
	return app.NewAppService(ledger, registry, nil, nil, nil)
}

func run(t *testing.T, svc app.ApplicationService, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := cli.Run(context.Background(), svc, "tester", args, &out)
	return out.String(), err
}

func TestCLI_Commands(t *testing.T) {
	svc := setupCLI(t)

	if _, err := run(t, svc, "replenish", "1", "10", "19.99"); err != nil {
		t.Fatalf("replenish failed: %v", err)
	}
	if _, err := run(t, svc, "allocate", "1", "2", "4"); err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	out, err := run(t, svc, "pool", "1")
	if err != nil {
		t.Fatalf("pool failed: %v", err)
	}
	if strings.TrimSpace(out) != "6" {
		t.Errorf("Expected pool quantity 6, got %q", out)
	}

	out, err = run(t, svc, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "X-100") || !strings.Contains(out, "19.99") {
		t.Errorf("Expected item row in listing, got:\n%s", out)
	}

	out, err = run(t, svc, "moves", "1")
	if err != nil {
		t.Fatalf("moves failed: %v", err)
	}
	if strings.Count(out, "tester") != 3 {
		t.Errorf("Expected 3 movements by tester, got:\n%s", out)
	}
}

func TestCLI_ShortfallDescription(t *testing.T) {
	svc := setupCLI(t)
	if _, err := run(t, svc, "replenish", "1", "2"); err != nil {
		t.Fatalf("replenish failed: %v", err)
	}

	_, err := run(t, svc, "allocate", "1", "2", "5")
	if err == nil {
		t.Fatal("Expected allocate beyond pool stock to fail")
	}
	want := "Insufficient stock: 2 available, 5 requested (short by 3)."
	if got := cli.Describe(err); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestCLI_UsageErrors(t *testing.T) {
	svc := setupCLI(t)

	for _, args := range [][]string{
		{},
		{"teleport"},
		{"allocate", "1", "2"},
		{"pool", "abc"},
	} {
		if _, err := run(t, svc, args...); !errors.Is(err, cli.ErrUsage) {
			t.Errorf("args %v: expected ErrUsage, got %v", args, err)
		}
	}
}
