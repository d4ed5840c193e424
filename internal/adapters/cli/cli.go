package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"

	"github.com/shopspring/decimal"
)

const usage = `Available: replenish <item> <qty> [cost], allocate <item> <center> <qty>,
           return <item> <center> <qty> [reason], pool <item>, list, centers,
           moves <item> [limit], export <file.xlsx>`

// ErrUsage is returned for unknown commands or malformed arguments.
var ErrUsage = errors.New("usage error")

// Run executes a one-shot CLI command, writing human-readable output to out.
// args is os.Args[1:]; the first element is the subcommand name. actor is recorded on
// every movement the command commits.
func Run(ctx context.Context, svc app.ApplicationService, actor string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given\n%s", ErrUsage, usage)
	}

	switch args[0] {
	case "replenish", "rep", "r":
		if len(args) < 3 {
			return fmt.Errorf("%w: stockctl replenish <item> <qty> [cost]", ErrUsage)
		}
		nums, err := ints(args[1:3])
		if err != nil {
			return err
		}
		req := app.ReplenishRequest{ItemID: nums[0], Quantity: nums[1], Actor: actor}
		if len(args) > 3 {
			cost, err := decimal.NewFromString(args[3])
			if err != nil {
				return fmt.Errorf("%w: invalid cost %q", ErrUsage, args[3])
			}
			req.UnitCost = decimal.NewNullDecimal(cost)
		}
		res, err := svc.Replenish(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pool now holds %d of item %d.\n", res.Record.Quantity, res.Record.ItemID)

	case "allocate", "alloc", "a":
		if len(args) < 4 {
			return fmt.Errorf("%w: stockctl allocate <item> <center> <qty>", ErrUsage)
		}
		nums, err := ints(args[1:4])
		if err != nil {
			return err
		}
		res, err := svc.Allocate(ctx, app.AllocateRequest{ItemID: nums[0], ToLocationID: nums[1], Quantity: nums[2], Actor: actor})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Location %d now holds %d of item %d.\n", res.Record.LocationID, res.Record.Quantity, res.Record.ItemID)

	case "return", "ret":
		if len(args) < 4 {
			return fmt.Errorf("%w: stockctl return <item> <center> <qty> [reason]", ErrUsage)
		}
		nums, err := ints(args[1:4])
		if err != nil {
			return err
		}
		res, err := svc.Return(ctx, app.ReturnRequest{
			ItemID:         nums[0],
			FromLocationID: nums[1],
			Quantity:       nums[2],
			Reason:         strings.Join(args[4:], " "),
			Actor:          actor,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pool now holds %d of item %d.\n", res.Record.Quantity, res.Record.ItemID)

	case "pool":
		if len(args) < 2 {
			return fmt.Errorf("%w: stockctl pool <item>", ErrUsage)
		}
		nums, err := ints(args[1:2])
		if err != nil {
			return err
		}
		res, err := svc.GetPoolQuantity(ctx, nums[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\n", res.Quantity)

	case "list", "ls":
		res, err := svc.ListPoolInventory(ctx)
		if err != nil {
			return err
		}
		printPoolInventory(out, res)

	case "centers":
		res, err := svc.ListCenters(ctx)
		if err != nil {
			return err
		}
		for _, c := range res.Centers {
			fmt.Fprintf(out, "  %4d  %-12s %s\n", c.ID, c.Code, c.Name)
		}

	case "moves", "mv":
		if len(args) < 2 {
			return fmt.Errorf("%w: stockctl moves <item> [limit]", ErrUsage)
		}
		nums, err := ints(args[1:min(len(args), 3)])
		if err != nil {
			return err
		}
		limit := 0
		if len(nums) > 1 {
			limit = nums[1]
		}
		res, err := svc.ListMovements(ctx, nums[0], limit)
		if err != nil {
			return err
		}
		printMovements(out, res)

	case "export":
		if len(args) < 2 {
			return fmt.Errorf("%w: stockctl export <file.xlsx>", ErrUsage)
		}
		f, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[1], err)
		}
		if err := svc.ExportPoolInventory(ctx, f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[1], err)
		}
		fmt.Fprintf(out, "Pool inventory written to %s.\n", args[1])

	default:
		return fmt.Errorf("%w: unknown command %s\n%s", ErrUsage, args[0], usage)
	}
	return nil
}

// Describe renders err for the terminal. Shortfalls show the missing quantity.
func Describe(err error) string {
	var insufficient *core.InsufficientStockError
	if errors.As(err, &insufficient) {
		return fmt.Sprintf("Insufficient stock: %d available, %d requested (short by %d).",
			insufficient.Available, insufficient.Requested, insufficient.Shortfall())
	}
	return err.Error()
}

func ints(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrUsage, a)
		}
		out[i] = n
	}
	return out, nil
}

func printPoolInventory(out io.Writer, res *app.PoolInventoryResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "  POOL INVENTORY  %s (%s)\n", res.Pool.Name, res.Pool.Code)
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "  %-12s %-30s %8s %10s %-6s\n", "CODE", "NAME", "QTY", "COST", "COND")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, e := range res.Entries {
		cost := "-"
		if e.Record.UnitCost.Valid {
			cost = e.Record.UnitCost.Decimal.StringFixed(2)
		}
		fmt.Fprintf(out, "  %-12s %-30s %8d %10s %-6s\n", e.Item.Code, e.Item.Name, e.Record.Quantity, cost, e.Record.Condition)
	}
	fmt.Fprintln(out, strings.Repeat("=", 72))
}

func printMovements(out io.Writer, res *app.MovementListResult) {
	for _, m := range res.Movements {
		fmt.Fprintf(out, "  %s  %-12s loc %-4d %+6d  %s %s\n",
			m.CreatedAt.Format("2006-01-02 15:04:05"), m.Type, m.LocationID, m.Quantity, m.Actor, m.Note)
	}
}
