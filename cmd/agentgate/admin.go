package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/openworkhq/agentgate/internal/adapter/nats"
	"github.com/openworkhq/agentgate/internal/adapter/otel"
	"github.com/openworkhq/agentgate/internal/adapter/postgres"
	"github.com/openworkhq/agentgate/internal/adapter/websearch"
	"github.com/openworkhq/agentgate/internal/adapter/ws"
	"github.com/openworkhq/agentgate/internal/config"
	"github.com/openworkhq/agentgate/internal/executor"
	"github.com/openworkhq/agentgate/internal/service"
)

// runAdmin dispatches admin subcommands (pending, approve, reject, agents).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "pending":
		return runAdminPending(args[1:])
	case "approve":
		return runAdminApprove(args[1:])
	case "reject":
		return runAdminReject(args[1:])
	case "agents":
		return runAdminAgents(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: agentgate admin <command> [options]

Commands:
  pending    List pending tool calls awaiting approval
  approve    Approve and execute a pending tool call
  reject     Reject a pending tool call
  agents     List agents in a workspace
  help       Show this help message

Examples:
  agentgate admin pending --workspace ws-1
  agentgate admin approve --id tc-42 --by admin@localhost
  agentgate admin reject --id tc-42 --by admin@localhost --reason "touches prod config"
  agentgate admin agents --workspace ws-1
`)
}

type adminDeps struct {
	lifecycle *service.LifecycleService
	agents    *service.AgentService
	cleanup   func()
}

func loadAdminDeps() (*adminDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	queue, err := nats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	metrics, err := otel.NewMetrics()
	if err != nil {
		pool.Close()
		_ = queue.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	store := postgres.NewStore(pool)
	exec := executor.New(cfg.Executor, websearch.NewClient(cfg.Search))
	lifecycle := service.NewLifecycleService(store, exec, queue, ws.NewHub(), metrics)

	cleanup := func() {
		_ = queue.Close()
		pool.Close()
	}
	return &adminDeps{
		lifecycle: lifecycle,
		agents:    service.NewAgentService(store),
		cleanup:   cleanup,
	}, nil
}

func runAdminPending(args []string) error {
	fs := flag.NewFlagSet("pending", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workspace == "" {
		return fmt.Errorf("--workspace is required")
	}

	deps, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	calls, err := deps.lifecycle.ListPending(context.Background(), *workspace)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOOL\tRISK\tAGENT\tCREATED")
	for _, tc := range calls {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			tc.ID, tc.Tool, tc.Risk, tc.AgentID, tc.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runAdminApprove(args []string) error {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	id := fs.String("id", "", "tool call id (required)")
	by := fs.String("by", "", "approver identity (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("--id is required")
	}
	if *by == "" {
		return fmt.Errorf("--by is required")
	}

	deps, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	tc, err := deps.lifecycle.Approve(context.Background(), *id, *by)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Tool call %s approved and executed: status=%s duration=%s\n",
		tc.ID, tc.Status, tc.Duration)
	return nil
}

func runAdminReject(args []string) error {
	fs := flag.NewFlagSet("reject", flag.ContinueOnError)
	id := fs.String("id", "", "tool call id (required)")
	by := fs.String("by", "", "rejector identity (required)")
	reason := fs.String("reason", "", "rejection reason")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("--id is required")
	}
	if *by == "" {
		return fmt.Errorf("--by is required")
	}

	deps, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	tc, err := deps.lifecycle.Reject(context.Background(), *id, *by, *reason)
	if err != nil {
		return fmt.Errorf("reject: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Tool call %s rejected\n", tc.ID)
	return nil
}

func runAdminAgents(args []string) error {
	fs := flag.NewFlagSet("agents", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workspace == "" {
		return fmt.Errorf("--workspace is required")
	}

	deps, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	agents, err := deps.agents.List(context.Background(), *workspace)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPROVIDER\tMODEL\tACTIVE\tTOKENS\tCOST")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\t$%.4f\n",
			a.ID, a.Name, a.Provider, a.Model, a.Active, a.Usage.TotalTokens, a.Usage.TotalCostUSD)
	}
	return w.Flush()
}
