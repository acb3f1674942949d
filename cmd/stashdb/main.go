// Command stashdb runs a demo workload against the storage engine and shows
// live buffer pool, lock and transaction statistics in the terminal.
//
// Usage:
//
//	stashdb [-config path/to/config.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"stashdb/pkg/catalog"
	"stashdb/pkg/concurrency/lock"
	"stashdb/pkg/concurrency/transaction"
	"stashdb/pkg/config"
	"stashdb/pkg/memory"
	"stashdb/pkg/primitives"
	"stashdb/pkg/storage/heap"
	"stashdb/pkg/tuple"
	"stashdb/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "stashdb: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	dataDir, err := os.MkdirTemp("", "stashdb-demo-")
	if err != nil {
		return fmt.Errorf("failed to create demo data dir: %w", err)
	}
	defer os.RemoveAll(dataDir)

	registry := transaction.NewRegistry()
	locks := lock.NewManager(registry, cfg.Timeouts())
	store := memory.NewPageStore()
	pool := memory.NewBufferPool(cfg.Pool.Capacity, store, locks, registry)
	cat := catalog.NewTableCatalog(store)

	desc, err := tuple.NewTupleDesc(
		[]types.Type{types.IntType, types.StringType},
		[]string{"id", "payload"},
	)
	if err != nil {
		return err
	}
	file, err := heap.NewHeapFile(primitives.Filepath(dataDir).Join("events.dat"), desc, pool)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := cat.AddTable("events", file); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workload := startWorkload(ctx, pool, file)

	model := newInspectorModel(pool, cat, workload)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("inspector failed: %w", err)
	}

	cancel()
	workload.wait()
	return nil
}
