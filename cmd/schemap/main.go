// Command schemap introspects configured databases and serves or prints
// their schemas and inferred relationship graphs.
//
// Usage:
//
//	schemap -config schemap.yaml serve
//	schemap -config schemap.yaml graph -conn prod
//	schemap -config schemap.yaml export -conn prod -format mermaid
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"schemap/internal/cache"
	"schemap/internal/config"
	"schemap/internal/logger"
	"schemap/internal/render"
	"schemap/internal/server"
)

func main() {
	configPath := flag.String("config", "schemap.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "schemap:", err)
		os.Exit(1)
	}

	log := logger.New(&cfg.Logger)
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var archive cache.Archive
	if cfg.Cache.ObjectStore != nil {
		a, err := cache.NewObjectArchive(ctx, cfg.Cache.ObjectStore)
		if err != nil {
			log.Fatalf("snapshot archive unavailable: %v", err)
		}
		archive = a
	}

	hub := server.NewHub(cfg, archive, log)
	defer hub.Close()

	switch cmd := flag.Arg(0); cmd {
	case "", "serve":
		err = server.Run(ctx, cfg, hub, log)
	case "graph":
		err = printGraph(ctx, hub, flag.Args()[1:])
	case "export":
		err = printExport(ctx, hub, flag.Args()[1:])
	default:
		err = fmt.Errorf("unknown command: %s", cmd)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// printGraph introspects one connection and writes the graph as JSON.
func printGraph(ctx context.Context, hub *server.Hub, args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	conn := fs.String("conn", "", "connection name")
	fs.Parse(args)

	if *conn == "" {
		return fmt.Errorf("graph requires -conn")
	}

	snap, err := hub.Snapshot(ctx, *conn, false)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap.Graph)
}

// printExport introspects one connection and writes DDL or a Mermaid
// diagram.
func printExport(ctx context.Context, hub *server.Hub, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	conn := fs.String("conn", "", "connection name")
	format := fs.String("format", "ddl", "output format: ddl or mermaid")
	fs.Parse(args)

	if *conn == "" {
		return fmt.Errorf("export requires -conn")
	}

	snap, err := hub.Snapshot(ctx, *conn, false)
	if err != nil {
		return err
	}

	switch *format {
	case "ddl":
		fmt.Print(render.DDL(snap.Schema, hub.Dialect(*conn)))
	case "mermaid":
		fmt.Print(render.Mermaid(snap.Graph))
	default:
		return fmt.Errorf("unsupported format: %s", *format)
	}
	return nil
}
