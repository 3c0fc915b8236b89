// Command ledger reads and edits ledger records through the tiered client:
// the live API when reachable, otherwise the bundled dataset or local copy.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/client"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/config"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/logging"
)

const usage = `usage: ledger [-config file.yaml] <command> [args]

commands:
  tier                  print the tier serving this session
  list <kind>           print every record of a kind as JSON
  upsert <kind> <json>  create or update a record
  remove <kind> <id>    delete a record
  clear <kind>          delete every record of a kind
  export <kind>         print a kind as CSV
`

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "YAML client configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cmd, rest := fs.Arg(0), fs.Args()
	if len(rest) > 0 {
		rest = rest[1:]
	}
	if !validArgs(cmd, rest) {
		fs.Usage()
		return 2
	}

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "ledger: %v\n", err)
		return 1
	}
	logging.SetupWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)

	facade := client.Open(ctx, options(cfg))
	fmt.Fprintf(stderr, "tier: %s\n", facade.Tier())

	if err := execute(ctx, facade, cmd, rest, stdout); err != nil {
		slog.Debug("command failed", "command", cmd, "error", err)
		fmt.Fprintf(stderr, "ledger: %v\n", err)
		if core.IsUserFacing(err) {
			fmt.Fprintln(stderr, core.FormatUserError(err))
		}
		return 1
	}
	return 0
}

func validArgs(cmd string, args []string) bool {
	switch cmd {
	case "tier":
		return len(args) == 0
	case "list", "clear", "export":
		return len(args) == 1
	case "upsert", "remove":
		return len(args) == 2
	default:
		return false
	}
}

func options(cfg *config.ClientConfig) client.Options {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	var sources client.FirstDataset
	if cfg.DatasetURL != "" {
		sources = append(sources, client.HTTPDataset{URL: cfg.DatasetURL, Client: httpClient})
	}
	if cfg.DatasetPath != "" {
		sources = append(sources, client.FileDataset(cfg.DatasetPath))
	}

	opts := client.Options{
		BackendURL:    cfg.BackendURL,
		FallbackURL:   cfg.FallbackURL,
		Storage:       client.NewFileStorage(cfg.StorageDir),
		StoragePrefix: cfg.StoragePrefix,
		HTTPClient:    httpClient,
		ProbeTimeout:  cfg.ProbeTimeout,

		RequestTimeout: cfg.RequestTimeout,
	}
	if len(sources) > 0 {
		opts.Dataset = sources
	}
	return opts
}

func execute(ctx context.Context, f *client.Facade, cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "tier":
		_, err := fmt.Fprintln(stdout, f.Tier())
		return err

	case "list":
		docs, err := f.List(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(stdout, docs)

	case "upsert":
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("upsert: record is not valid JSON")
		}
		doc, err := f.Upsert(ctx, args[0], json.RawMessage(args[1]))
		if err != nil {
			return err
		}
		return printJSON(stdout, doc)

	case "remove":
		deleted, err := f.Remove(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("remove: %s %s not found", args[0], args[1])
		}
		_, err = fmt.Fprintln(stdout, "deleted")
		return err

	case "clear":
		if err := f.Clear(ctx, args[0]); err != nil {
			return err
		}
		_, err := fmt.Fprintln(stdout, "cleared")
		return err

	case "export":
		csv, err := f.Export(ctx, args[0])
		if err != nil {
			return err
		}
		_, err = stdout.Write(csv)
		return err
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
