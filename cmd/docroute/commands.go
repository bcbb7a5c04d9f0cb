package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/docroute/docroute/internal/config"
	"github.com/docroute/docroute/internal/ingest"
	"github.com/docroute/docroute/internal/storage"
)

// --- process ---

var processCmd = &cobra.Command{
	Use:   "process <input>...",
	Short: "Classify and extract one or more inputs",
	Long: `Classify and extract one or more inputs and persist each result under
its own thread id. An input is a file path (.pdf, .html/.htm or any text
file) or a literal string.

Examples:
  docroute process ./invoice.json
  docroute process ./mail.eml ./scan.pdf
  docroute process '{"invoice_number":"INV-1","total":120}'
  docroute process --thread-id order-77 ./mail.eml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread-id")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if threadID != "" && len(args) > 1 {
			return errors.New("--thread-id can only be used with a single input")
		}

		inputs, err := ingest.LoadAll(args)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, prometheus.NewRegistry(), stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		return runProcess(ctx, cmd.OutOrStdout(), a.dispatcher, inputs, threadID, concurrency)
	},
}

func init() {
	processCmd.Flags().String("thread-id", "", "thread id to record under (single input only; generated when empty)")
	processCmd.Flags().Int("concurrency", ingest.DefaultConcurrency, "number of inputs processed at once")
}

// runProcess dispatches inputs and prints one report per processed input.
// It returns an error when any input failed.
func runProcess(ctx context.Context, w io.Writer, d ingest.Dispatcher, inputs []ingest.Input, threadID string, concurrency int) error {
	var results []ingest.Result
	if len(inputs) == 1 {
		out, err := d.Dispatch(ctx, threadID, inputs[0].Content)
		results = []ingest.Result{{Input: inputs[0], Outcome: out, Err: err}}
	} else {
		results = ingest.NewBatch(d, concurrency).Run(ctx, inputs)
	}

	for _, r := range results {
		if r.Err != nil {
			printErr(r.Input.Source, r.Err)
			continue
		}
		if r.Outcome.LowConfidence {
			printWarning("%s: low classification confidence (%.2f), routing to manual review",
				r.Input.Source, r.Outcome.Classification.Confidence)
		}
		if err := printJSON(w, r.Outcome.Report()); err != nil {
			return errors.Wrap(err, "writing report")
		}
	}

	if n := ingest.Failed(results); n > 0 {
		return errors.Newf("%d of %d input(s) failed", n, len(results))
	}
	return nil
}

// --- thread ---

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Inspect or clear stored threads",
}

var threadShowCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Show the stored fields of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withThreads(cmd, func(ctx context.Context, threads *storage.Threads) error {
			fields := threads.GetAll(ctx, args[0])
			if len(fields) == 0 {
				return errors.Newf("thread %s not found", args[0])
			}
			return printJSON(cmd.OutOrStdout(), fields)
		})
	},
}

var threadLogsCmd = &cobra.Command{
	Use:   "logs <thread-id>",
	Short: "Show the processing log of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withThreads(cmd, func(ctx context.Context, threads *storage.Threads) error {
			return printJSON(cmd.OutOrStdout(), threads.GetLogs(ctx, args[0]))
		})
	},
}

var threadClearCmd = &cobra.Command{
	Use:   "clear <thread-id>",
	Short: "Delete the fields and log of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withThreads(cmd, func(ctx context.Context, threads *storage.Threads) error {
			threads.Clear(ctx, args[0])
			printSuccess("Cleared thread %s", args[0])
			return nil
		})
	},
}

func init() {
	threadCmd.AddCommand(threadShowCmd)
	threadCmd.AddCommand(threadLogsCmd)
	threadCmd.AddCommand(threadClearCmd)
}

// withThreads opens the configured thread store for fn. No LLM credentials
// are needed.
func withThreads(cmd *cobra.Command, fn func(ctx context.Context, threads *storage.Threads) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	threads, err := openThreads(ctx, cfg)
	if err != nil {
		return err
	}
	defer threads.Close()
	return fn(ctx, threads)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(w, "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret (llm.api_key, redis.password, server.api_token) in the platform secret store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
