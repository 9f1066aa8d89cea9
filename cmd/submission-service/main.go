package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"eventintake/internal/config"
	"eventintake/internal/constants"
	"eventintake/internal/ledger"
	"eventintake/internal/logger"
	"eventintake/internal/submission"
	"eventintake/pkg/bootstrap"
	"eventintake/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "submission-service",
		Short: "Public event submission service",
		Long:  "Accepts community event submissions and commits them as draft documents to the site repository",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (or CONFIG_FILE)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(ledgerCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(earlyLog *logging.EarlyLog) (*config.Config, logger.Logger, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the submission endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(logging.NewEarlyLog())
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Submission Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

func previewCmd() *cobra.Command {
	var (
		eventsDir string
		inputFile string
		identity  string
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Validate a submission and print the document it would produce",
		Long:  "Reads a submission JSON object from --input (or stdin) and prints the generated document without contacting the repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if inputFile != "" {
				f, err := os.Open(inputFile)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			input, err := readSubmission(in)
			if err != nil {
				return err
			}

			svc := submission.NewService(nil, nil, submission.NewSynthesizer(eventsDir), logger.NopLogger())
			return writePreview(cmd.OutOrStdout(), svc, input, identity)
		},
	}
	cmd.Flags().StringVar(&eventsDir, "events-dir", constants.DefaultEventsDir, "Directory documents are written to")
	cmd.Flags().StringVar(&inputFile, "input", "", "Submission JSON file (default stdin)")
	cmd.Flags().StringVar(&identity, "identity", constants.UnknownIdentity, "Client identity recorded in the document")
	return cmd
}

func readSubmission(r io.Reader) (submission.SubmissionInput, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("submission must be a JSON object: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return submission.NormalizeInput(raw), nil
}

func writePreview(w io.Writer, svc *submission.Service, input submission.SubmissionInput, identity string) error {
	doc, verrs, err := svc.Preview(input, identity)
	if err != nil {
		return err
	}
	if verrs != nil {
		for _, v := range verrs.Violations {
			fmt.Fprintf(w, "%s: %s (%s)\n", v.Field, v.Message, v.Code)
		}
		return verrs
	}
	fmt.Fprintf(w, "# %s\n", doc.Path)
	_, err = w.Write(doc.Content)
	return err
}

func ledgerCmd() *cobra.Command {
	var limit int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent accepted submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(logging.NewEarlyLog())
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			connector := bootstrap.NewDatabaseConnector(cfg, log)
			db, err := connector.InitPostgreSQL(ctx)
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("postgres is not configured")
			}
			defer db.Close()

			entries, err := ledger.NewPostgresLedger(db).Recent(ctx, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SUBMITTED\tID\tDATE\tTITLE\tPATH\tPULL REQUEST")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.SubmittedAt.Format("2006-01-02 15:04"), e.SubmissionID, e.StartDate, e.Title, e.Path, e.PullRequestURL)
			}
			return tw.Flush()
		},
	}
	recent.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the submission ledger",
	}
	cmd.AddCommand(recent)
	return cmd
}
