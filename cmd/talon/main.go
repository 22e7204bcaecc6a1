package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blackcoderx/talon/internal/gherkin"
	"github.com/blackcoderx/talon/internal/httpx"
	"github.com/blackcoderx/talon/internal/model"
	"github.com/blackcoderx/talon/internal/mock"
	"github.com/blackcoderx/talon/internal/obslog"
	"github.com/blackcoderx/talon/internal/report"
	"github.com/blackcoderx/talon/internal/runtime"
	"github.com/blackcoderx/talon/internal/suite"
)

var (
	version = "dev"
	commit  = "none"

	cfgFile    string
	tagExpr    string
	threads    int
	dryRun     bool
	outputDir  string
	logLevel   string
	mockAddr   string
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	rootCmd := &cobra.Command{
		Use:     "talon",
		Short:   "talon runs Gherkin-driven API test features and mock servers",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default talon.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newMockCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run one or more .feature files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := obslog.New(logLevel)
			listeners := []runtime.Listener{report.NewConsoleListener(os.Stdout)}

			orch := suite.New(suite.Options{
				Paths:     args,
				Tags:      tagExpr,
				Threads:   threads,
				DryRun:    dryRun,
				Config:    cfg,
				Log:       log,
				Listeners: listeners,
			})

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			result, err := orch.Run(ctx)
			if err != nil {
				return err
			}

			if outputDir != "" {
				if err := report.WriteSuiteSummary(outputDir, result); err != nil {
					return err
				}
				for _, f := range result.Features {
					if err := report.WriteFeatureReport(outputDir, f); err != nil {
						return err
					}
				}
			}

			for _, f := range result.Features {
				if !f.Passed() {
					return fmt.Errorf("one or more scenarios failed")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&tagExpr, "tags", "t", "", "tag expression, e.g. '@smoke and not @ignore'")
	cmd.Flags().IntVarP(&threads, "threads", "T", 1, "number of features to run concurrently")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without executing any step")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory to write JSON reports to")
	return cmd
}

func newMockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock <feature>",
		Short: "Serve a .feature file as a mock HTTP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := obslog.New(logLevel)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			f, err := gherkin.Parse(args[0], string(data))
			if err != nil {
				return err
			}

			client := httpx.NewClient()
			router := mock.NewRouter(f, cfg, log, client)
			srv := httpx.NewServer(mockAddr, router.Handle)

			log.Info("mock server listening", map[string]any{"addr": mockAddr, "feature": args[0]})
			return srv.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&mockAddr, "addr", ":8080", "address to listen on")
	return cmd
}

func loadConfig() (*model.Configuration, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("talon")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("TALON")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	cfg := model.NewConfiguration()
	cfg.CORS = v.GetBool("cors")
	if n := v.GetInt("retryCount"); n > 0 {
		cfg.RetryCount = n
	}
	return cfg, nil
}
