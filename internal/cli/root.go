// Package cli provides the command-line interface for the alert pipeline.
package cli

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fii-alerts/internal/compose"
	"fii-alerts/internal/config"
	"fii-alerts/internal/dispatch"
	"fii-alerts/internal/fetch"
	"fii-alerts/internal/llm"
	"fii-alerts/internal/logging"
	"fii-alerts/internal/pipeline"
	"fii-alerts/internal/resolve"
	"fii-alerts/internal/store"
	"fii-alerts/internal/ticker"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      store.DataStore
	Fetcher    *fetch.Client
	Matcher    *ticker.Matcher
	Dispatcher *dispatch.Dispatcher
	Composer   *compose.Composer
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	app.Fetcher = fetch.NewClient(fetch.Options{
		Timeout:   cfg.HTTPTimeout(),
		UserAgent: cfg.Sources.UserAgent,
		MaxHops:   cfg.Sources.MaxRedirectHops,
	})

	dataStore, err := store.NewSQLiteStore(cfg.Database.Path, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize store, database commands unavailable")
	} else {
		app.Store = dataStore
	}

	listing := ticker.NewBrapiListing(app.Fetcher, cfg.Sources.BrapiBaseURL, cfg.Credentials.Brapi.Token)
	app.Matcher = ticker.NewMatcher(listing, cfg.ListingTTL(), logger)

	app.Composer = compose.NewComposer(newSummarizer(cfg, logger), cfg.SummaryTimeout(), logger)

	app.Dispatcher = dispatch.NewDispatcher(dispatch.Config{
		BaseURL:        cfg.Credentials.Gateway.BaseURL,
		Token:          cfg.Credentials.Gateway.Token,
		Instance:       cfg.Credentials.Gateway.Instance,
		Timeout:        cfg.HTTPTimeout(),
		MessagesPerSec: cfg.Pipeline.MessagesPerSec,
		Burst:          cfg.Pipeline.DispatchBurst,
	}, logger)

	rootCmd := &cobra.Command{
		Use:   "fii-alerts",
		Short: "FII Alerts - WhatsApp notification pipeline for Brazilian real-estate funds",
		Long: `FII Alerts polls financial data sources for new fund filings, price moves
and dividend announcements, and notifies subscribers over WhatsApp.

Poll commands run as finite batch jobs intended for cron. They preview by
default; pass --send to actually dispatch messages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/fii-alerts)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newPollCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newLedgerCmd(app))
	rootCmd.AddCommand(newSubscribersCmd(app))

	return rootCmd
}

// newSummarizer builds the configured summarization client, or nil when
// summarization is disabled or unconfigured.
func newSummarizer(cfg *config.Config, logger zerolog.Logger) llm.Client {
	if !cfg.Summary.Enabled {
		return nil
	}

	opts := llm.Options{
		Model:       cfg.Summary.Model,
		MaxTokens:   cfg.Summary.MaxTokens,
		Temperature: cfg.Summary.Temperature,
	}

	switch cfg.Summary.Provider {
	case "groq":
		if cfg.Credentials.Groq.APIKey == "" {
			logger.Debug().Msg("groq api key not set, summarization disabled")
			return nil
		}
		return llm.NewGroqClient(cfg.Credentials.Groq.APIKey, cfg.Credentials.Groq.BaseURL, opts)
	default:
		if cfg.Credentials.Gemini.APIKey == "" {
			logger.Debug().Msg("gemini api key not set, summarization disabled")
			return nil
		}
		client, err := llm.NewGeminiClient(context.Background(), cfg.Credentials.Gemini.APIKey, opts)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize gemini client, summarization disabled")
			return nil
		}
		return client
	}
}

// newPipeline builds a pipeline over the app dependencies.
func (app *App) newPipeline() *pipeline.Pipeline {
	resolver := resolve.NewResolver(app.Store, app.Logger)
	return pipeline.New(app.Store, app.Matcher, resolver, app.Composer, app.Dispatcher, app.Logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("FII Alerts v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Database")
	output.Printf("  Path:            %s\n", cfg.Database.Path)
	output.Println()

	output.Bold("Pipeline")
	output.Printf("  Retention:       %d days\n", cfg.Pipeline.RetentionDays)
	output.Printf("  Rate:            %.2f msg/s (burst %d)\n", cfg.Pipeline.MessagesPerSec, cfg.Pipeline.DispatchBurst)
	output.Printf("  Price threshold: %.1f%%\n", cfg.Pipeline.PriceThreshold)
	output.Printf("  BTC threshold:   %.1f%% every %s\n", cfg.Pipeline.BitcoinThreshold, cfg.Pipeline.BitcoinInterval)
	output.Println()

	output.Bold("Sources")
	output.Printf("  HTTP timeout:    %s\n", cfg.Sources.HTTPTimeout)
	output.Printf("  Redirect hops:   %d\n", cfg.Sources.MaxRedirectHops)
	output.Printf("  Listing TTL:     %s\n", cfg.Sources.ListingTTL)
	output.Println()

	output.Bold("Summarization")
	output.Printf("  Enabled:         %v\n", cfg.Summary.Enabled)
	output.Printf("  Provider:        %s (%s)\n", cfg.Summary.Provider, cfg.Summary.Model)
	output.Printf("  Budget:          %d tokens @ %.1f\n", cfg.Summary.MaxTokens, cfg.Summary.Temperature)

	return nil
}
