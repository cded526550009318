// fxstream — real-time exchange-rate subscription and broadcast service
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/fxstream/api"
	"github.com/seenimoa/fxstream/internal/config"
	"github.com/seenimoa/fxstream/internal/provider"
	"github.com/seenimoa/fxstream/internal/providers"
	"github.com/seenimoa/fxstream/pkg/models"
	"github.com/seenimoa/fxstream/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fxstream",
	Short: "fxstream — real-time exchange-rate subscription and broadcast service",
	Long: `fxstream serves live currency exchange rates over websockets.
Clients subscribe to currency pairs and receive periodic rate updates;
duplicate upstream fetches are coalesced across subscribers of the same
pair. One-shot conversions and 30-day historical series ride the same
channel or the REST passthrough.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(historyCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fxstream %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rate subscription server",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := providers.RegisterAll(cfg)
		srv, err := api.NewServer(cfg, reg)
		if err != nil {
			return err
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("Starting fxstream on %s (provider: %s, broadcast every %ds)\n",
			addr, cfg.Upstream.Provider, cfg.Broadcast.IntervalSec)
		return srv.ListenAndServe(addr)
	},
}

// --- One-shot Commands ---

var rateCmd = &cobra.Command{
	Use:   "rate FROM TO",
	Short: "Fetch the latest rate for a currency pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := configuredSource()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Upstream.Timeout())
		defer cancel()

		pair := models.NewPair(args[0], args[1])
		quote, err := source.Latest(ctx, pair)
		if err != nil {
			return err
		}
		fmt.Printf("%s = %v (as of %s)\n", pair, quote.Rate, utils.FormatDate(quote.AsOfDate))
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert AMOUNT FROM TO",
	Short: "Convert an amount between currencies",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("amount %q is not numeric", args[0])
		}
		if err := models.ValidateAmount(amount); err != nil {
			return err
		}

		source, err := configuredSource()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Upstream.Timeout())
		defer cancel()

		pair := models.NewPair(args[1], args[2])
		result, err := source.Convert(ctx, amount, pair)
		if err != nil {
			return err
		}
		fmt.Printf("%v %s = %v %s (rate %v, as of %s)\n",
			result.Amount, pair.From, result.ConvertedAmount, pair.To,
			result.Rate, utils.FormatDate(result.AsOfDate))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history FROM TO",
	Short: "Fetch the trailing 30-day rate series for a pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("expected FROM and TO currency codes")
		}

		source, err := configuredSource()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pair := models.NewPair(args[0], args[1])
		start, end := utils.TrailingWindow(30)
		series, err := source.History(ctx, pair, start, end)
		if err != nil {
			return err
		}
		for _, pt := range series.Points {
			fmt.Printf("%s  %v\n", utils.FormatDate(pt.Date), pt.Rate)
		}
		return nil
	},
}

func configuredSource() (provider.Provider, error) {
	reg := providers.RegisterAll(cfg)
	return reg.Get(cfg.Upstream.Provider)
}
