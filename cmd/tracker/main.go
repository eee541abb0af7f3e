// Command tracker inspects an activity board from the terminal: it loads the
// seed, optionally the published feed and local sheets, and prints views.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"example.com/sitetracker/internal/domain"
	"example.com/sitetracker/internal/feed"
	"example.com/sitetracker/internal/logging"
	"example.com/sitetracker/internal/seed"
	"example.com/sitetracker/internal/tracker"
)

var (
	seedFile  string
	feedURL   string
	files     []string
	logLevel  string
	timeout   time.Duration
	newLogger = func() zerolog.Logger { return logging.New(logLevel, "console") }
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Inspect the branch build-out activity board",
	Long: `tracker loads the activity board the same way the service does and
prints it from the terminal.

The board starts from the built-in seed (or --seed). With --feed the published
sheet replaces it, and every --file is merged on top as an uploaded sheet.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&seedFile, "seed", "", "YAML seed file (default: built-in activities)")
	rootCmd.PersistentFlags().StringVar(&feedURL, "feed", "", "Published CSV sheet to load instead of the seed")
	rootCmd.PersistentFlags().StringSliceVarP(&files, "file", "f", nil, "CSV sheet to merge (repeatable)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	viewCmd.Flags().StringVarP(&viewSearch, "search", "s", "", "Case-insensitive text filter")
	viewCmd.Flags().StringVar(&viewStatus, "status", "all", "Status filter (all, pending, in_progress, completed or board labels)")

	pushCmd.Flags().StringSliceVar(&pushBrokers, "brokers", []string{"localhost:9092"}, "Kafka brokers")
	pushCmd.Flags().StringVar(&pushTopic, "topic", "activity_rows", "Row stream topic")
	pushCmd.Flags().StringVar(&pushSource, "source", "", "Source label attached to the rows")

	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(pushCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadService builds a tracker service from the persistent flags.
func loadService(ctx context.Context) (*tracker.Service, error) {
	initial, err := seed.Load(seedFile)
	if err != nil {
		return nil, err
	}
	logger := newLogger()
	service := tracker.NewService(domain.NewWorkingSet(initial, 0), tracker.WithLogger(logger))

	if feedURL != "" {
		if _, err := service.RefreshFeed(ctx, feed.NewHTTPSource(feedURL, timeout)); err != nil {
			logger.Warn().Err(err).Msg("feed not loaded, showing seed activities")
		}
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		result, err := service.ImportFile(ctx, path, string(data))
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", path, err)
		}
		logger.Info().Str("file", path).Int("accepted", result.Accepted).Int("rejected", result.Rejected).Msg("sheet merged")
	}
	return service, nil
}
