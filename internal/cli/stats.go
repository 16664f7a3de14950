package cli

import (
	"fmt"
	"os"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/spf13/cobra"

	"github.com/sluiceio/sluice/internal/config"
	"github.com/sluiceio/sluice/pkg/api"
)

var statsServerURL string

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats STREAM_ID [flags]",
	Short: "Show the statistics of a managed stream",
	Long: `Fetch the current statistics of a stream managed by a sluice
inspection server. The lookup is retried with backoff, so a server that is
still coming up does not fail the command immediately.

Examples:
  sluice stats 123e4567-e89b-12d3-a456-426614174000
  sluice stats 123e4567-e89b-12d3-a456-426614174000 --server http://inspect.local:8468`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL := statsServerURL
		if serverURL == "" {
			serverURL = config.GetURL()
		}
		client, err := api.NewClient(serverURL, api.WithRequestTimeout(config.Config().GetRequestTimeoutOrDefault()))
		if err != nil {
			return err
		}

		var info *api.StreamInfo
		err = retry.Do(
			func() error {
				var getErr error
				info, getErr = client.GetStream(cmd.Context(), args[0])
				return getErr
			},
			retry.Attempts(3),
			retry.Delay(1*time.Second),
			retry.DelayType(retry.BackOffDelay),
		)
		if err != nil {
			return fmt.Errorf("failed to fetch stream: %w", err)
		}

		if jsonOutput {
			printJSON(info)
			return nil
		}
		printStreamInfo(info)
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsServerURL, "server", "", "Server URL (default: from config)")
	rootCmd.AddCommand(statsCmd)
}

// printStreamInfo renders one stream's info in the human readable form.
func printStreamInfo(info *api.StreamInfo) {
	label := okLabel
	if info.Error != "" {
		label = errorLabel
	}
	label.Printf("stream %s %s\n", info.StreamID, info.Stats.State)
	if info.Name != "" {
		fmt.Printf("  name:           %s\n", info.Name)
	}
	fmt.Printf("  buffered:       %d/%d\n", info.Stats.Len, info.Stats.Cap)
	fmt.Printf("  written:        %d\n", info.Stats.ItemsWritten)
	fmt.Printf("  read:           %d\n", info.Stats.ItemsRead)
	fmt.Printf("  writes failed:  %d\n", info.Stats.WritesFailed)
	fmt.Printf("  writer stalls:  %d\n", info.Stats.WriterStalls)
	fmt.Printf("  pending writes: %d\n", info.Stats.PendingWrites)
	fmt.Printf("  created:        %s\n", info.Stats.CreatedAt.Format(time.RFC3339))
	if !info.Stats.FinishedAt.IsZero() {
		fmt.Printf("  finished:       %s\n", info.Stats.FinishedAt.Format(time.RFC3339))
	}
	if info.Journal != "" {
		fmt.Printf("  journal:        %s\n", info.Journal)
	}
	if info.Error != "" {
		fmt.Fprintf(os.Stderr, "  error:          %s\n", info.Error)
	}
}
