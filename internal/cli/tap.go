package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sluiceio/sluice/internal/config"
	"github.com/sluiceio/sluice/pkg/api"
)

var tapServerURL string

// tapCmd represents the tap command
var tapCmd = &cobra.Command{
	Use:   "tap STREAM_ID [flags]",
	Short: "Follow the elements draining out of a managed stream",
	Long: `Attach to a stream managed by a sluice inspection server and print the
elements it drains, one JSON value per line, until the stream closes or
errors. Lifecycle events are printed to stderr.

Examples:
  sluice tap 123e4567-e89b-12d3-a456-426614174000
  sluice tap 123e4567-e89b-12d3-a456-426614174000 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL := tapServerURL
		if serverURL == "" {
			serverURL = config.GetURL()
		}
		client, err := api.NewClient(serverURL, api.WithRequestTimeout(config.Config().GetRequestTimeoutOrDefault()))
		if err != nil {
			return err
		}

		body, err := client.TapStream(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to attach tap: %w", err)
		}
		defer body.Close()

		reader := bufio.NewReader(body)
		for {
			line, err := reader.ReadString('\n')
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("tap interrupted: %w", err)
			}
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			printTapEvent(strings.TrimPrefix(line, "data: "))
		}
		return nil
	},
}

func init() {
	tapCmd.Flags().StringVar(&tapServerURL, "server", "", "Server URL (default: from config)")
	rootCmd.AddCommand(tapCmd)
}

// printTapEvent renders one server-sent event. Elements go to stdout so the
// tap can be piped; lifecycle events go to stderr.
func printTapEvent(payload string) {
	var event api.TapEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return
	}
	if jsonOutput {
		printJSON(event)
		return
	}
	switch event.Kind {
	case api.TapElement:
		data, err := json.Marshal(event.Element)
		if err != nil {
			return
		}
		fmt.Println(string(data))
	case api.TapLifecycle:
		if event.Error != "" {
			errorLabel.Fprintf(os.Stderr, "stream %s %s: %s\n", event.StreamID, event.State, event.Error)
			return
		}
		okLabel.Fprintf(os.Stderr, "stream %s %s\n", event.StreamID, event.State)
	}
}
