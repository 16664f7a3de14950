package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sluiceio/sluice/internal/common/logtrace"
	"github.com/sluiceio/sluice/internal/config"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sluice [command] [flags]",
	Short: "Sluice CLI - bounded buffered streams with live inspection",
	Long: `Sluice CLI pumps data through bounded single-producer single-consumer
streams and inspects them while they flow. It can run local pumps, serve the
HTTP inspection API, query stream statistics, and verify stream journals.

Examples:
  # Pump a JSON file through a stream and print the drained elements
  sluice run data.json

  # Pump a synthetic sequence through a small buffer in polling mode
  sluice run --count 100 --capacity 16 --mode polling

  # Start the inspection server
  sluice serve

  # Show statistics for a managed stream
  sluice stats 0198a3cd-5be4-7f3a-8a17-3c1d5ef02a11

  # Verify a stream journal
  sluice verify ~/.sluice/journal/0198a3cd-5be4-7f3a-8a17-3c1d5ef02a11.jlog`,
	PersistentPreRun: preRunHandlePersistents,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Set up persistent flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	// Add commands
	rootCmd.AddCommand(newVersionCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			kv := map[string]string{
				"error": err.Error(),
			}
			printJSON(kv)
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// preRunHandlePersistents handles persistent flags and configuration loading before command execution
func preRunHandlePersistents(cmd *cobra.Command, args []string) {
	isVersion := false
	c := cmd
	for c != nil {
		if c.Name() == "version" {
			isVersion = true
			break
		}
		c = c.Parent()
	}
	if isVersion {
		return
	}

	var err error
	if configFile != "" {
		err = config.LoadConfig(configFile)
	} else {
		err = config.LoadDefault()
	}
	if err != nil {
		errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if level := config.Config().Log.Level; level != "" {
		if err := logtrace.SetLevel(level); err != nil {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of sluice-cli",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				kv := map[string]string{
					"version": getCLIVersion(),
				}
				printJSON(kv)
			} else {
				cmd.Printf("sluice CLI %s\n", getCLIVersion())
			}
		},
	}
}

// printJSON prints the given map as JSON to stdout
func printJSON(data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(jsonData))
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0-alpha.1"
}
