package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Troubleshooting assistant for production incidents",
	Long: `triage answers questions about production problems. It reads the logs
linked in a question, searches its knowledge base, runs diagnostic tools
and asks an LLM for an analysis with root cause, fix and prevention.

Run "triage chat" for an interactive session or "triage serve" for the
HTTP service.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.json (default: built-in defaults and environment)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Timeout for one-shot commands")

	knowledgeCmd.AddCommand(knowledgeAddCmd, knowledgeSeedCmd, knowledgeSearchCmd)
	toolsCmd.AddCommand(toolsListCmd, toolsRunCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(fetchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
