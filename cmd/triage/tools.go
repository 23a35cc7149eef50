package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go-triage/internal/tools"

	"github.com/spf13/cobra"
)

var toolParams string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List or run the diagnostic tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools",
	Args:  cobra.NoArgs,
	RunE:  runToolsList,
}

var toolsRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a tool with JSON parameters",
	Example: `  triage tools run analyze_logs --params '{"log_type":"error","time_range":"2h"}'
  triage tools run check_system_metrics`,
	Args: cobra.ExactArgs(1),
	RunE: runToolsRun,
}

func init() {
	toolsRunCmd.Flags().StringVarP(&toolParams, "params", "p", "{}", "Tool parameters as a JSON object")
}

func runToolsList(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()
	printTools(cmd.OutOrStdout(), a.tools.List())
	return nil
}

func printTools(out io.Writer, infos []tools.Info) {
	if len(infos) == 0 {
		fmt.Fprintln(out, "No tools enabled.")
		return
	}
	for _, info := range infos {
		fmt.Fprintf(out, "%-22s %s\n", info.Name, info.Description)
	}
}

func runToolsRun(cmd *cobra.Command, args []string) error {
	params, err := parseParams(toolParams)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.tools.Get(args[0]); err != nil {
		return err
	}
	res := a.tools.Execute(ctx, args[0], params)
	raw, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	if !res.Success {
		return fmt.Errorf("tool %s failed: %s", args[0], res.Error)
	}
	return nil
}

func parseParams(raw string) (map[string]any, error) {
	params := map[string]any{}
	if raw == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("--params must be a JSON object: %w", err)
	}
	return params, nil
}
