package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go-triage/internal/agent"

	"github.com/spf13/cobra"
)

var chatVerbose bool

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask one question, or start an interactive session",
	Long: `With a question, prints one answer and exits. Without one, starts an
interactive session:

  quit, exit   leave
  /clear       forget the conversation so far
  /history     show the conversation so far`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "Show progress while the agent works")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.seedQuietly(ctx)

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ask(ctx, a.agent, out, strings.Join(args, " "))
	}
	return repl(ctx, a.agent, cmd.InOrStdin(), out)
}

func repl(ctx context.Context, ag *agent.Agent, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Describe the problem (paste log paths or URLs inline). Type quit to exit.")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "/clear":
			ag.ClearHistory()
			fmt.Fprintln(out, "History cleared.")
			continue
		case "/history":
			printHistory(out, ag.History())
			continue
		}
		if err := ask(ctx, ag, out, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

func ask(ctx context.Context, ag *agent.Agent, out io.Writer, question string) error {
	var observe agent.Observer
	if chatVerbose {
		observe = func(ev agent.Event) {
			fmt.Fprintf(out, "  ... %s: %s\n", ev.Stage, ev.Message)
		}
	}
	res, err := ag.ChatIn(ctx, ag.Conversation(), question, nil, observe)
	if err != nil {
		fmt.Fprintln(out, res.Response)
		return err
	}
	printToolSteps(out, res.Reasoning)
	fmt.Fprintln(out)
	fmt.Fprintln(out, res.Response)
	return nil
}

func printToolSteps(out io.Writer, r *agent.Reasoning) {
	if r == nil {
		return
	}
	for _, step := range r.ToolSteps() {
		args, _ := json.Marshal(step.Arguments)
		status := "ok"
		if step.Result != nil && !step.Result.Success {
			status = "failed: " + step.Result.Error
		}
		fmt.Fprintf(out, "  [tool] %s %s -> %s\n", step.Tool, args, status)
	}
}

func printHistory(out io.Writer, turns []agent.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(out, "No history yet.")
		return
	}
	for i, t := range turns {
		fmt.Fprintf(out, "%d. [%s] %s\n   %s\n", i+1, t.Timestamp, t.Query, firstLine(t.Response))
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
