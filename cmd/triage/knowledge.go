package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go-triage/internal/knowledge"
	"go-triage/internal/llm"

	"github.com/spf13/cobra"
)

var (
	knowledgeCategory string
	knowledgeTags     []string
	knowledgeTopK     int
	seedFile          string
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the troubleshooting knowledge base",
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add an entry to the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKnowledgeAdd,
}

var knowledgeSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed an empty knowledge base from a YAML file or the built-in entries",
	Args:  cobra.NoArgs,
	RunE:  runKnowledgeSeed,
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKnowledgeSearch,
}

func init() {
	knowledgeAddCmd.Flags().StringVar(&knowledgeCategory, "category", "", "Category stored with the entry")
	knowledgeAddCmd.Flags().StringSliceVar(&knowledgeTags, "tag", nil, "Tags stored with the entry (repeatable)")
	knowledgeSeedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML seed file (overrides knowledge.seed_file)")
	knowledgeSearchCmd.Flags().IntVarP(&knowledgeTopK, "top", "k", 0, "Number of results (default: knowledge.top_k)")
}

func runKnowledgeAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var metadata map[string]any
	if knowledgeCategory != "" || len(knowledgeTags) > 0 {
		tags := make([]any, 0, len(knowledgeTags))
		for _, t := range knowledgeTags {
			tags = append(tags, t)
		}
		metadata = map[string]any{
			"source":    "cli",
			"category":  knowledgeCategory,
			"tags":      tags,
			"timestamp": time.Now().Format(time.RFC3339),
		}
	}
	if err := a.kb.Add(llm.WithPriority(ctx, llm.PriorityBackground), strings.Join(args, " "), metadata); err != nil {
		return err
	}
	count, _ := a.kb.Count(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "Added. The knowledge base now holds %d entries.\n", count)
	return nil
}

func runKnowledgeSeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if seedFile != "" {
		a.cfg.Knowledge.SeedFile = seedFile
	}
	n, err := a.seed(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Knowledge base is not empty; nothing seeded.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d entries.\n", n)
	return nil
}

func runKnowledgeSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	k := knowledgeTopK
	if k <= 0 {
		k = a.cfg.Knowledge.TopK
	}
	results, err := a.kb.Search(ctx, strings.Join(args, " "), k)
	if err != nil {
		return err
	}
	printKnowledge(cmd.OutOrStdout(), results)
	return nil
}

func printKnowledge(out io.Writer, results []knowledge.Result) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No matching entries.")
		return
	}
	for i, r := range results {
		category, _ := r.Metadata["category"].(string)
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(out, "%d. [%.3f] (%s) %s\n", i+1, r.Score, category, r.Content)
	}
}
