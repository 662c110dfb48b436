package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kirillkom/medical-rag-assistant/internal/core/usecase"
)

func newSearchCommand(cmdCtx *commandContext) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the chunks the retriever returns for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := cmdCtx.loadConfig()
			if err != nil {
				return err
			}
			if topK <= 0 {
				topK = cfg.RAGTopK
			}
			app, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			results, err := usecase.NewRetrieveUseCase(app.Embedder, app.Store).Retrieve(ctx, strings.Join(args, " "), topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				color.New(color.FgYellow).Fprintln(out, "no results, is the namespace indexed?")
				return nil
			}
			header := color.New(color.FgCyan, color.Bold).SprintFunc()
			for i, result := range results {
				fmt.Fprintf(out, "%s %s #%d score=%.3f\n", header(fmt.Sprintf("[%d]", i+1)), result.Chunk.Source, result.Chunk.Index, result.Score)
				fmt.Fprintf(out, "    %s\n", preview(result.Chunk.Text, 160))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to return (default RAG_TOP_K)")
	return cmd
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
