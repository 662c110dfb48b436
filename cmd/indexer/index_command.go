package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/storage/localfs"
)

func newBuildCommand(cmdCtx *commandContext) *cobra.Command {
	var dir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Replace the namespace with every supported document in a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, cmdCtx, dir, dryRun, false)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Documents directory (default DOCUMENTS_PATH)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Extract and report documents without touching the index")
	return cmd
}

func newAppendCommand(cmdCtx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Add the documents of a directory to the namespace without resetting it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, cmdCtx, dir, false, true)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Documents directory (default DOCUMENTS_PATH)")
	return cmd
}

func runIndex(cmd *cobra.Command, cmdCtx *commandContext, dirFlag string, dryRun, appendOnly bool) error {
	ctx := cmd.Context()
	cfg, err := cmdCtx.loadConfig()
	if err != nil {
		return err
	}
	dir := documentsDir(dirFlag, cfg)
	if err := requireDir(dir); err != nil {
		return err
	}

	storage, err := localfs.New(dir)
	if err != nil {
		return err
	}
	docs, skipped, err := loadDocuments(ctx, storage)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSkipped(out, skipped)
	if len(docs) == 0 {
		return fmt.Errorf("no indexable documents in %s", dir)
	}
	if dryRun {
		color.New(color.FgCyan).Fprintf(out, "dry run: %d documents ready in %s\n", len(docs), dir)
		return nil
	}

	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	start := time.Now()
	var report domain.IndexReport
	if appendOnly {
		report, err = app.Indexer.Append(ctx, docs)
	} else {
		report, err = app.Indexer.Index(ctx, docs)
	}
	printReport(out, report, time.Since(start), err)
	return err
}

func printSkipped(out io.Writer, skipped []skippedFile) {
	warn := color.New(color.FgYellow).SprintFunc()
	for _, s := range skipped {
		fmt.Fprintf(out, "%s %s: %s\n", warn("skipped"), s.Key, s.Reason)
	}
}

func printReport(out io.Writer, report domain.IndexReport, elapsed time.Duration, err error) {
	bold := color.New(color.Bold).SprintFunc()
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(out, "indexing failed after %d chunks\n", report.Indexed)
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintln(out, "index ready")
	fmt.Fprintf(out, "  namespace: %s\n", bold(report.Namespace))
	fmt.Fprintf(out, "  documents: %d\n", report.Documents)
	fmt.Fprintf(out, "  chunks:    %d\n", report.Indexed)
	fmt.Fprintf(out, "  elapsed:   %s\n", elapsed.Round(time.Millisecond))
}
