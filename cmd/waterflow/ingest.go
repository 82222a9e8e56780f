package main

import (
	"fmt"

	"github.com/Lllllllleong/waterqualityflow/internal/services"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [object...]",
	Short: "Extract monitoring events from stored PDFs",
	Long:  `Run stored PDFs through layout analysis and structured extraction and save the resulting monitoring events. With --all every object in the bucket is ingested. Documents that fail are logged and skipped.`,
	RunE:  runIngest,
}

var (
	ingestAll         bool
	ingestConcurrency int
)

func init() {
	ingestCmd.Flags().BoolVar(&ingestAll, "all", false, "Ingest every object in the raw bucket")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 1, "Number of documents ingested in parallel")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	names := args
	if ingestAll {
		raw, err := platform.RawStore(ctx)
		if err != nil {
			return err
		}
		objects, err := raw.List(ctx)
		if err != nil {
			return err
		}
		names = nil
		for _, o := range objects {
			names = append(names, o.Name)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("name at least one object or pass --all")
	}

	ingest, err := services.NewIngest(ctx, platform)
	if err != nil {
		return err
	}

	results, failed := ingest.IngestAll(ctx, names, ingestConcurrency)
	out := cmd.OutOrStdout()
	total := 0
	for i, res := range results {
		if res == nil {
			fmt.Fprintf(out, "  %s: FAILED\n", names[i])
			continue
		}
		total += len(res.RecordIDs)
		fmt.Fprintf(out, "  %s: %s, %d records, %d pages, %d tables\n", res.SourceDocument, res.Status, len(res.RecordIDs), res.Pages, res.Tables)
	}
	fmt.Fprintf(out, "Ingested %d of %d documents, %d records saved.\n", len(names)-failed, len(names), total)
	if failed > 0 {
		return fmt.Errorf("%d documents failed", failed)
	}
	return nil
}
