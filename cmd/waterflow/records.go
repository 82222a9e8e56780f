package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Lllllllleong/waterqualityflow/internal/export"
	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/Lllllllleong/waterqualityflow/internal/services"
	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Print every stored monitoring event, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRecords,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a natural-language question about the stored records",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var exportCmd = &cobra.Command{
	Use:   "export <file.xlsx>",
	Short: "Export stored records to an XLSX workbook",
	Long:  `Write one spreadsheet row per parameter measurement. With --question only the records answering that question are exported.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var (
	askJSON        bool
	exportQuestion string
)

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
	exportCmd.Flags().StringVar(&exportQuestion, "question", "", "Export only the records answering this question")
}

func runRecords(cmd *cobra.Command, args []string) error {
	st, err := platform.Store(cmd.Context())
	if err != nil {
		return err
	}
	events, err := st.ListAll(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d records\n", len(events))
	for i := range events {
		printEvent(out, i+1, &events[i])
	}
	return nil
}

func printEvent(w io.Writer, n int, e *models.MonitoringEvent) {
	fmt.Fprintf(w, "\n%d. %s [%s]\n", n, e.Client, e.ID)
	fmt.Fprintf(w, "   Fecha de muestreo: %s\n", orDash(e.SamplingDate))
	fmt.Fprintf(w, "   Tipo de agua: %s\n", orDash(e.WaterType))
	fmt.Fprintf(w, "   Punto de muestreo: %s\n", orDash(e.SamplingPoint))
	fmt.Fprintf(w, "   PDF origen: %s (%s)\n", e.SourceDocument, e.ProcessedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "   Parámetros (%d):\n", e.ParameterCount)
	for _, p := range e.Parameters {
		value := "-"
		if p.Value != nil {
			value = strconv.FormatFloat(*p.Value, 'f', -1, 64)
		}
		line := fmt.Sprintf("     - %s: %s %s", p.Parameter, value, orEmpty(p.Unit))
		if p.OriginalValue != "" && p.OriginalValue != value {
			line += fmt.Sprintf(" (original: %s)", p.OriginalValue)
		}
		fmt.Fprintln(w, line)
	}
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func runAsk(cmd *cobra.Command, args []string) error {
	query, err := services.NewQuery(cmd.Context(), platform)
	if err != nil {
		return err
	}
	res := query.Ask(cmd.Context(), args[0])

	out := cmd.OutOrStdout()
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(res)
	}

	if res.Query != "" {
		fmt.Fprintf(out, "Query: %s\n\n", res.Query)
	}
	switch res.Status {
	case models.AnswerFailed:
		fmt.Fprintf(out, "No result (%s failed): %s\n", res.Stage, res.Error)
	case models.AnswerNoResults:
		fmt.Fprintln(out, "No se encontraron resultados para esta consulta.")
	case models.AnswerRawFallback:
		fmt.Fprintf(out, "%d resultados. No se pudo generar un resumen; primeros registros:\n\n%s\n", len(res.Records), res.Summary)
	default:
		fmt.Fprintf(out, "%d resultados.\n\n%s\n", len(res.Records), res.Summary)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	events, err := exportEvents(ctx)
	if err != nil {
		return err
	}
	data, err := export.MonitoringXLSX(events)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(events), args[0])
	return nil
}

func exportEvents(ctx context.Context) ([]models.MonitoringEvent, error) {
	if exportQuestion == "" {
		st, err := platform.Store(ctx)
		if err != nil {
			return nil, err
		}
		return st.ListAll(ctx)
	}
	query, err := services.NewQuery(ctx, platform)
	if err != nil {
		return nil, err
	}
	q, err := query.Translate(ctx, exportQuestion)
	if err != nil {
		return nil, err
	}
	st, err := platform.Store(ctx)
	if err != nil {
		return nil, err
	}
	return st.Execute(ctx, q)
}
