package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/Lllllllleong/waterqualityflow/internal/gcp"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify access to every external service",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

type probe struct {
	name string
	run  func(ctx context.Context) error
}

func runCheck(cmd *cobra.Command, args []string) error {
	probes := []probe{
		{"Cloud Storage (" + cfg.RawPDFBucket + ")", func(ctx context.Context) error {
			raw, err := platform.RawStore(ctx)
			if err != nil {
				return err
			}
			return raw.Ping(ctx)
		}},
		{"Document AI", func(ctx context.Context) error {
			client, err := platform.DocumentAI(ctx)
			if err != nil {
				return err
			}
			name := gcp.ProcessorName(cfg.ProjectID, cfg.DocumentAILocation, cfg.DocumentAIProcessorID)
			_, err = client.GetProcessor(ctx, &documentaipb.GetProcessorRequest{Name: name})
			return err
		}},
		{"Vertex AI (" + cfg.GeminiModel + ")", func(ctx context.Context) error {
			vertex, err := platform.Vertex(ctx)
			if err != nil {
				return err
			}
			_, err = vertex.ProbeModel.Generate(ctx, "Hola")
			return err
		}},
		{"Store (" + cfg.StoreBackend + ")", func(ctx context.Context) error {
			st, err := platform.Store(ctx)
			if err != nil {
				return err
			}
			return st.Ping(ctx)
		}},
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, p := range probes {
		if err := p.run(cmd.Context()); err != nil {
			failed++
			fmt.Fprintf(out, "ERROR %s: %v\n", p.name, err)
			continue
		}
		fmt.Fprintf(out, "OK    %s\n", p.name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d services unreachable", failed, len(probes))
	}
	return nil
}
