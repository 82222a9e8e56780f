package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf|directory>...",
	Short: "Upload PDF reports to the raw bucket",
	Long:  `Upload PDF files to the raw bucket under their base name. A directory argument uploads every *.pdf it contains. Failed files are reported and skipped.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the PDFs in the raw bucket",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	raw, err := platform.RawStore(ctx)
	if err != nil {
		return err
	}

	paths, err := expandPDFs(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files found")
	}

	var failed int
	for i, p := range paths {
		name, err := raw.Upload(ctx, p)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] ERROR %s: %v\n", i+1, len(paths), p, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s -> gs://%s/%s\n", i+1, len(paths), p, raw.Bucket(), name)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d of %d files.\n", len(paths)-failed, len(paths))
	if failed > 0 {
		return fmt.Errorf("%d uploads failed", failed)
	}
	return nil
}

// expandPDFs replaces directory arguments with the PDFs directly inside them.
func expandPDFs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				paths = append(paths, filepath.Join(arg, e.Name()))
			}
		}
	}
	return paths, nil
}

func runList(cmd *cobra.Command, args []string) error {
	raw, err := platform.RawStore(cmd.Context())
	if err != nil {
		return err
	}
	objects, err := raw.List(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d PDFs in gs://%s\n", len(objects), raw.Bucket())
	for _, o := range objects {
		fmt.Fprintf(out, "  %s (%.2f KB)\n", o.Name, float64(o.Size)/1024)
	}
	return nil
}
