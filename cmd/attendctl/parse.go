package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/attendance-engine/ingest"
)

type parseOptions struct {
	mappingJSON string
	profile     string
	output      string
	pretty      bool
}

func newParseCmd(root *rootOptions) *cobra.Command {
	opts := &parseOptions{}

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a clock export and print the records as JSON",
		Long: `Parse runs format detection, column resolution and row extraction over
one export file and prints the result. Nothing is stored.

The column mapping comes from --mapping (inline JSON), then --profile,
then the default profile of --profiles, then the built-in mapping.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := parseFile(root, opts.mappingJSON, opts.profile, args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, opts.output, opts.pretty, result)
		},
	}

	cmd.Flags().StringVar(&opts.mappingJSON, "mapping", "", `Inline column mapping JSON, e.g. '{"employeeId":"AC-No.","date":"Date"}'`)
	cmd.Flags().StringVar(&opts.profile, "profile", "", "Named mapping from the --profiles file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}

// parseFile reads path and runs the ingestion pipeline with the resolved mapping.
func parseFile(root *rootOptions, mappingJSON, profile, path string) (*ingest.ParseResult, error) {
	var mapping ingest.ColumnMapping
	if strings.TrimSpace(mappingJSON) != "" {
		if err := json.Unmarshal([]byte(mappingJSON), &mapping); err != nil {
			return nil, fmt.Errorf("invalid --mapping: %w", err)
		}
	} else {
		m, err := root.mappingFor(profile)
		if err != nil {
			return nil, err
		}
		mapping = m
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	result, err := ingest.Parse(data, filepath.Base(path), mapping)
	if err != nil {
		return nil, err
	}
	for _, w := range result.Warnings {
		log.Printf("[Parse] %s: skipped %s", path, w)
	}
	log.Printf("[Parse] %s: %d records from %d rows (%s)",
		path, len(result.Records), result.TotalRows, result.Metadata.FileType)
	return result, nil
}

func writeOutput(cmd *cobra.Command, path string, pretty bool, v any) error {
	var out io.Writer = cmd.OutOrStdout()
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
