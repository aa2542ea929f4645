package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-thumbnail-pipeline/internal/gallery"
	"github.com/tendant/simple-thumbnail-pipeline/pkg/runner"
)

type indexOutput struct {
	Count   int            `json:"count"`
	Items   []gallery.Item `json:"items"`
	Orphans []string       `json:"orphans,omitempty"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	idx, err := runner.Index(cmd.Context(), cfg.Options, withMetadata, logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(indexOutput{
		Count:   idx.Len(),
		Items:   idx.Items(),
		Orphans: idx.Orphans(),
	})
}
