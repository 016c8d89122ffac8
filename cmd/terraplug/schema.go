// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/terraplug/terraplug/internal/plugin/descriptor"
	"github.com/terraplug/terraplug/internal/xdg"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the plugin descriptor JSON Schema",
		Long:  `Print the JSON Schema plugin descriptors are validated against, or write it to a file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := descriptor.GenerateSchema()
			if err != nil {
				return err
			}
			schema = append(schema, '\n')

			if out == "" {
				_, err := cmd.OutOrStdout().Write(schema)
				return err
			}

			if err := xdg.EnsureDir(filepath.Dir(out)); err != nil {
				return err
			}
			if err := os.WriteFile(out, schema, 0o600); err != nil {
				return oops.With("path", out).Wrapf(err, "failed to write schema")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the schema to this file instead of stdout")
	return cmd
}
