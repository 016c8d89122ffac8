// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	plugins "github.com/terraplug/terraplug/internal/plugin"
	"github.com/terraplug/terraplug/internal/plugin/descriptor"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate plugin descriptor files",
		Long: `Check each descriptor file against the descriptor schema and the
descriptor rules. Files are parsed by extension (.json, .yaml, .yml).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serializers := plugins.NewSerializerRegistry()
			if err := descriptor.Register(serializers); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				info, err := serializers.Parse(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s %s: %s\n", failColor.Sprint("FAIL"), path, descriptor.FormatSchemaError(err))
					continue
				}
				fmt.Fprintf(out, "%s %s (%s, engine %s)\n", okColor.Sprint("ok"), path, info.Name, info.Engine)
			}

			if failed > 0 {
				return oops.Code(pluginpkg.CodeInvalidDescriptor).
					With("failed", failed).
					Errorf("%d of %d descriptors are invalid", failed, len(args))
			}
			return nil
		},
	}
}
