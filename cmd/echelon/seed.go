package main

import (
	"fmt"
	"io"
	"os"

	"echelon/internal/codec"
	"echelon/internal/loader"

	"github.com/spf13/cobra"
)

func seedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import and export teams, CCIRs and raw data",
	}
	cmd.AddCommand(seedImportCmd(a), seedExportCmd(a))
	return cmd
}

func seedImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Load a seed file (.json, else nested YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := loader.LoadSeed(args[0])
			if err != nil {
				return err
			}
			msg, err := a.svc.ImportSeed(cmd.Context(), seed)
			if err != nil {
				return err
			}
			if err := a.coord.Refresh(cmd.Context()); err != nil {
				return err
			}
			return printMessage(a, cmd, msg)
		},
	}
}

func seedExportCmd(a *app) *cobra.Command {
	var (
		format string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every team, CCIR and raw observation as a seed document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := codec.ForFormat(format)
			if err != nil {
				return err
			}
			if file != "" && !cmd.Flags().Changed("format") {
				c = codec.ForPath(file)
			}

			seed, err := a.svc.ExportSeed(cmd.Context())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if file != "" {
				f, err := os.Create(file)
				if err != nil {
					return fmt.Errorf("create %s: %w", file, err)
				}
				defer f.Close()
				w = f
			}
			return c.Export(seed, w)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "seed format: yaml, json")
	cmd.Flags().StringVar(&file, "file", "", "write to a file instead of stdout")
	return cmd
}
