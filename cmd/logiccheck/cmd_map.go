package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulexconde/justasking/internal/logic"
	"github.com/paulexconde/justasking/internal/surveyfile"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) mapCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "map <file>",
		Short: "Print the logic map (questions and rule edges) of a survey file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := surveyfile.Load(args[0])
			if err != nil {
				return err
			}
			return writeMap(cmd.OutOrStdout(), logic.BuildMap(def.Survey, def.Rules), format)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "json", "output format: json or yaml")
	return cmd
}

func writeMap(w io.Writer, m logic.Map, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}
