package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulexconde/justasking/internal/logic"
	"github.com/paulexconde/justasking/internal/pkg/workerpool"
	"github.com/paulexconde/justasking/internal/surveyfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type fileReport struct {
	Path     string        `json:"path"`
	Errors   []logic.Issue `json:"errors,omitempty"`
	Warnings []logic.Issue `json:"warnings,omitempty"`
	Failure  string        `json:"failure,omitempty"` // file could not be read
}

func (r fileReport) ok() bool {
	return r.Failure == "" && len(r.Errors) == 0
}

func (a *app) validateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check survey files for rule authoring errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := a.validateFiles(cmd.Context(), args)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				printReports(cmd.OutOrStdout(), reports)
			}

			failed := 0
			for _, r := range reports {
				if !r.ok() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d survey files invalid", failed, len(reports))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	return cmd
}

// validateFiles checks every file on the worker pool. Reports keep the order
// of paths.
func (a *app) validateFiles(ctx context.Context, paths []string) ([]fileReport, error) {
	pool := workerpool.NewWorkerPool(ctx, a.cfg.Workers.Count, a.cfg.Workers.Queue, a.log)
	reports := make([]fileReport, len(paths))

	for i, path := range paths {
		err := pool.Submit(ctx, func(context.Context) {
			reports[i] = a.validateFile(path)
		})
		if err != nil {
			return nil, err
		}
	}

	if err := pool.Shutdown(ctx); err != nil {
		return nil, err
	}
	return reports, nil
}

func (a *app) validateFile(path string) fileReport {
	def, err := surveyfile.Load(path)
	if err != nil {
		a.log.Warn("survey file unreadable", zap.String("path", path), zap.Error(err))
		return fileReport{Path: path, Failure: err.Error()}
	}

	report := logic.Validate(def.Survey, def.Rules)
	a.log.Debug("survey file validated",
		zap.String("path", path),
		zap.String("survey_id", def.Survey.ID),
		zap.Int("rules", len(def.Rules)),
		zap.Int("errors", len(report.Errors)),
		zap.Int("warnings", len(report.Warnings)),
	)
	return fileReport{Path: path, Errors: report.Errors, Warnings: report.Warnings}
}

func printReports(w io.Writer, reports []fileReport) {
	for _, r := range reports {
		switch {
		case r.Failure != "":
			fmt.Fprintf(w, "%s: %s\n", r.Path, r.Failure)
			continue
		case r.ok() && len(r.Warnings) == 0:
			fmt.Fprintf(w, "%s: ok\n", r.Path)
			continue
		}

		fmt.Fprintf(w, "%s:\n", r.Path)
		for _, issue := range r.Errors {
			fmt.Fprintf(w, "  %s\n", issue)
		}
		for _, issue := range r.Warnings {
			fmt.Fprintf(w, "  %s\n", issue)
		}
	}
}
