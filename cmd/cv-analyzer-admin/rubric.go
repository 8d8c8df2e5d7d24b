package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hanifsetyadi/cv-analyzer/internal/adapters/gemini"
	"github.com/hanifsetyadi/cv-analyzer/internal/data"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	"github.com/hanifsetyadi/cv-analyzer/internal/service"
)

// rubricFiles names the text files that make up one rubric set.
type rubricFiles struct {
	JobTitle       string
	CVRubric       string
	JobDescription string
	ProjectRubric  string
}

func (f rubricFiles) read() (*model.CreateRubricRequest, error) {
	if f.JobTitle == "" {
		return nil, errors.New("--job-title is required")
	}
	req := &model.CreateRubricRequest{JobTitle: f.JobTitle}
	for _, src := range []struct {
		flag, path string
		dst        *string
	}{
		{"--cv-rubric", f.CVRubric, &req.CVRubric},
		{"--job-description", f.JobDescription, &req.JobDescription},
		{"--project-rubric", f.ProjectRubric, &req.ProjectRubric},
	} {
		if src.path == "" {
			return nil, fmt.Errorf("%s is required", src.flag)
		}
		b, err := os.ReadFile(src.path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src.flag, err)
		}
		*src.dst = string(b)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func newRubricCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rubric",
		Short: "Manage the rubric retrieval index",
	}
	cmd.AddCommand(newRubricAddCmd(a))
	return cmd
}

func newRubricAddCmd(a *app) *cobra.Command {
	var files rubricFiles
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Embed and index a rubric set from text files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := files.read()
			if err != nil {
				return err
			}
			return a.withDatabase(cmd.Context(), 0, func(ctx context.Context, db *sql.DB) error {
				client, err := gemini.NewClient(ctx, gemini.Options{Config: a.cfg.Gemini, Logger: a.logger})
				if err != nil {
					return err
				}
				svc, err := service.NewRubricService(service.RubricServiceOptions{
					Repo:     data.NewRubricRepo(db),
					Embedder: client,
					Logger:   a.logger,
				})
				if err != nil {
					return err
				}
				docs, err := svc.Create(ctx, req)
				if err != nil {
					return err
				}
				return printRubricDocs(cmd.OutOrStdout(), docs)
			})
		},
	}
	cmd.Flags().StringVarP(&files.JobTitle, "job-title", "t", "", "Job title the rubric applies to")
	cmd.Flags().StringVar(&files.CVRubric, "cv-rubric", "", "Path to the CV scoring rubric")
	cmd.Flags().StringVar(&files.JobDescription, "job-description", "", "Path to the job description")
	cmd.Flags().StringVar(&files.ProjectRubric, "project-rubric", "", "Path to the project scoring rubric")
	return cmd
}

func printRubricDocs(w io.Writer, docs []model.RubricDocument) error {
	for _, d := range docs {
		if _, err := fmt.Fprintf(w, "indexed %s (%s)\n", d.ID, d.Kind); err != nil {
			return err
		}
	}
	return nil
}
