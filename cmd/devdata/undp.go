package main

import (
	"context"
	"time"

	"github.com/Sternrassler/devdata-fetch/internal/config"
	"github.com/Sternrassler/devdata-fetch/internal/undp"
	"github.com/spf13/cobra"
)

type undpOptions struct {
	baseURL       string
	resumeUnit    string
	resumeProject string
}

func (o *undpOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.baseURL, "base-url", "", "UNDP API base URL")
	cmd.Flags().StringVar(&o.resumeUnit, "resume-unit", "", "Skip operating units before this id")
	cmd.Flags().StringVar(&o.resumeProject, "resume-project", "", "Within the resume unit, skip projects before this id")
}

func (o *undpOptions) override(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		if cmd.Flags().Changed("base-url") {
			cfg.UNDP.BaseURL = o.baseURL
		}
		if cmd.Flags().Changed("resume-unit") {
			cfg.UNDP.ResumeUnit = o.resumeUnit
		}
		if cmd.Flags().Changed("resume-project") {
			cfg.UNDP.ResumeProject = o.resumeProject
		}
	}
}

// newWalker prepares the app, the output store and a walker.
func newWalker(cmd *cobra.Command, g *globalOptions, o *undpOptions) (*app, *undp.Walker, error) {
	a, err := newApp(cmd, g, o.override(cmd))
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	store, err := a.openStore(ctx, a.cfg.UNDPOutputDir(time.Now()))
	if err != nil {
		return a, nil, err
	}
	c, err := a.newClient(ctx)
	if err != nil {
		return a, nil, err
	}
	return a, undp.NewWalker(c, store, a.cfg.UNDP.BaseURL), nil
}

func newProjectsCmd(g *globalOptions) *cobra.Command {
	o := &undpOptions{}
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Download UNDP operating units, projects and project documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, w, err := newWalker(cmd, g, o)
			if err != nil {
				return closeOnError(a, err)
			}
			return a.run(cmd.Context(), func(ctx context.Context) error {
				cursor := undp.NewCursor(a.cfg.UNDP.ResumeUnit, a.cfg.UNDP.ResumeProject)
				_, err := w.DownloadProjects(ctx, cursor)
				return err
			})
		},
	}
	o.register(cmd)
	return cmd
}

func newResultsCmd(g *globalOptions) *cobra.Command {
	o := &undpOptions{}
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Collect UNDP output results and derive indicator entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, w, err := newWalker(cmd, g, o)
			if err != nil {
				return closeOnError(a, err)
			}
			return a.run(cmd.Context(), func(ctx context.Context) error {
				cursor := undp.NewCursor(a.cfg.UNDP.ResumeUnit, a.cfg.UNDP.ResumeProject)
				_, err := w.CollectResults(ctx, cursor)
				return err
			})
		},
	}
	o.register(cmd)
	return cmd
}
