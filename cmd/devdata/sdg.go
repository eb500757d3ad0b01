package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/devdata-fetch/internal/config"
	"github.com/Sternrassler/devdata-fetch/internal/sdg"
	"github.com/Sternrassler/devdata-fetch/pkg/logging"
	"github.com/spf13/cobra"
)

type sdgOptions struct {
	baseURL   string
	goals     []string
	countries []int
	forceList bool
	registry  string
	m49File   string
}

func (o *sdgOptions) override(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("base-url") {
			cfg.SDG.BaseURL = o.baseURL
		}
		if flags.Changed("goals") {
			cfg.SDG.Goals = o.goals
		}
		if flags.Changed("countries") {
			cfg.SDG.Countries = o.countries
		}
		if flags.Changed("force-list") {
			cfg.SDG.ForceList = o.forceList
		}
		if flags.Changed("registry") {
			cfg.SDG.RegistryFile = o.registry
		}
		if flags.Changed("m49") {
			cfg.SDG.M49File = o.m49File
		}
	}
}

// newLoader prepares the app, the output store and an SDG loader.
func newLoader(cmd *cobra.Command, g *globalOptions, o *sdgOptions) (*app, *sdg.Loader, error) {
	a, err := newApp(cmd, g, o.override(cmd))
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()

	registry, err := sdg.LoadRegistry(a.cfg.SDG.RegistryFile)
	if err != nil {
		return a, nil, err
	}
	countries, err := sdg.LoadCountries(a.cfg.SDG.M49File, logging.NewLogger("sdg"))
	if err != nil {
		return a, nil, err
	}
	store, err := a.openStore(ctx, a.cfg.SDGOutputDir())
	if err != nil {
		return a, nil, err
	}
	c, err := a.newClient(ctx)
	if err != nil {
		return a, nil, err
	}

	return a, sdg.NewLoader(c, store, sdg.Options{
		BaseURL:     a.cfg.SDG.BaseURL,
		Registry:    registry,
		Countries:   countries,
		IgnoreCodes: a.cfg.SDG.IgnoreCodes,
	}), nil
}

func newSDGCmd(g *globalOptions) *cobra.Command {
	o := &sdgOptions{}
	cmd := &cobra.Command{
		Use:   "sdg",
		Short: "Download SDG series data and write series metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, l, err := newLoader(cmd, g, o)
			if err != nil {
				return closeOnError(a, err)
			}
			return a.run(cmd.Context(), func(ctx context.Context) error {
				_, err := l.Run(ctx, sdg.RunOptions{
					Goals:     a.cfg.SDG.Goals,
					Countries: a.cfg.SDG.Countries,
					ForceList: a.cfg.SDG.ForceList,
				})
				return err
			})
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.baseURL, "base-url", "", "SDG API base URL")
	pf.StringVar(&o.registry, "registry", "", "Dimension registry YAML replacing the built-in one")
	pf.StringVar(&o.m49File, "m49", "M49-ISO.txt", "Tab-separated M49 to ISO table")
	cmd.Flags().StringSliceVar(&o.goals, "goals", nil, "Load only series of these goals (default all)")
	cmd.Flags().IntSliceVar(&o.countries, "countries", nil, "M49 codes to load (default built-in list)")
	cmd.Flags().BoolVar(&o.forceList, "force-list", false, "Refetch the series catalog")

	cmd.AddCommand(newSDGDimsCmd(g, o))
	return cmd
}

func newSDGDimsCmd(g *globalOptions, o *sdgOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dims <series-code>",
		Short: "Print the dimensions of a series, minus the ignored ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, l, err := newLoader(cmd, g, o)
			if err != nil {
				return closeOnError(a, err)
			}
			return a.run(cmd.Context(), func(ctx context.Context) error {
				dims, err := l.GetDims(ctx, args[0], a.cfg.SDG.IgnoreDims)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(dims, "\n"))
				return err
			})
		},
	}
}
