package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"tbdash/domain/mapview"
	"tbdash/internal"
	"tbdash/internal/config"
	"tbdash/internal/container"
	"tbdash/internal/testkit"
	"tbdash/ui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "tbdash-dev",
		Short:        "TB dashboard development tools",
		SilenceUsage: true,
	}

	var seed int64
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", testkit.DefaultWHOConfig().Seed, "seed of the synthetic dataset")

	rootCmd.AddCommand(
		newServeCmd(&seed),
		newSmokeTestCmd(&seed),
		newDeterminismTestCmd(&seed),
	)
	return rootCmd
}

// syntheticContainer wires the application over a generated dataset. One
// year is left empty so the valid-year filter is always exercised.
func syntheticContainer(seed int64) (*container.Container, error) {
	gen := testkit.DefaultWHOConfig()
	gen.Seed = seed
	gen.EmptyYears = []int{gen.StartYear + 1}
	table, err := testkit.NewWHODataGenerator(gen).Table()
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Port: config.DefaultPort, GinMode: gin.DebugMode},
		Data:   config.DataConfig{DefaultFeature: config.DefaultFeatureID},
		Map: config.MapConfig{
			ColorScale: config.DefaultColorScale,
			Projection: config.DefaultProjection,
			Width:      config.DefaultWidth,
			Height:     config.DefaultHeight,
		},
		Metrics: config.MetricsConfig{Enabled: true},
	}
	c, err := container.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.InitWithTable(table); err != nil {
		return nil, err
	}
	return c, nil
}

func newServeCmd(seed *int64) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard on a synthetic dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			internal.DefaultLogger.SetLevel(internal.LogLevelDebug)
			c, err := syntheticContainer(*seed)
			if err != nil {
				return err
			}
			dashboard, err := c.Dashboard(ui.AboutMarkdown())
			if err != nil {
				return err
			}
			server, err := ui.NewServer(dashboard, ui.ServerOptions{GinMode: gin.DebugMode, MetricsEnabled: true})
			if err != nil {
				return err
			}
			return server.Start(":" + port)
		},
	}
	cmd.Flags().StringVar(&port, "port", config.DefaultPort, "listen port")
	return cmd
}

func newSmokeTestCmd(seed *int64) *cobra.Command {
	return &cobra.Command{
		Use:   "smoke",
		Short: "Render every catalog feature and report failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := syntheticContainer(*seed)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := c.Maps.Warm(ctx); err != nil {
				return err
			}
			for _, id := range c.Catalog.IDs() {
				view, err := c.Maps.View(id)
				if err != nil {
					return err
				}
				fig, err := c.Maps.Figure(ctx, id)
				if err != nil {
					return err
				}
				status := "ok"
				if view.NoData {
					status = "no data"
				}
				r := colorRange(view)
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s %-8s range=[%g, %g] %d bytes\n",
					id, status, r.Min, r.Max, len(fig))
			}
			return nil
		},
	}
}

func newDeterminismTestCmd(seed *int64) *cobra.Command {
	return &cobra.Command{
		Use:   "determinism",
		Short: "Check that two independent runs render identical figures",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			first, err := syntheticContainer(*seed)
			if err != nil {
				return err
			}
			second, err := syntheticContainer(*seed)
			if err != nil {
				return err
			}
			for _, id := range first.Catalog.IDs() {
				a, err := first.Maps.Figure(ctx, id)
				if err != nil {
					return err
				}
				b, err := second.Maps.Figure(ctx, id)
				if err != nil {
					return err
				}
				if !bytes.Equal(a, b) {
					return fmt.Errorf("feature %s rendered differently across runs", id)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d features rendered identically\n", first.Catalog.Len())
			return nil
		},
	}
}

func colorRange(view mapview.View) mapview.Range {
	if view.NoData || view.Request == nil {
		return mapview.Range{}
	}
	return view.Request.ColorRange
}
