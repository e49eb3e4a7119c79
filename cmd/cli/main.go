package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tbdash/internal"
	"tbdash/internal/config"
	"tbdash/internal/container"
	"tbdash/internal/profiling"
	"tbdash/internal/testkit"
)

const Version = "1.0.0"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tbdash",
		Short: "Command-line tools for the TB dashboard dataset",
		Long: fmt.Sprintf(`tbdash (v%s)

Validate, inspect and render the WHO tuberculosis dataset behind the dashboard.
Every flag can also be set through the environment as TBDASH_<FLAG>
(e.g. TBDASH_DATA_FILE=data/who_tb_data_agg.csv).`, Version),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initConfig()
			return viper.BindPFlags(cmd.Flags())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("data-file", config.DefaultDataFile, "CSV or XLSX file with the aggregated dataset")
	flags.String("data-sheet", "", "worksheet to read from an XLSX file (first sheet when empty)")
	flags.String("database-url", "", "PostgreSQL connection string; when set the dataset is read from the database")
	flags.String("data-table", config.DefaultDataTable, "PostgreSQL table holding the dataset")
	flags.String("log-level", config.DefaultLogLevelStr, "ERROR, WARN, INFO, DEBUG or TRACE")

	rootCmd.AddCommand(
		newValidateCmd(),
		newFeaturesCmd(),
		newRenderCmd(),
		newImportCmd(),
		newGenerateCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "tbdash v%s\n", Version)
			},
		},
	)
	return rootCmd
}

// initConfig loads env files and maps TBDASH_* variables onto flags
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("tbdash")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig starts from the server configuration and applies any flag or
// TBDASH_* override on top of it
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if viper.IsSet("data-file") {
		cfg.Data.File = viper.GetString("data-file")
	}
	if viper.IsSet("data-sheet") {
		cfg.Data.Sheet = viper.GetString("data-sheet")
	}
	if viper.IsSet("database-url") {
		cfg.Database.URL = viper.GetString("database-url")
	}
	if viper.IsSet("data-table") {
		cfg.Database.Table = viper.GetString("data-table")
	}
	if viper.IsSet("log-level") {
		cfg.LogLevel = viper.GetString("log-level")
	}
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(cfg.LogLevel))
	return cfg, nil
}

// loadContainer builds and initializes the dependency container
func loadContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	c, err := container.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		c.Shutdown(ctx)
		return nil, err
	}
	return c, nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the dataset and check it against the feature catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := loadContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			years := c.Table.Years()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source:   %s\n", c.Source.Describe())
			fmt.Fprintf(out, "rows:     %d\n", c.Table.Len())
			if len(years) > 0 {
				fmt.Fprintf(out, "years:    %d-%d (%d)\n", years[0], years[len(years)-1], len(years))
			}
			fmt.Fprintf(out, "features: %d, all present\n", c.Catalog.Len())
			return nil
		},
	}
}

func newFeaturesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "features",
		Short: "List catalog features with a summary of their values",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := loadContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			summaries, err := profiling.NewFeatureProfiler(c.Table).SummarizeAll(c.Catalog.IDs())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL\tPRESENT\tYEARS\tMIN\tMEDIAN\tMAX\tP99")
			for i, f := range c.Catalog.Features() {
				s := summaries[i]
				if !s.HasValues {
					fmt.Fprintf(w, "%s\t%s\t0\t-\t-\t-\t-\t-\n", f.ID, f.Label)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d-%d\t%g\t%g\t%g\t%.2f\n",
					f.ID, f.Label, s.Present, s.Years[0], s.Years[len(s.Years)-1], s.Min, s.Median, s.Max, s.P99)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print summaries as JSON")
	return cmd
}

func newRenderCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "render [feature]",
		Short: "Write the map figure JSON for a feature",
		Long: `Render the Plotly figure the dashboard would show for a feature.

Example: tbdash render c_per_100k --out c_per_100k.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := loadContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			fig, err := c.Maps.Figure(ctx, args[0])
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(append(fig, '\n'))
				return err
			}
			if err := os.WriteFile(out, fig, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, len(fig))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Load a CSV or XLSX file into the PostgreSQL table",
		Long: `Create the dataset table if needed and upsert every row of the file.

Example: TBDASH_DATABASE_URL=postgres://localhost/tb tbdash import data/who_tb_data_agg.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("import needs --database-url or TBDASH_DATABASE_URL")
			}
			path := cfg.Data.File
			if len(args) == 1 {
				path = args[0]
			}

			c, err := container.New(cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)
			if err := c.InitDatabase(ctx); err != nil {
				return err
			}

			table, err := c.FileReader(path).Load(ctx)
			if err != nil {
				return err
			}
			n, err := c.Repository().Import(ctx, table)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows into %s\n", n, cfg.Database.Table)
			return nil
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		seed        int64
		startYear   int
		endYear     int
		missingRate float64
		emptyYears  []int
	)

	cmd := &cobra.Command{
		Use:   "generate [file]",
		Short: "Write a synthetic dataset for demos and load tests",
		Long: `Generate a deterministic dataset with every catalog column. The format
follows the file extension (.csv or .xlsx).

Example: tbdash generate data/who_tb_data_agg.csv --seed 7 --empty-years 2011`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultWHOConfig()
			cfg.Seed = seed
			cfg.StartYear = startYear
			cfg.EndYear = endYear
			cfg.MissingRate = missingRate
			cfg.EmptyYears = emptyYears
			if cfg.EndYear < cfg.StartYear {
				return fmt.Errorf("end year %d is before start year %d", cfg.EndYear, cfg.StartYear)
			}

			g := testkit.NewWHODataGenerator(cfg)
			path := args[0]
			var err error
			switch strings.ToLower(filepath.Ext(path)) {
			case ".xlsx":
				err = g.WriteXLSX(path)
			case ".csv":
				err = g.WriteCSV(path)
			default:
				return fmt.Errorf("unsupported extension %q, use .csv or .xlsx", filepath.Ext(path))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", g.Len(), path)
			return nil
		},
	}

	defaults := testkit.DefaultWHOConfig()
	cmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "random seed")
	cmd.Flags().IntVar(&startYear, "start-year", defaults.StartYear, "first year")
	cmd.Flags().IntVar(&endYear, "end-year", defaults.EndYear, "last year")
	cmd.Flags().Float64Var(&missingRate, "missing-rate", defaults.MissingRate, "probability that a cell is missing")
	cmd.Flags().IntSliceVar(&emptyYears, "empty-years", nil, "years in which every value is missing")
	return cmd
}
