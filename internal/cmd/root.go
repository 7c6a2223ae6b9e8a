package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticmap/internal/datasource"
	"github.com/MeKo-Tech/staticmap/internal/tile"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "staticmap",
	Short: "Render static map images from slippy-map tiles",
	Long: `staticmap stitches raster tiles from a slippy-map provider into a single
image of a given size, centered on a coordinate at a given zoom level.

Tiles can come from HTTP(S) providers, a local directory (file://) or an
MBTiles database (mbtiles://path/to/set.mbtiles/{z}/{x}/{y}.png).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("tile-url", tile.DefaultTemplate, "Tile URL template with {z}, {x}, {y} and optional {s} placeholders")
	rootCmd.PersistentFlags().StringSlice("shards", tile.DefaultShards, "Values substituted for {s}, picked by (x+y) mod count")
	rootCmd.PersistentFlags().Int("workers", 4, "Number of concurrent tile fetches")
	rootCmd.PersistentFlags().Duration("fetch-timeout", 30*time.Second, "Timeout of a single tile download")
	rootCmd.PersistentFlags().Int("retries", 0, "Retries per tile on transient HTTP failures")
	rootCmd.PersistentFlags().String("user-agent", datasource.DefaultUserAgent, "User-Agent sent to tile providers")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	for _, name := range []string{"tile-url", "shards", "workers", "fetch-timeout", "retries", "user-agent", "log-format", "verbose"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("STATICMAP")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
