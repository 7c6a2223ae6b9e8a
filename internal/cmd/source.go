package cmd

import (
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticmap/internal/datasource"
	"github.com/MeKo-Tech/staticmap/internal/pipeline"
	"github.com/MeKo-Tech/staticmap/internal/tile"
	"github.com/MeKo-Tech/staticmap/internal/types"
	"github.com/MeKo-Tech/staticmap/internal/worker"
)

// newTileSource builds the instrumented source shared by render and serve.
// The router must be closed to release open MBTiles databases.
func newTileSource() (*datasource.Router, *datasource.Instrumented) {
	cfg := datasource.DefaultHTTPConfig()
	cfg.Timeout = viper.GetDuration("fetch-timeout")
	cfg.Retries = viper.GetInt("retries")
	if ua := viper.GetString("user-agent"); ua != "" {
		cfg.UserAgent = ua
	}
	cfg.Logger = logger

	router := datasource.NewDefaultRouter(datasource.NewHTTPSource(cfg))
	return router, datasource.NewInstrumented(router, datasource.InstrumentedConfig{Logger: logger})
}

func newRenderer(src datasource.TileSource, onProgress worker.ProgressFunc) *pipeline.Renderer {
	return pipeline.NewRenderer(pipeline.Config{
		Source:     src,
		Workers:    viper.GetInt("workers"),
		OnProgress: onProgress,
		Logger:     logger,
	})
}

// requestFromConfig reads a map request from the keys under prefix
// (lat, lon, zoom, width, height, debug) and the shared provider keys.
func requestFromConfig(prefix string) (pipeline.Request, error) {
	if !viper.IsSet(prefix + ".lat") {
		return pipeline.Request{}, types.NewConfigurationError("lat", "", "--lat is required")
	}
	if !viper.IsSet(prefix + ".lon") {
		return pipeline.Request{}, types.NewConfigurationError("lon", "", "--lon is required")
	}

	zoom := viper.GetInt(prefix + ".zoom")
	if zoom < 0 || zoom > tile.MaxZoom {
		return pipeline.Request{}, types.NewConfigurationError("zoom", zoom, "zoom must be between 0 and 22")
	}

	req := pipeline.CenteredOn(viper.GetFloat64(prefix+".lat"), viper.GetFloat64(prefix+".lon")).
		WithZoom(zoom).
		WithDimensions(viper.GetInt(prefix+".width"), viper.GetInt(prefix+".height")).
		WithTileProvider(viper.GetString("tile-url")).
		WithShards(viper.GetStringSlice("shards")...).
		WithDebug(viper.GetBool(prefix + ".debug"))

	return req, req.Validate()
}
