package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticmap/internal/output"
	"github.com/MeKo-Tech/staticmap/internal/pipeline"
	"github.com/MeKo-Tech/staticmap/internal/worker"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a static map to a PNG or JPEG file",
	Long: `Render fetches every tile covering the requested viewport, stitches them
and crops the result to the exact size. With --debug the uncropped canvas is
written instead, annotated with the tile grid, the crop area and the center.

The output format follows the file extension (.png, .jpg, .jpeg). Use "-"
to write PNG to stdout.`,
	Example: `  staticmap render --lat 50.8503 --lon 4.3517 -o brussels.png
  staticmap render --lat 52.3759 --lon 9.7320 --zoom 13 --width 800 --height 600 --debug -o hannover.jpg`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().Float64("lat", 0, "Latitude of the map center (required)")
	renderCmd.Flags().Float64("lon", 0, "Longitude of the map center (required)")
	renderCmd.Flags().IntP("zoom", "z", pipeline.DefaultZoom, "Zoom level")
	renderCmd.Flags().Int("width", pipeline.DefaultWidth, "Image width in pixels")
	renderCmd.Flags().Int("height", pipeline.DefaultHeight, "Image height in pixels")
	renderCmd.Flags().StringP("output", "o", "map.png", "Output file (.png, .jpg, .jpeg or - for stdout)")
	renderCmd.Flags().Bool("debug", false, "Write the uncropped canvas with the debug overlay")
	renderCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	renderCmd.Flags().Int("jpeg-quality", 90, "JPEG quality (1-100)")
	renderCmd.Flags().Bool("progress", false, "Show a progress bar on stderr")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"render.lat", "lat"},
		{"render.lon", "lon"},
		{"render.zoom", "zoom"},
		{"render.width", "width"},
		{"render.height", "height"},
		{"render.output", "output"},
		{"render.debug", "debug"},
		{"render.png_compression", "png-compression"},
		{"render.jpeg_quality", "jpeg-quality"},
		{"render.progress", "progress"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, renderCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	req, err := requestFromConfig("render")
	if err != nil {
		return err
	}

	outPath := viper.GetString("render.output")
	compression, err := output.ParseCompression(viper.GetString("render.png_compression"))
	if err != nil {
		return err
	}
	opts := output.Options{
		Compression: compression,
		Quality:     viper.GetInt("render.jpeg_quality"),
	}
	if outPath != output.Stdout {
		// Fail on a bad extension before downloading anything.
		if opts.Format, err = output.FormatFromPath(outPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, src := newTileSource()
	defer router.Close()

	box, err := req.Layout()
	if err != nil {
		return err
	}
	progress := worker.NewProgress(box.TileRange(), viper.GetBool("render.progress"))

	logger.Info("Rendering map",
		"center", req.Center().String(),
		"zoom", req.Zoom(),
		"width", req.Width(),
		"height", req.Height(),
		"tiles", box.TileRange().Count(),
		"debug", req.IsDebug(),
		"output", outPath,
	)

	res, err := newRenderer(src, progress.Callback()).Render(ctx, req)
	progress.Done()
	if err != nil {
		return err
	}
	logger.Info(progress.Summary())

	if err := output.WriteFile(outPath, res.Image, opts); err != nil {
		return err
	}

	st := src.Status()
	logger.Info("Map written",
		"output", outPath,
		"bounds", res.Image.Bounds().String(),
		"tiles", res.Tiles,
		"bytes_fetched", st.TotalBytes,
		"ms", res.Elapsed.Milliseconds(),
	)
	return nil
}
