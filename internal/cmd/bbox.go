package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticmap/internal/geometry"
	"github.com/MeKo-Tech/staticmap/internal/pipeline"
)

var bboxCmd = &cobra.Command{
	Use:   "bbox",
	Short: "Print the tile layout of a map without fetching anything",
	Long: `Print the bounding box of a map as JSON: the edges in degrees and in
fractional tile indices, the tile counts, the size of the uncropped canvas
and the crop offsets. With --geojson the viewport and the tile footprints are
printed as a GeoJSON FeatureCollection instead.`,
	RunE: runBBox,
}

func init() {
	rootCmd.AddCommand(bboxCmd)

	bboxCmd.Flags().Float64("lat", 0, "Latitude of the map center (required)")
	bboxCmd.Flags().Float64("lon", 0, "Longitude of the map center (required)")
	bboxCmd.Flags().IntP("zoom", "z", pipeline.DefaultZoom, "Zoom level")
	bboxCmd.Flags().Int("width", pipeline.DefaultWidth, "Image width in pixels")
	bboxCmd.Flags().Int("height", pipeline.DefaultHeight, "Image height in pixels")
	bboxCmd.Flags().Bool("geojson", false, "Print a GeoJSON FeatureCollection of the viewport and its tiles")

	for _, name := range []string{"lat", "lon", "zoom", "width", "height", "geojson"} {
		if err := viper.BindPFlag("bbox."+name, bboxCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func runBBox(cmd *cobra.Command, args []string) error {
	req, err := requestFromConfig("bbox")
	if err != nil {
		return err
	}

	box, err := req.Layout()
	if err != nil {
		return err
	}
	return writeBBox(cmd.OutOrStdout(), box, viper.GetBool("bbox.geojson"))
}

func writeBBox(w io.Writer, box geometry.BoundingBox, asGeoJSON bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if asGeoJSON {
		return enc.Encode(box.FeatureCollection())
	}
	return enc.Encode(box)
}
