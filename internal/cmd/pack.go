package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticmap/internal/mbtiles"
	"github.com/MeKo-Tech/staticmap/internal/tile"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack a directory of tiles into an MBTiles database",
	Long: `Pack reads tiles laid out as {z}/{x}/{y}.png (or z{z}_x{x}_y{y}.png) and
writes them to an MBTiles database, which can then be used as an offline
provider:

  staticmap render --tile-url 'mbtiles://tiles.mbtiles/{z}/{x}/{y}.png' ...`,
	RunE: runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)

	packCmd.Flags().String("input-dir", "./tiles", "Input directory containing tiles")
	packCmd.Flags().StringP("output", "o", "", "Output MBTiles file path (required)")
	packCmd.Flags().String("name", "staticmap", "Tileset name")
	packCmd.Flags().String("description", "", "Tileset description")
	packCmd.Flags().String("attribution", "", "Attribution text")
	packCmd.Flags().String("bounds", "", "Bounding box: minLon,minLat,maxLon,maxLat (default: computed from the tiles)")
	packCmd.Flags().Bool("gzip", false, "Gzip tile data inside the database")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"pack.input_dir", "input-dir"},
		{"pack.output", "output"},
		{"pack.name", "name"},
		{"pack.description", "description"},
		{"pack.attribution", "attribution"},
		{"pack.bounds", "bounds"},
		{"pack.gzip", "gzip"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, packCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

type packOptions struct {
	inputDir    string
	output      string
	name        string
	description string
	attribution string
	bounds      string
	gzip        bool
}

func runPack(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	return pack(cmd.Context(), packOptions{
		inputDir:    viper.GetString("pack.input_dir"),
		output:      viper.GetString("pack.output"),
		name:        viper.GetString("pack.name"),
		description: viper.GetString("pack.description"),
		attribution: viper.GetString("pack.attribution"),
		bounds:      viper.GetString("pack.bounds"),
		gzip:        viper.GetBool("pack.gzip"),
	})
}

func pack(ctx context.Context, opts packOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.output == "" {
		return fmt.Errorf("--output is required")
	}
	if _, err := os.Stat(opts.inputDir); os.IsNotExist(err) {
		return fmt.Errorf("input directory does not exist: %s", opts.inputDir)
	}

	tiles, err := scanTilesDirectory(opts.inputDir)
	if err != nil {
		return fmt.Errorf("failed to scan tiles directory: %w", err)
	}
	if len(tiles) == 0 {
		return fmt.Errorf("no tiles found in %s", opts.inputDir)
	}

	format := tiles[0].format
	minZoom, maxZoom := tiles[0].coords.Z, tiles[0].coords.Z
	covered := tiles[0].coords.Tile().Bound()
	for _, t := range tiles[1:] {
		if t.format != format {
			return fmt.Errorf("mixed tile formats: %s and %s", format, t.format)
		}
		minZoom = min(minZoom, t.coords.Z)
		maxZoom = max(maxZoom, t.coords.Z)
		covered = covered.Union(t.coords.Tile().Bound())
	}

	if opts.bounds != "" {
		b, err := parseBBox(opts.bounds)
		if err != nil {
			return fmt.Errorf("invalid bounds: %w", err)
		}
		covered = orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
	}
	center := covered.Center()

	logger.Info("Packing tiles",
		"input_dir", opts.inputDir,
		"output", opts.output,
		"tiles", len(tiles),
		"min_zoom", minZoom,
		"max_zoom", maxZoom,
		"format", format,
	)

	w, err := mbtiles.Create(opts.output, mbtiles.Metadata{
		Name:        opts.name,
		Format:      format,
		Attribution: opts.attribution,
		Description: opts.description,
		Type:        "baselayer",
		Version:     "1.0",
		Bounds:      [4]float64{covered.Min.Lon(), covered.Min.Lat(), covered.Max.Lon(), covered.Max.Lat()},
		Center:      [3]float64{center.Lon(), center.Lat(), float64(minZoom)},
		MinZoom:     minZoom,
		MaxZoom:     maxZoom,
	}, opts.gzip)
	if err != nil {
		return err
	}
	defer w.Close()

	for i, t := range tiles {
		data, err := os.ReadFile(t.path)
		if err != nil {
			return fmt.Errorf("read tile %s: %w", t.coords, err)
		}
		if err := w.WriteTile(ctx, t.coords, data); err != nil {
			return err
		}
		if (i+1)%500 == 0 {
			logger.Info("Progress", "packed", i+1, "total", len(tiles))
		}
	}

	logger.Info("Pack complete", "output", opts.output, "tiles", len(tiles))
	return w.Close()
}

type tileFile struct {
	coords tile.Coords
	format string
	path   string
}

var (
	flatTilePattern   = regexp.MustCompile(`^(z\d+_x\d+_y\d+)\.(png|jpe?g)$`)
	nestedTilePattern = regexp.MustCompile(`(?:^|/)(\d+)/(\d+)/(\d+)\.(png|jpe?g)$`)
)

// scanTilesDirectory finds tiles named z{z}_x{x}_y{y}.ext or stored as
// {z}/{x}/{y}.ext below dir. Tiles outside the grid of their zoom are skipped.
func scanTilesDirectory(dir string) ([]tileFile, error) {
	var tiles []tileFile

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		var (
			c   tile.Coords
			ext string
		)
		if m := flatTilePattern.FindStringSubmatch(d.Name()); m != nil {
			if c, err = tile.ParseCoords(m[1]); err != nil {
				return nil
			}
			ext = m[2]
		} else if m := nestedTilePattern.FindStringSubmatch(filepath.ToSlash(path)); m != nil {
			z, _ := strconv.Atoi(m[1])
			x, _ := strconv.Atoi(m[2])
			y, _ := strconv.Atoi(m[3])
			c = tile.NewCoords(z, x, y)
			ext = m[4]
		} else {
			return nil
		}

		if !c.Valid() {
			return nil
		}

		format := "png"
		if strings.HasPrefix(ext, "jp") {
			format = "jpg"
		}
		tiles = append(tiles, tileFile{coords: c, format: format, path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tiles, nil
}

// parseBBox parses "minLon,minLat,maxLon,maxLat".
func parseBBox(s string) ([4]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return [4]float64{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var bbox [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return [4]float64{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		bbox[i] = val
	}

	if bbox[0] >= bbox[2] {
		return [4]float64{}, fmt.Errorf("minLon (%.4f) must be < maxLon (%.4f)", bbox[0], bbox[2])
	}
	if bbox[1] >= bbox[3] {
		return [4]float64{}, fmt.Errorf("minLat (%.4f) must be < maxLat (%.4f)", bbox[1], bbox[3])
	}

	return bbox, nil
}
