// Package overlay draws the debug view of a render: the tile grid, the area
// that would be cropped and a reticule on the requested center.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/llgcode/draw2d/draw2dkit"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/staticmap/internal/geometry"
	"github.com/MeKo-Tech/staticmap/internal/tile"
)

// Colors used by Render.
var (
	GridColor       color.Color = color.RGBA{0, 0, 255, 255}
	OutlineColor    color.Color = color.RGBA{0, 0, 0, 255}
	LabelBackground color.Color = color.NRGBA{255, 255, 255, 195}
	MaskColor       color.Color = color.NRGBA{0, 0, 0, 54}
)

const (
	reticuleRadius = 10
	armInner       = 5
	armOuter       = 50
	labelHeight    = 25
	labelPadX      = 10
	labelPadY      = 5
)

var gridDash = []float64{4, 4}

// Render draws the debug overlay onto the uncropped canvas of box. width and
// height are the requested viewport size.
func Render(canvas *image.RGBA, box geometry.BoundingBox, width, height int) {
	gc := draw2dimg.NewGraphicContext(canvas)

	drawTileGrid(gc, canvas, box)
	drawMask(gc, box, width, height)
	drawCropArea(gc, canvas, box, width, height)
	drawReticule(gc, box, width, height)
}

// drawTileGrid strokes the top and left border of every tile one pixel up and
// left of the tile, so the outer edges of the canvas stay clean, and numbers
// the tiles in row-major order.
func drawTileGrid(gc *draw2dimg.GraphicContext, canvas *image.RGBA, box geometry.BoundingBox) {
	total := box.XTileCount * box.YTileCount
	index := 1

	gc.SetStrokeColor(GridColor)
	gc.SetLineWidth(1)
	gc.SetLineDash(gridDash, 0)

	for y := 0; y < box.YTileCount; y++ {
		for x := 0; x < box.XTileCount; x++ {
			left := float64(x * tile.TileSize)
			top := float64(y * tile.TileSize)

			gc.BeginPath()
			gc.MoveTo(left-0.5, top-0.5)
			gc.LineTo(left+tile.TileSize-0.5, top-0.5)
			gc.Stroke()

			gc.BeginPath()
			gc.MoveTo(left-0.5, top-0.5)
			gc.LineTo(left-0.5, top+tile.TileSize-0.5)
			gc.Stroke()

			label, labelWidth := fmt.Sprintf("%d/%d", index, total), 60
			if index == 1 {
				label, labelWidth = "Tile "+label, 110
			}
			fillRect(gc, left, top, left+float64(labelWidth), top+labelHeight, LabelBackground)
			drawText(canvas, int(left)+labelPadX, int(top)+labelPadY, label, GridColor)

			index++
		}
	}

	gc.SetLineDash(nil, 0)
}

// drawMask darkens everything outside the crop rectangle using four bands:
// above, left, right and below it.
func drawMask(gc *draw2dimg.GraphicContext, box geometry.BoundingBox, width, height int) {
	w, h := float64(box.UncroppedWidth), float64(box.UncroppedHeight)
	left, top := float64(box.LeftOffset), float64(box.TopOffset)
	right, bottom := left+float64(width), top+float64(height)

	fillRect(gc, 0, 0, w, top, MaskColor)
	fillRect(gc, 0, top, left, bottom, MaskColor)
	fillRect(gc, right, top, w, bottom, MaskColor)
	fillRect(gc, 0, bottom, w, h, MaskColor)
}

func drawCropArea(gc *draw2dimg.GraphicContext, canvas *image.RGBA, box geometry.BoundingBox, width, height int) {
	left, top := float64(box.LeftOffset), float64(box.TopOffset)

	gc.SetStrokeColor(OutlineColor)
	gc.SetLineWidth(1)
	gc.BeginPath()
	draw2dkit.Rectangle(gc, left+0.5, top+0.5, left+float64(width)-0.5, top+float64(height)-0.5)
	gc.Stroke()

	fillRect(gc, left+1, top+1, left+125, top+labelHeight, LabelBackground)
	drawText(canvas, box.LeftOffset+labelPadX, box.TopOffset+labelPadY, "Cropped area", OutlineColor)
}

// drawReticule marks the requested center: a circle and four arms.
func drawReticule(gc *draw2dimg.GraphicContext, box geometry.BoundingBox, width, height int) {
	cx := float64(box.LeftOffset) + float64(width)/2
	cy := float64(box.TopOffset) + float64(height)/2

	gc.SetStrokeColor(OutlineColor)
	gc.SetLineWidth(1)

	gc.BeginPath()
	draw2dkit.Circle(gc, cx, cy, reticuleRadius)
	gc.Stroke()

	arms := [][4]float64{
		{cx, cy - armOuter, cx, cy - armInner},
		{cx - armOuter, cy, cx - armInner, cy},
		{cx + armInner, cy, cx + armOuter, cy},
		{cx, cy + armInner, cx, cy + armOuter},
	}
	for _, a := range arms {
		gc.BeginPath()
		gc.MoveTo(a[0], a[1])
		gc.LineTo(a[2], a[3])
		gc.Stroke()
	}
}

func fillRect(gc *draw2dimg.GraphicContext, x1, y1, x2, y2 float64, c color.Color) {
	if x2 <= x1 || y2 <= y1 {
		return
	}
	gc.SetFillColor(c)
	gc.BeginPath()
	draw2dkit.Rectangle(gc, x1, y1, x2, y2)
	gc.Fill()
}

// drawText writes s with its top-left corner at (x, y).
func drawText(dst *image.RGBA, x, y int, s string, c color.Color) {
	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(s)
}
