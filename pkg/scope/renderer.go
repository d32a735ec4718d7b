package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/itohio/goxing/pkg/crossing"
	"github.com/itohio/goxing/pkg/sample"
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	bandColor  = color.RGBA{R: 0, G: 100, B: 200, A: 255}
	traceColor = [2]color.Color{
		color.RGBA{R: 255, G: 165, B: 0, A: 255},   // Left, orange
		color.RGBA{R: 100, G: 200, B: 255, A: 255}, // Right, light blue
	}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// plot maps data coordinates to widget coordinates.
type plot struct {
	x, y, width, height float32
	yMax                float64
	xMin, xMax          time.Time
}

func (p plot) posX(t time.Time) float32 {
	span := p.xMax.Sub(p.xMin).Seconds()
	if span <= 0 {
		return p.x
	}
	return p.x + float32(t.Sub(p.xMin).Seconds()/span)*p.width
}

func (p plot) posY(inches float64) float32 {
	if p.yMax <= 0 {
		return p.y + p.height
	}
	return p.y + p.height - float32(inches/p.yMax)*p.height
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	// Background fills entire widget
	r.grid.Resize(size)

	// Size changed, trigger widget refresh to redraw with new dimensions
	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh updates the widget display.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	traces := r.scope.display
	events := r.scope.events
	minInches := r.scope.minInches
	maxInches := r.scope.maxInches
	p := plot{yMax: r.scope.yMax, xMin: r.scope.xMin, xMax: r.scope.xMax}
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	// Clear old objects (but keep grid)
	r.objects = []fyne.CanvasObject{r.grid}

	// Calculate margins
	const marginLeft, marginRight, marginTop, marginBottom = 60, 20, 20, 40
	p.x = marginLeft
	p.y = marginTop
	p.width = size.Width - marginLeft - marginRight
	p.height = size.Height - marginTop - marginBottom

	r.drawGrid(p)
	r.drawBand(p, minInches, maxInches)
	for ch, trace := range traces {
		r.drawTrace(p, trace, traceColor[ch])
	}
	r.drawEvents(p, events)
}

// drawGrid draws the oscilloscope-style grid.
func (r *scopeRenderer) drawGrid(p plot) {
	// Horizontal grid lines (distance)
	const numHLines = 8
	for i := range numHLines + 1 {
		y := p.y + float32(i)*p.height/numHLines
		r.addLine(fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.width, y), gridColor, 1)

		value := p.yMax - float64(i)*p.yMax/numHLines
		r.addText(fmt.Sprintf("%.0fin", value), fyne.NewPos(p.x-5, y-6), fyne.TextAlignTrailing, labelColor, 10)
	}

	// Vertical grid lines (time)
	const numVLines = 10
	span := p.xMax.Sub(p.xMin)
	for i := range numVLines + 1 {
		x := p.x + float32(i)*p.width/numVLines
		r.addLine(fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.height), gridColor, 1)

		// Seconds before the newest sample
		ago := span - time.Duration(i)*span/numVLines
		r.addText(fmt.Sprintf("-%.1fs", ago.Seconds()), fyne.NewPos(x-20, p.y+p.height+5), fyne.TextAlignCenter, labelColor, 10)
	}
}

// drawBand draws the presence band limits.
func (r *scopeRenderer) drawBand(p plot, minInches, maxInches float64) {
	for _, v := range []float64{minInches, maxInches} {
		y := p.posY(v)
		r.addLine(fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.width, y), bandColor, 1)
	}
}

// drawTrace draws one channel's distance curve.
func (r *scopeRenderer) drawTrace(p plot, trace []sample.Sample, c color.Color) {
	for i := range len(trace) - 1 {
		a, b := trace[i], trace[i+1]
		r.addLine(
			fyne.NewPos(p.posX(a.Timestamp), p.posY(float64(a.Inches))),
			fyne.NewPos(p.posX(b.Timestamp), p.posY(float64(b.Inches))),
			c, 1.5,
		)
	}
}

// drawEvents marks completed crossings inside the visible window.
func (r *scopeRenderer) drawEvents(p plot, events []crossing.Event) {
	for _, ev := range events {
		if ev.End.Before(p.xMin) || ev.Start.After(p.xMax) {
			continue
		}
		c := traceColor[ev.Direction]
		x := p.posX(ev.Start)
		r.addLine(fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.height), c, 1)

		label := "→"
		if ev.Direction == crossing.Right {
			label = "←"
		}
		r.addText(label, fyne.NewPos(x+4, p.y+4), fyne.TextAlignLeading, c, 14)
	}
}

func (r *scopeRenderer) addLine(from, to fyne.Position, c color.Color, width float32) {
	line := canvas.NewLine(c)
	line.Position1 = from
	line.Position2 = to
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

func (r *scopeRenderer) addText(s string, pos fyne.Position, align fyne.TextAlign, c color.Color, size float32) {
	text := canvas.NewText(s, c)
	text.TextSize = size
	text.Alignment = align
	text.Move(pos)
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {
	// Cleanup handled by Fyne
}
