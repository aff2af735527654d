package ui

import (
	"image"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"golang.org/x/time/rate"

	"github.com/photonworks/dngscope/analysis"
)

// liveStatsInterval caps how often drag motion recomputes region statistics.
const liveStatsInterval = 80 * time.Millisecond

// Viewer shows the preview of the loaded capture and lets the user drag a
// rectangular selection over it. Selections are reported in preview pixel
// coordinates through the OnSelect and OnLive callbacks.
type Viewer struct {
	widget.BaseWidget

	img  *canvas.Image
	rect *canvas.Rectangle

	preview image.Image
	limiter *rate.Limiter

	dragStart fyne.Position
	dragCur   fyne.Position
	selecting bool
	selection image.Rectangle

	// OnLive fires while dragging, throttled. OnSelect fires on release.
	OnLive   func(sel image.Rectangle)
	OnSelect func(sel image.Rectangle)
}

var _ desktop.Mouseable = (*Viewer)(nil)
var _ fyne.Draggable = (*Viewer)(nil)

// NewViewer creates an empty viewer.
func NewViewer() *Viewer {
	v := &Viewer{
		img:     canvas.NewImageFromImage(nil),
		rect:    canvas.NewRectangle(color.Transparent),
		limiter: rate.NewLimiter(rate.Every(liveStatsInterval), 1),
	}
	v.img.FillMode = canvas.ImageFillContain
	v.img.ScaleMode = canvas.ImageScaleFastest
	v.rect.StrokeColor = color.NRGBA{R: 255, A: 255}
	v.rect.StrokeWidth = 2
	v.rect.Hide()
	v.ExtendBaseWidget(v)
	return v
}

// SetImage replaces the displayed preview and clears any selection.
func (v *Viewer) SetImage(preview image.Image) {
	v.preview = preview
	v.img.Image = preview
	v.selection = image.Rectangle{}
	v.selecting = false
	v.rect.Hide()
	v.Refresh()
}

// Selection returns the current selection in preview pixel coordinates.
// The zero rectangle means no selection.
func (v *Viewer) Selection() image.Rectangle {
	return v.selection
}

// SetSelection programmatically selects a region, given in preview pixel
// coordinates, and reports it through OnSelect.
func (v *Viewer) SetSelection(sel image.Rectangle) {
	if v.preview == nil {
		return
	}
	b := v.preview.Bounds()
	v.selection = analysis.ClampRect(sel, b.Dx(), b.Dy())
	v.selecting = false
	v.Refresh()
	if v.OnSelect != nil {
		v.OnSelect(v.selection)
	}
}

// MouseDown starts a new selection.
func (v *Viewer) MouseDown(ev *desktop.MouseEvent) {
	if v.preview == nil || ev.Button != desktop.MouseButtonPrimary {
		return
	}
	v.dragStart = ev.Position
	v.dragCur = ev.Position
	v.selecting = true
	v.Refresh()
}

// MouseUp ends a click without motion. Drag release is handled by DragEnd.
func (v *Viewer) MouseUp(ev *desktop.MouseEvent) {
	if !v.selecting {
		return
	}
	v.finishSelection()
}

// Dragged extends the selection rectangle under the cursor.
func (v *Viewer) Dragged(ev *fyne.DragEvent) {
	if !v.selecting {
		return
	}
	v.dragCur = ev.Position
	v.Refresh()
	if v.OnLive != nil && v.limiter.Allow() {
		v.OnLive(v.pendingSelection())
	}
}

// DragEnd finalizes the selection.
func (v *Viewer) DragEnd() {
	if !v.selecting {
		return
	}
	v.finishSelection()
}

func (v *Viewer) finishSelection() {
	v.selection = v.pendingSelection()
	v.selecting = false
	v.Refresh()
	if v.OnSelect != nil {
		v.OnSelect(v.selection)
	}
}

// pendingSelection maps the in-progress drag to preview pixel coordinates.
func (v *Viewer) pendingSelection() image.Rectangle {
	p0 := v.posToPreview(v.dragStart)
	p1 := v.posToPreview(v.dragCur)
	r := analysis.NormalizedRect(p0.X, p0.Y, p1.X, p1.Y)
	b := v.preview.Bounds()
	return analysis.ClampRect(r, b.Dx(), b.Dy())
}

// displayParams returns the scale and offset at which the preview is drawn
// inside the widget, matching the contain fill mode of the image canvas.
func (v *Viewer) displayParams() (scale float32, off fyne.Position) {
	if v.preview == nil {
		return 1, fyne.Position{}
	}
	b := v.preview.Bounds()
	pw, ph := float32(b.Dx()), float32(b.Dy())
	size := v.Size()
	if pw <= 0 || ph <= 0 || size.Width <= 0 || size.Height <= 0 {
		return 1, fyne.Position{}
	}

	scale = size.Width / pw
	if s := size.Height / ph; s < scale {
		scale = s
	}
	off = fyne.NewPos((size.Width-pw*scale)/2, (size.Height-ph*scale)/2)
	return scale, off
}

func (v *Viewer) posToPreview(p fyne.Position) image.Point {
	scale, off := v.displayParams()
	if scale <= 0 {
		return image.Point{}
	}
	return image.Pt(
		int((p.X-off.X)/scale+0.5),
		int((p.Y-off.Y)/scale+0.5),
	)
}

func (v *Viewer) previewToPos(p image.Point) fyne.Position {
	scale, off := v.displayParams()
	return fyne.NewPos(float32(p.X)*scale+off.X, float32(p.Y)*scale+off.Y)
}

// CreateRenderer implements fyne.Widget.
func (v *Viewer) CreateRenderer() fyne.WidgetRenderer {
	return &viewerRenderer{v: v}
}

type viewerRenderer struct {
	v *Viewer
}

func (r *viewerRenderer) Layout(size fyne.Size) {
	r.v.img.Resize(size)
	r.layoutSelection()
}

func (r *viewerRenderer) layoutSelection() {
	v := r.v

	var sel image.Rectangle
	switch {
	case v.selecting:
		sel = v.pendingSelection()
	case !v.selection.Empty():
		sel = v.selection
	default:
		v.rect.Hide()
		return
	}

	min := v.previewToPos(sel.Min)
	max := v.previewToPos(sel.Max)
	v.rect.Move(min)
	v.rect.Resize(fyne.NewSize(max.X-min.X, max.Y-min.Y))
	v.rect.Show()
}

func (r *viewerRenderer) MinSize() fyne.Size {
	return fyne.NewSize(320, 240)
}

func (r *viewerRenderer) Refresh() {
	r.v.img.Refresh()
	r.layoutSelection()
	r.v.rect.Refresh()
}

func (r *viewerRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.v.img, r.v.rect}
}

func (r *viewerRenderer) Destroy() {}
