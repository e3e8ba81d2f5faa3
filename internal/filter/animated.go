package filter

import (
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/dudu/facefx/internal/canvas"
	"github.com/dudu/facefx/internal/geometry"
	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/logging"
	"github.com/dudu/facefx/internal/perf"
	"github.com/dudu/facefx/internal/render"
)

// Shape is the particle glyph.
type Shape int

const (
	ShapeBall Shape = iota
	ShapeStar
	ShapeHeart
	ShapeDot
)

// Anchor selects the face point particles orbit around.
type Anchor int

const (
	AnchorForehead Anchor = iota // above the head
	AnchorEyes
	AnchorNose
)

// Preset parametrises an animated filter. Lengths are fractions of face
// width.
type Preset struct {
	Name   string
	Shape  Shape
	Anchor Anchor

	OrbitX, OrbitY float64 // orbit radii
	Lift           float64 // anchor offset upward
	Size           float64 // particle radius
	Bob            float64 // vertical bounce amplitude
	Revolutions    float64 // per second at animation speed 1

	Hue, HueSpread float64 // degrees
	Saturation     float64
	Alpha          float64
}

var presets = map[string]Preset{
	"balls": {
		Name: "balls", Shape: ShapeBall, Anchor: AnchorForehead,
		OrbitX: 0.9, OrbitY: 0.25, Lift: 0.45, Size: 0.09, Bob: 0.05, Revolutions: 0.5,
		Hue: 0, HueSpread: 360, Saturation: 0.75, Alpha: 0.95,
	},
	"stars": {
		Name: "stars", Shape: ShapeStar, Anchor: AnchorForehead,
		OrbitX: 0.75, OrbitY: 0.2, Lift: 0.35, Size: 0.08, Bob: 0.02, Revolutions: 0.35,
		Hue: 48, HueSpread: 20, Saturation: 0.8, Alpha: 1,
	},
	"hearts": {
		Name: "hearts", Shape: ShapeHeart, Anchor: AnchorEyes,
		OrbitX: 1.1, OrbitY: 0.6, Lift: 0, Size: 0.07, Bob: 0.08, Revolutions: 0.25,
		Hue: 340, HueSpread: 30, Saturation: 0.7, Alpha: 0.9,
	},
	"dots": {
		Name: "dots", Shape: ShapeDot, Anchor: AnchorNose,
		OrbitX: 1.2, OrbitY: 1.1, Lift: 0.2, Size: 0.025, Bob: 0.03, Revolutions: 0.6,
		Hue: 190, HueSpread: 120, Saturation: 0.5, Alpha: 0.8,
	},
}

// LookupPreset returns a registered preset.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// Particle is one placed glyph.
type Particle struct {
	X, Y   float64
	Radius float64
	Glow   float64
	Color  colorful.Color
}

// Bounds returns the pixel rectangle the particle may touch, glow included.
func (p Particle) Bounds() image.Rectangle {
	r := p.Radius + p.Glow
	return image.Rect(
		int(math.Floor(p.X-r)), int(math.Floor(p.Y-r)),
		int(math.Ceil(p.X+r)), int(math.Ceil(p.Y+r)),
	)
}

// Animated draws particles orbiting a face.
type Animated struct {
	preset Preset
	logger *slog.Logger
}

// NewAnimated creates an animated filter. logger may be nil.
func NewAnimated(p Preset, logger *slog.Logger) *Animated {
	return &Animated{preset: p, logger: logging.OrNop(logger)}
}

// Name returns the preset name.
func (a *Animated) Name() string { return a.preset.Name }

// Layout places q.ParticleCount particles for the face at elapsed time and
// drops those not entirely inside a width x height canvas.
func (a *Animated) Layout(pts geometry.Points, elapsed time.Duration, q perf.Quality, width, height int) []Particle {
	dims := geometry.FaceDimensions(pts)
	fw := dims.Width
	if !(fw > 0) {
		return nil
	}

	var anchor landmark.Point
	switch a.preset.Anchor {
	case AnchorEyes:
		anchor = dims.EyeCenter
	case AnchorNose:
		anchor = pts.NoseTip
	default:
		anchor = pts.Forehead
	}
	anchor.Y -= a.preset.Lift * fw

	n := max(0, q.ParticleCount)
	speed := q.AnimationSpeed
	if speed == 0 {
		speed = 1
	}
	t := elapsed.Seconds() * speed
	phase := t * a.preset.Revolutions * 2 * math.Pi
	canvasRect := image.Rect(0, 0, width, height)

	out := make([]Particle, 0, n)
	for i := 0; i < n; i++ {
		theta := phase + 2*math.Pi*float64(i)/float64(n)
		p := Particle{
			X:      anchor.X + math.Cos(theta)*a.preset.OrbitX*fw,
			Y:      anchor.Y + math.Sin(theta)*a.preset.OrbitY*fw + math.Sin(t*4+float64(i))*a.preset.Bob*fw,
			Radius: a.preset.Size * fw,
			Glow:   float64(q.ShadowBlur),
			Color:  a.hue(i, n),
		}
		if !p.Bounds().In(canvasRect) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (a *Animated) hue(i, n int) colorful.Color {
	h := a.preset.Hue
	if n > 1 {
		h += a.preset.HueSpread * float64(i) / float64(n)
	}
	return colorful.Hsv(math.Mod(h, 360), a.preset.Saturation, 1)
}

// Render draws the visible particles. Only the rectangle covering them is
// read and written back.
func (a *Animated) Render(s render.Surface, face landmark.Set, vocab *landmark.Vocabulary, elapsed time.Duration, q perf.Quality) render.Result {
	pts, ok := geometry.FacePoints(face, vocab)
	if !ok {
		return render.FaceInvalid
	}
	particles := a.Layout(pts, elapsed, q, s.Width(), s.Height())
	if len(particles) == 0 {
		return render.OK
	}

	box := particles[0].Bounds()
	for _, p := range particles[1:] {
		box = box.Union(p.Bounds())
	}
	region := canvas.Region{X: box.Min.X, Y: box.Min.Y, Width: box.Dx(), Height: box.Dy()}

	buf, err := s.ReadRegion(region)
	if err != nil {
		a.logger.Debug("particle read failed", "filter", a.preset.Name, "error", err)
		return render.Degraded
	}

	img := &image.RGBA{Pix: buf, Stride: region.Width * 4, Rect: image.Rect(0, 0, region.Width, region.Height)}
	dc := gg.NewContextForRGBA(img)
	dc.Translate(-float64(region.X), -float64(region.Y))
	for _, p := range particles {
		a.draw(dc, p)
	}

	if err := s.WriteRegion(region, img.Pix); err != nil {
		a.logger.Debug("particle write failed", "filter", a.preset.Name, "error", err)
		return render.Degraded
	}
	return render.OK
}

func (a *Animated) draw(dc *gg.Context, p Particle) {
	c := p.Color
	if p.Glow > 0 {
		// Approximate a blurred shadow with fading rings.
		const rings = 4
		for k := rings; k >= 1; k-- {
			dc.SetRGBA(c.R, c.G, c.B, 0.08*a.preset.Alpha)
			dc.DrawCircle(p.X, p.Y, p.Radius+p.Glow*float64(k)/rings)
			dc.Fill()
		}
	}

	dc.SetRGBA(c.R, c.G, c.B, a.preset.Alpha)
	switch a.preset.Shape {
	case ShapeStar:
		drawStar(dc, p.X, p.Y, p.Radius)
	case ShapeHeart:
		drawHeart(dc, p.X, p.Y, p.Radius)
	case ShapeDot:
		dc.DrawPoint(p.X, p.Y, p.Radius)
		dc.Fill()
	default:
		dc.DrawCircle(p.X, p.Y, p.Radius)
		dc.Fill()
		// highlight
		dc.SetRGBA(1, 1, 1, 0.6*a.preset.Alpha)
		dc.DrawCircle(p.X-p.Radius*0.35, p.Y-p.Radius*0.35, p.Radius*0.25)
		dc.Fill()
	}
}

func drawStar(dc *gg.Context, x, y, r float64) {
	const points = 5
	inner := r * 0.45
	for i := 0; i < points*2; i++ {
		rad := r
		if i%2 == 1 {
			rad = inner
		}
		theta := -math.Pi/2 + float64(i)*math.Pi/points
		px, py := x+math.Cos(theta)*rad, y+math.Sin(theta)*rad
		if i == 0 {
			dc.MoveTo(px, py)
		} else {
			dc.LineTo(px, py)
		}
	}
	dc.ClosePath()
	dc.Fill()
}

func drawHeart(dc *gg.Context, x, y, r float64) {
	top := y - r*0.3
	dc.MoveTo(x, y+r)
	dc.CubicTo(x-r, y+r*0.2, x-r*0.8, y-r*0.9, x, top)
	dc.CubicTo(x+r*0.8, y-r*0.9, x+r, y+r*0.2, x, y+r)
	dc.ClosePath()
	dc.Fill()
}
