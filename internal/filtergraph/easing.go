package filtergraph

import (
	"fmt"
	"math"

	"github.com/reelsmith/reelsmith/internal/media"
)

// Ease maps normalised progress p in [0,1] through the named curve.
func Ease(e media.Easing, p float64) float64 {
	p = math.Min(math.Max(p, 0), 1)
	switch e {
	case media.EaseIn:
		return p * p
	case media.EaseOut:
		return 1 - (1-p)*(1-p)
	case media.EaseInOut:
		return p * p * (3 - 2*p)
	default:
		return p
	}
}

// ZoomAt evaluates the zoom factor t seconds into the clip.
func ZoomAt(z media.ZoomSpec, t float64) float64 {
	if z.Duration <= 0 {
		return z.EndZoom
	}
	return z.StartZoom + (z.EndZoom-z.StartZoom)*Ease(z.Easing, t/z.Duration)
}

// easeExpr is Ease written in the engine's expression language with p
// substituted textually.
func easeExpr(e media.Easing, p string) string {
	switch e {
	case media.EaseIn:
		return fmt.Sprintf("(%[1]s)*(%[1]s)", p)
	case media.EaseOut:
		return fmt.Sprintf("(1-(1-(%[1]s))*(1-(%[1]s)))", p)
	case media.EaseInOut:
		return fmt.Sprintf("(%[1]s)*(%[1]s)*(3-2*(%[1]s))", p)
	default:
		return "(" + p + ")"
	}
}

// zoomExpr renders ZoomAt for zoompan, where time is the output frame
// index divided by the frame rate.
func zoomExpr(z media.ZoomSpec, fps float64) string {
	p := fmt.Sprintf("clip(on/%s,0,1)", Num(fps*z.Duration))
	return fmt.Sprintf("%s+%s*%s", Num(z.StartZoom), Num(z.EndZoom-z.StartZoom), easeExpr(z.Easing, p))
}
