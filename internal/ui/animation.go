package ui

import (
	"math"
)

// AnimState drives the fade between the previous and the current line.
type AnimState struct {
	TransitionProgress float64
	GlowIntensity      float64
}

func (a *AnimState) Reset() {
	a.TransitionProgress = 1
	a.GlowIntensity = 0
}

func (a *AnimState) Update(newLine bool, transitionTicks int) {
	if transitionTicks <= 0 {
		transitionTicks = 8
	}

	if newLine {
		a.TransitionProgress = 0
		a.GlowIntensity = 1.0
	}

	if a.TransitionProgress < 1.0 {
		a.TransitionProgress = clamp(a.TransitionProgress+1.0/float64(transitionTicks), 0, 1)
	}

	if a.GlowIntensity > 0 {
		a.GlowIntensity *= 0.85
		if a.GlowIntensity < 0.01 {
			a.GlowIntensity = 0
		}
	}
}

// Fade is the eased transition value in [0, 1].
func (a *AnimState) Fade() float64 {
	return easeOutCubic(a.TransitionProgress)
}

func easeOutCubic(t float64) float64 {
	if t >= 1 {
		return 1
	}
	if t <= 0 {
		return 0
	}
	return 1 - math.Pow(1-t, 3)
}

func lerp(a float64, b float64, t float64) float64 {
	return a + (b-a)*t
}

func clamp(val float64, min float64, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
