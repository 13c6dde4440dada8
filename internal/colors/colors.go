package colors

import (
	"fmt"
	"strconv"
	"strings"
)

// Blend mixes two hex colors in rgb space; t=0 is hex1, t=1 is hex2.
func Blend(hex1 string, hex2 string, t float64) string {
	if t <= 0 {
		return normalize(hex1)
	}
	if t >= 1 {
		return normalize(hex2)
	}

	r1, g1, b1 := HexToRGB(hex1)
	r2, g2, b2 := HexToRGB(hex2)
	return RGBToHex(
		r1+int(t*float64(r2-r1)),
		g1+int(t*float64(g2-g1)),
		b1+int(t*float64(b2-b1)),
	)
}

func AdjustBrightness(hex string, factor float64) string {
	r, g, b := HexToRGB(hex)
	return RGBToHex(
		int(float64(r)*factor),
		int(float64(g)*factor),
		int(float64(b)*factor),
	)
}

// AddGlow brightens a color by up to 60% at full intensity.
func AddGlow(hex string, intensity float64) string {
	return AdjustBrightness(hex, 1.0+intensity*0.6)
}

// HexToRGB parses #RRGGBB. Anything unparseable comes back white.
func HexToRGB(hex string) (int, int, int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 255, 255, 255
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 255, 255, 255
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}

func RGBToHex(r int, g int, b int) string {
	return fmt.Sprintf("#%02X%02X%02X", clampInt(r, 0, 255), clampInt(g, 0, 255), clampInt(b, 0, 255))
}

func normalize(hex string) string {
	return RGBToHex(HexToRGB(hex))
}

func clampInt(val int, min int, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
