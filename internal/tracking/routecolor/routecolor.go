// Package routecolor assigns each device a stable route color derived from
// the first character of its identifier. Identifiers sharing a first
// character share a color.
package routecolor

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

const (
	hueStep    = 137.5
	saturation = 70
	lightness  = 50
)

// Default is used when no device identifier is available.
const Default Color = "#2563eb"

// Color is a CSS color value.
type Color string

func (c Color) String() string {
	return string(c)
}

// For returns the route color for deviceID.
func For(deviceID string) Color {
	if deviceID == "" {
		return Default
	}
	r, _ := utf8.DecodeRuneInString(deviceID)
	return Color(fmt.Sprintf("hsl(%s, %d%%, %d%%)", formatHue(Hue(r)), saturation, lightness))
}

// Hue maps a code point onto [0, 360).
func Hue(r rune) float64 {
	return math.Mod(float64(r)*hueStep, 360)
}

func formatHue(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
