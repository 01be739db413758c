package device

import "math"

// Colour helpers convert between representations used on the wire and by
// API consumers: packed 24-bit RGB integers and Kelvin colour temperature.

// RGBToInt packs RGB components into a 24-bit integer (0xRRGGBB).
func RGBToInt(r, g, b int) int {
	return (r << 16) | (g << 8) | b
}

// IntToRGB unpacks a 24-bit integer into RGB components.
func IntToRGB(value int) (r, g, b int) {
	r = (value >> 16) & 0xFF
	g = (value >> 8) & 0xFF
	b = value & 0xFF
	return r, g, b
}

// KelvinToRGB approximates a colour temperature as RGB for display
// purposes, using Tanner Helland's curve fits.
//
// Input is clamped to 1000-40000K.
func KelvinToRGB(kelvin int) (r, g, b int) {
	temp := float64(kelvin)
	if temp < 1000 {
		temp = 1000
	}
	if temp > 40000 {
		temp = 40000
	}
	temp /= 100

	var red, green, blue float64

	// Red
	if temp <= 66 {
		red = 255
	} else {
		red = 329.698727446 * math.Pow(temp-60, -0.1332047592)
		red = clampChannel(red)
	}

	// Green
	if temp <= 66 {
		if temp > 0 {
			green = 99.4708025861*math.Pow(temp, 0.39) - 161.1195681661
		}
	} else {
		green = 288.1221695283 * math.Pow(temp-60, -0.0755148492)
	}
	green = clampChannel(green)

	// Blue
	switch {
	case temp >= 66:
		blue = 255
	case temp <= 19:
		blue = 0
	default:
		blue = 138.5177312231*math.Pow(temp-10, 0.50) - 305.0447927307
		blue = clampChannel(blue)
	}

	return int(red), int(green), int(blue)
}

// clampChannel bounds a colour channel to 0-255.
func clampChannel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
