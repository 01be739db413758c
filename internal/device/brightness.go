package device

import "math"

// Brightness helpers convert between the canonical 0-255 scale used by API
// consumers and a device's native range. Most products use 0-100; some
// report 0-254 in their brightness capability.

// canonicalMax is the top of the canonical brightness scale.
const canonicalMax = 255

// BrightnessToDevice scales a canonical 0-255 brightness to the device's
// native range.
//
// Example:
//
//	BrightnessToDevice(255, 0, 100) // 100
//	BrightnessToDevice(127, 0, 100) // 50
func BrightnessToDevice(brightness, min, max int) int {
	if brightness <= 0 {
		return min
	}
	if brightness >= canonicalMax {
		return max
	}

	rangeSize := max - min
	scaled := int(math.Round(float64(brightness)/canonicalMax*float64(rangeSize))) + min

	if scaled < min {
		return min
	}
	if scaled > max {
		return max
	}
	return scaled
}

// BrightnessFromDevice scales a device-native brightness back to the
// canonical 0-255 scale.
//
// Example:
//
//	BrightnessFromDevice(100, 0, 100) // 255
//	BrightnessFromDevice(50, 0, 100)  // 128
func BrightnessFromDevice(value, min, max int) int {
	if value <= min {
		return 0
	}
	if value >= max {
		return canonicalMax
	}

	rangeSize := max - min
	if rangeSize == 0 {
		return 0
	}

	normalized := float64(value-min) / float64(rangeSize)
	return int(math.Round(normalized * canonicalMax))
}
