package util

import (
	"fmt"
	"math"
)

// FormatValueFactor renders a value with an SI prefix scaled unit.
func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	switch {
	case absValue >= 1 || value == 0:
		return fmt.Sprintf("%.4f %s", value, unit)
	case absValue >= 1e-3:
		return fmt.Sprintf("%.4f m%s", value*1e3, unit)
	case absValue >= 1e-6:
		return fmt.Sprintf("%.4f u%s", value*1e6, unit)
	default:
		return fmt.Sprintf("%.3e %s", value, unit)
	}
}
