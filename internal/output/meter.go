package output

import (
	"fmt"
	"strings"
)

// Meter renders a bar for value out of limit, e.g. "██████░░░░ 30/50".
// Filling up is good when higherIsBetter, otherwise it shifts toward red.
func Meter(value, limit float64, width int, higherIsBetter bool) string {
	if width <= 0 {
		width = 20
	}
	var ratio float64
	if limit > 0 {
		ratio = value / limit
	}
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	score := ratio
	if !higherIsBetter {
		score = 1 - ratio
	}
	style := StyleError
	switch {
	case score >= 0.7:
		style = StyleSuccess
	case score >= 0.4:
		style = StyleWarning
	}
	return fmt.Sprintf("%s %s", style.Render(bar), StyleMuted.Render(fmt.Sprintf("%.0f/%.0f", value, limit)))
}

// ConfidenceBar renders a location confidence in [0,1].
func ConfidenceBar(confidence float64, width int) string {
	return Meter(confidence*100, 100, width, true)
}

// Section returns a styled section header with a horizontal rule.
func Section(title string) string {
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", 66))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}
