package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/amiyaDev/perfguard/internal/model"
	"github.com/amiyaDev/perfguard/internal/rules"
)

// Downgrade maps a rule's base severity to the reported severity.
//
// CRITICAL is never downgraded. INLINE boundaries drop exactly one level.
// Other boundaries are softened by confidence: below 0.7 -> LOW,
// below 0.85 -> MEDIUM, otherwise unchanged.
func Downgrade(sev rules.Severity, confidence float64, boundary model.BoundaryType) rules.Severity {
	if sev == rules.SeverityCritical {
		return rules.SeverityCritical
	}

	if boundary == model.BoundaryInline {
		switch sev {
		case rules.SeverityHigh:
			return rules.SeverityMedium
		case rules.SeverityMedium:
			return rules.SeverityLow
		default:
			return rules.SeverityInfo
		}
	}

	if confidence < 0.7 {
		return rules.SeverityLow
	}
	if confidence < 0.85 {
		return rules.SeverityMedium
	}
	return sev
}

// Interpolate fills {name} placeholders from values. Numbers are rounded to
// the nearest integer; strings are inserted verbatim. Placeholders without a
// value are left as they are.
func Interpolate(template string, values map[string]any) string {
	result := template
	for key, value := range values {
		result = strings.ReplaceAll(result, "{"+key+"}", formatValue(value))
	}
	return result
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(math.Round(x), 'f', 0, 64)
	case float32:
		return strconv.FormatFloat(math.Round(float64(x)), 'f', 0, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
