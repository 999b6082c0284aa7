package manager

import "strings"

// SizeClassFor maps an inbound model name to a size class by
// case-insensitive substring match (§4.3): "haiku" -> small, "sonnet" ->
// middle, "opus" -> big, anything else -> big (default fallback).
func SizeClassFor(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "haiku"):
		return "small"
	case strings.Contains(lower, "sonnet"):
		return "middle"
	case strings.Contains(lower, "opus"):
		return "big"
	default:
		return "big"
	}
}
