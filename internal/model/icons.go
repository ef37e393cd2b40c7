package model

// Centralized glyphs for node kinds
// Using simple single-width characters for consistent terminal rendering
const (
	IconModule    = "▣"
	IconStore     = "▤"
	IconContainer = "▸" // arrays and objects
	IconLeaf      = "·"
	IconSignal    = "#"
	IconPlugin    = "⚙"
	IconDynamic   = "◇" // route needing params
	IconStatic    = "◆"
	IconProfile   = "≋"
	IconComponent = "○"
)

// IconFor returns the glyph drawn in front of a node of the given kind.
func IconFor(k Kind) string {
	switch k {
	case KindModule:
		return IconModule
	case KindStore:
		return IconStore
	case KindArray, KindObject:
		return IconContainer
	case KindString, KindNumber, KindBoolean, KindNull:
		return IconLeaf
	case KindSignal:
		return IconSignal
	case KindPlugin:
		return IconPlugin
	case KindDynamic:
		return IconDynamic
	case KindStatic:
		return IconStatic
	case KindProfile:
		return IconProfile
	default:
		return IconComponent
	}
}
