package domain

// ToggleName identifies one overlay feature on the annotated stream.
type ToggleName string

const (
	ToggleBlur    ToggleName = "blur"
	ToggleTrace   ToggleName = "trace"
	ToggleHeatmap ToggleName = "heatmap"
	ToggleLine    ToggleName = "line"
	ToggleZone    ToggleName = "zone"
)

// ToggleNames lists every overlay feature in a stable order.
// The control channel replays all of them on every open, never deltas.
func ToggleNames() []ToggleName {
	return []ToggleName{ToggleBlur, ToggleTrace, ToggleHeatmap, ToggleLine, ToggleZone}
}

// ToggleSet holds the desired on/off state per overlay feature.
type ToggleSet map[ToggleName]bool

// NewToggleSet returns a set with every feature off.
func NewToggleSet() ToggleSet {
	s := make(ToggleSet, len(ToggleNames()))
	for _, n := range ToggleNames() {
		s[n] = false
	}
	return s
}

// Clone returns an independent copy.
func (s ToggleSet) Clone() ToggleSet {
	out := make(ToggleSet, len(s))
	for n, v := range s {
		out[n] = v
	}
	return out
}

// Valid reports whether name is a known overlay feature.
func (n ToggleName) Valid() bool {
	switch n {
	case ToggleBlur, ToggleTrace, ToggleHeatmap, ToggleLine, ToggleZone:
		return true
	}
	return false
}
