package domain

import "slices"

// Tone labels. The set is closed: selection only rotates which one is current.
const (
	ToneCasual       = "casual"
	ToneFriendly     = "friendly"
	ToneProfessional = "professional"
)

// KnownTones lists every tone label in default display order.
var KnownTones = []string{ToneCasual, ToneFriendly, ToneProfessional}

// TonePreference holds the active tone and the ordered alternatives.
type TonePreference struct {
	Current   string   `json:"current"`
	Available []string `json:"available"`
}

// DefaultTone returns the initial preference: casual, with the rest available.
func DefaultTone() TonePreference {
	return TonePreference{
		Current:   ToneCasual,
		Available: []string{ToneFriendly, ToneProfessional},
	}
}

// Select makes tone current and moves the previous current to the end of
// Available. Selecting the current tone or one not in Available is a no-op.
// It reports whether the preference changed.
func (t *TonePreference) Select(tone string) bool {
	if tone == t.Current {
		return false
	}
	idx := slices.Index(t.Available, tone)
	if idx < 0 {
		return false
	}

	rest := make([]string, 0, len(t.Available))
	rest = append(rest, t.Available[:idx]...)
	rest = append(rest, t.Available[idx+1:]...)
	rest = append(rest, t.Current)

	t.Current = tone
	t.Available = rest
	return true
}

// Valid reports whether Current and Available together form exactly KnownTones
// with no duplicates.
func (t TonePreference) Valid() bool {
	if len(t.Available) != len(KnownTones)-1 {
		return false
	}
	seen := make(map[string]bool, len(KnownTones))
	for _, tone := range append([]string{t.Current}, t.Available...) {
		if seen[tone] || !slices.Contains(KnownTones, tone) {
			return false
		}
		seen[tone] = true
	}
	return true
}

// Clone returns a deep copy.
func (t TonePreference) Clone() TonePreference {
	return TonePreference{
		Current:   t.Current,
		Available: slices.Clone(t.Available),
	}
}
