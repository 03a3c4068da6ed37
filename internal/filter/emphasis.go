package filter

// Opacity levels for story cards
const (
	OpacityNormal = 1.0
	OpacityDimmed = 0.3
	OpacityMuted  = 0.05
)

// Emphasis tracks solo and mute toggles on story cards. It only changes how
// cards are drawn; Task never consults it.
type Emphasis struct {
	solo map[string]bool
	mute map[string]bool
}

func NewEmphasis() *Emphasis {
	return &Emphasis{solo: map[string]bool{}, mute: map[string]bool{}}
}

// ToggleSolo flips the solo flag and returns the new value
func (e *Emphasis) ToggleSolo(storyID string) bool {
	if e.solo[storyID] {
		delete(e.solo, storyID)
		return false
	}
	e.solo[storyID] = true
	return true
}

// ToggleMute flips the mute flag and returns the new value
func (e *Emphasis) ToggleMute(storyID string) bool {
	if e.mute[storyID] {
		delete(e.mute, storyID)
		return false
	}
	e.mute[storyID] = true
	return true
}

func (e *Emphasis) IsSolo(storyID string) bool { return e.solo[storyID] }

func (e *Emphasis) IsMuted(storyID string) bool { return e.mute[storyID] }

// Clear drops every solo and mute flag
func (e *Emphasis) Clear() {
	e.solo = map[string]bool{}
	e.mute = map[string]bool{}
}

// Opacity returns the draw weight of a story card. Mute beats solo.
func (e *Emphasis) Opacity(storyID string) float64 {
	if e.mute[storyID] {
		return OpacityMuted
	}
	if len(e.solo) > 0 && !e.solo[storyID] {
		return OpacityDimmed
	}
	return OpacityNormal
}
