package model

import "time"

// ViewRow is a single rendered line: a label, a formatted time, and the
// direction marker. Consumed once by the renderer.
type ViewRow struct {
	Label     string
	Time      string
	Direction string
	// Indent marks continuation rows within a group; the first row of a
	// group carries the label, the rest are indented under it.
	Indent bool
}

// ViewGroup is an ordered run of rows sharing a route/direction/station,
// depending on the display mode.
type ViewGroup struct {
	Title string
	Rows  []ViewRow
}

// ViewModel is the rendering-agnostic output of one aggregation pass.
type ViewModel struct {
	Title       string
	GeneratedAt time.Time
	Groups      []ViewGroup
}

// Equal reports whether two view models would render identically.
// GeneratedAt is deliberately excluded: the e-ink display should not redraw
// for a timestamp-only change.
func (v *ViewModel) Equal(other *ViewModel) bool {
	if other == nil {
		return false
	}
	if v.Title != other.Title || len(v.Groups) != len(other.Groups) {
		return false
	}
	for i, g := range v.Groups {
		og := other.Groups[i]
		if g.Title != og.Title || len(g.Rows) != len(og.Rows) {
			return false
		}
		for j, r := range g.Rows {
			if r != og.Rows[j] {
				return false
			}
		}
	}
	return true
}
