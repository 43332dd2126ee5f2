package form

import "math"

// Navigator is the section state machine. Navigation validates the section
// being left so errors surface, but it never blocks the move: users may jump
// ahead and fix errors later. Only visibility gates a transition.
type Navigator struct {
	schema *Schema
	active string
}

// NewNavigator starts at the first section of the static order.
func NewNavigator(schema *Schema) *Navigator {
	return &Navigator{schema: schema, active: sections[0].ID}
}

// ActiveSection returns the current section id.
func (n *Navigator) ActiveSection() string { return n.active }

// VisibleSections returns the order-preserving visible subsequence for the
// given record.
func (n *Navigator) VisibleSections(r Record) []Section {
	out := make([]Section, 0, len(sections))
	for _, sec := range sections {
		if sec.Visible == nil || sec.Visible(r) {
			out = append(out, sec)
		}
	}
	return out
}

// GoNext validates the current section and advances to the next visible one.
// From the last visible section it stays put; the caller replaces the next
// action with submit there (see IsLast). When the active section itself has
// become invisible, the move snaps to the nearest visible section instead.
func (n *Navigator) GoNext(r Record) Result {
	res := n.validateActive(r)
	if n.snap(r, 1) {
		return res
	}
	visible := n.VisibleSections(r)
	for i, sec := range visible {
		if sec.ID == n.active && i+1 < len(visible) {
			n.active = visible[i+1].ID
			break
		}
	}
	return res
}

// GoPrevious validates the current section and moves back.
func (n *Navigator) GoPrevious(r Record) Result {
	res := n.validateActive(r)
	if n.snap(r, -1) {
		return res
	}
	visible := n.VisibleSections(r)
	for i, sec := range visible {
		if sec.ID == n.active && i > 0 {
			n.active = visible[i-1].ID
			break
		}
	}
	return res
}

// snap relocates the active section when a field change has made it
// invisible, searching the static order in direction dir first and the
// opposite direction as a fallback. The relocation counts as the move.
func (n *Navigator) snap(r Record, dir int) bool {
	pos := -1
	for i, sec := range sections {
		if sec.ID == n.active {
			pos = i
			break
		}
	}
	if pos < 0 {
		n.active = sections[0].ID
		return true
	}
	if sectionVisible(sections[pos], r) {
		return false
	}
	for i := pos + dir; i >= 0 && i < len(sections); i += dir {
		if sectionVisible(sections[i], r) {
			n.active = sections[i].ID
			return true
		}
	}
	for i := pos - dir; i >= 0 && i < len(sections); i -= dir {
		if sectionVisible(sections[i], r) {
			n.active = sections[i].ID
			return true
		}
	}
	return true
}

func sectionVisible(sec Section, r Record) bool {
	return sec.Visible == nil || sec.Visible(r)
}

// GoTo jumps to a section directly. The move succeeds whenever the target is
// currently visible, regardless of validation state.
func (n *Navigator) GoTo(id string, r Record) (Result, bool) {
	res := n.validateActive(r)
	for _, sec := range n.VisibleSections(r) {
		if sec.ID == id {
			n.active = id
			return res, true
		}
	}
	return res, false
}

// IsLast reports whether the active section is the last visible one, i.e.
// the point where "next" becomes "submit".
func (n *Navigator) IsLast(r Record) bool {
	visible := n.VisibleSections(r)
	return len(visible) > 0 && visible[len(visible)-1].ID == n.active
}

func (n *Navigator) validateActive(r Record) Result {
	for _, sec := range sections {
		if sec.ID == n.active {
			return n.schema.ValidateFields(r, sec.Fields)
		}
	}
	return Result{}
}

// SectionState summarizes one section for the stepper indicator.
type SectionState struct {
	ID       string `json:"id"`
	Active   bool   `json:"active"`
	Complete bool   `json:"complete"`
	HasError bool   `json:"hasError"`
}

// SectionStates reports completion per visible section against a validation
// result for the same record.
func (n *Navigator) SectionStates(r Record, res Result) []SectionState {
	visible := n.VisibleSections(r)
	out := make([]SectionState, 0, len(visible))
	for _, sec := range visible {
		state := SectionState{ID: sec.ID, Active: sec.ID == n.active, Complete: true}
		for _, name := range sec.Fields {
			if !Visible(name, r) {
				continue
			}
			if res.HasError(name) {
				state.HasError = true
				state.Complete = false
				continue
			}
			if RequiredNow(name, r) {
				if v, ok := r[name]; !ok || !v.HasData() {
					state.Complete = false
				}
			}
		}
		out = append(out, state)
	}
	return out
}

// Progress computes fill-in percentage. Counted fields are those in visible
// sections that are currently required, or optional but already holding data;
// a counted field scores when it has data and no error.
func (n *Navigator) Progress(r Record, res Result) int {
	counted, filled := 0, 0
	for _, sec := range n.VisibleSections(r) {
		for _, name := range sec.Fields {
			if !Visible(name, r) {
				continue
			}
			v, ok := r[name]
			hasData := ok && v.HasData()
			if !RequiredNow(name, r) && !hasData {
				continue
			}
			counted++
			if hasData && !res.HasError(name) {
				filled++
			}
		}
	}
	if counted == 0 {
		return 0
	}
	return int(math.Round(100 * float64(filled) / float64(counted)))
}
