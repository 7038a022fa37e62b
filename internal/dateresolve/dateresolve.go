// Package dateresolve resolves a DateSpec — an absolute month, an age of the
// user, or a reference to a named life event — to a concrete month.
package dateresolve

import "github.com/guido4f/finhorizon/internal/month"

// Kind tags which variant a DateSpec holds.
type Kind int

const (
	// KindAbsolute is a DateSpec naming a concrete Month directly.
	KindAbsolute Kind = iota
	// KindAge is a DateSpec naming an age in whole years of the profile's owner.
	KindAge
	// KindLifeEvent is a DateSpec naming another event by id.
	KindLifeEvent
)

// Spec is a tagged variant: exactly one of its fields is meaningful,
// selected by Kind. Constructed via Absolute, Age, or LifeEvent.
type Spec struct {
	Kind    Kind
	Month   month.Month // meaningful when Kind == KindAbsolute
	Years   int         // meaningful when Kind == KindAge
	EventID string      // meaningful when Kind == KindLifeEvent
}

// Absolute constructs a DateSpec that resolves to m directly.
func Absolute(m month.Month) Spec { return Spec{Kind: KindAbsolute, Month: m} }

// Age constructs a DateSpec that resolves to birth + years*12. Ages outside
// [0, 120] never resolve (see Resolve).
func Age(years int) Spec { return Spec{Kind: KindAge, Years: years} }

// LifeEvent constructs a DateSpec that resolves by following the named
// event's own date.
func LifeEvent(eventID string) Spec { return Spec{Kind: KindLifeEvent, EventID: eventID} }

// Event is a named temporal anchor with its own optional DateSpec, letting
// several financial items share one editable reference date.
type Event struct {
	ID   string
	Name string
	Date *Spec
}

const (
	minAgeYears = 0
	maxAgeYears = 120
)

// Resolve reduces spec to a concrete Month given the profile owner's birth
// month and the set of life events it may reference. It returns (_, false)
// in exactly four cases: spec is nil; an Age falls outside [0, 120]; a
// LifeEvent names a missing id or an event with no date of its own; or a
// chain of LifeEvent references revisits an id already seen on this
// resolution path. The algorithm is iterative with an explicit visited set,
// so a reference cycle terminates in bounded time instead of recursing
// forever.
func Resolve(spec *Spec, birth month.Month, events []Event) (month.Month, bool) {
	if spec == nil {
		return 0, false
	}

	index := make(map[string]Event, len(events))
	for _, e := range events {
		index[e.ID] = e
	}

	visited := make(map[string]bool)
	cur := spec
	for {
		switch cur.Kind {
		case KindAbsolute:
			return cur.Month, true

		case KindAge:
			if cur.Years < minAgeYears || cur.Years > maxAgeYears {
				return 0, false
			}
			return birth.AddYears(cur.Years), true

		case KindLifeEvent:
			if visited[cur.EventID] {
				return 0, false
			}
			visited[cur.EventID] = true

			evt, ok := index[cur.EventID]
			if !ok || evt.Date == nil {
				return 0, false
			}
			cur = evt.Date

		default:
			return 0, false
		}
	}
}
