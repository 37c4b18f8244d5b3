// README: Trip plan value object extracted from assistant replies.
package plan

// TripPlan is the structured itinerary a model may append to its reply.
// Collections are nil when the model omitted them and empty when it sent [].
type TripPlan struct {
	Destination    string    `json:"destination"`
	Duration       string    `json:"duration"`
	Budget         string    `json:"budget"`
	Highlights     []string  `json:"highlights,omitempty"`
	Itinerary      []DayPlan `json:"itinerary,omitempty"`
	Accommodation  string    `json:"accommodation,omitempty"`
	Transportation string    `json:"transportation,omitempty"`
	Tips           []string  `json:"tips,omitempty"`
}

// DayPlan is one day of the itinerary. Day is 1-based as emitted by the model.
type DayPlan struct {
	Day        int      `json:"day"`
	Activities []string `json:"activities,omitempty"`
}

// Clone returns a deep copy. nil-ness of every collection is preserved.
func (p *TripPlan) Clone() *TripPlan {
	if p == nil {
		return nil
	}
	out := *p
	out.Highlights = cloneStrings(p.Highlights)
	out.Tips = cloneStrings(p.Tips)
	if p.Itinerary != nil {
		out.Itinerary = make([]DayPlan, len(p.Itinerary))
		for i, d := range p.Itinerary {
			out.Itinerary[i] = DayPlan{Day: d.Day, Activities: cloneStrings(d.Activities)}
		}
	}
	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
