// README: Plain-text rendering of a trip plan for terminal clients.
package plan

import (
	"fmt"
	"io"
	"strings"
)

// WriteText renders p as a "Trip Overview" panel. A nil plan renders the empty-state hint.
// Missing collections leave their section empty rather than failing.
func WriteText(w io.Writer, p *TripPlan) error {
	var b strings.Builder
	b.WriteString("== Trip Overview ==\n")
	if p == nil {
		b.WriteString("Start chatting to generate your personalized travel plan!\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "Destination: %s\n", p.Destination)
	fmt.Fprintf(&b, "Duration:    %s\n", p.Duration)
	fmt.Fprintf(&b, "Budget:      %s\n", p.Budget)

	b.WriteString("\nHighlights\n")
	for _, h := range p.Highlights {
		fmt.Fprintf(&b, "  • %s\n", h)
	}

	b.WriteString("\nItinerary\n")
	for _, d := range p.Itinerary {
		fmt.Fprintf(&b, "  Day %d\n", d.Day)
		for _, a := range d.Activities {
			fmt.Fprintf(&b, "    - %s\n", a)
		}
	}

	if p.Accommodation != "" {
		fmt.Fprintf(&b, "\nStay:        %s\n", p.Accommodation)
	}
	if p.Transportation != "" {
		fmt.Fprintf(&b, "Getting around: %s\n", p.Transportation)
	}

	b.WriteString("\nPro Tips\n")
	for _, t := range p.Tips {
		fmt.Fprintf(&b, "  ✓ %s\n", t)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
