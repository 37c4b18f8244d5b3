package ai

import "strings"

const userTextSlot = "{{USER_MESSAGE}}"

// promptTemplate has exactly one substitution point, userTextSlot.
const promptTemplate = `You are a travel planning assistant. The user says: "{{USER_MESSAGE}}"

Analyze their request and respond conversationally. If they've provided enough information (destination, budget range, duration, interests), generate a structured travel plan in JSON format at the end of your response.

For a complete request, end your response with:
TRAVEL_PLAN_JSON:
{
  "destination": "City, Country",
  "duration": "X days",
  "budget": "$X,XXX - $X,XXX",
  "highlights": ["Activity 1", "Activity 2", "Activity 3"],
  "itinerary": [
    {"day": 1, "activities": ["Morning: X", "Afternoon: Y", "Evening: Z"]},
    {"day": 2, "activities": ["Morning: X", "Afternoon: Y", "Evening: Z"]}
  ],
  "accommodation": "Suggested hotel type/area",
  "transportation": "How to get around",
  "tips": ["Tip 1", "Tip 2"]
}

Otherwise, ask clarifying questions to gather: destination preferences, budget, travel dates/duration, interests (adventure, culture, relaxation, food, etc.), and travel companions.`

// BuildPrompt embeds userText into the planning instructions.
// The user text is inserted verbatim; nothing else varies between calls.
func BuildPrompt(userText string) string {
	return strings.Replace(promptTemplate, userTextSlot, userText, 1)
}
