package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Markers the model must emit. The loop's system prompt mandates this
// exact format; anything else is a recoverable parse error.
const (
	markerThought     = "Thought:"
	markerAction      = "Action:"
	markerActionInput = "Action Input:"
	markerFinalAnswer = "Final Answer:"
)

// parsedResponse is one thinking step's decoded output: either a final
// answer or a tool action.
type parsedResponse struct {
	Thought     string
	Action      string
	ActionInput map[string]any
	FinalAnswer string
	IsFinal     bool
}

// parseResponse decodes a model response in ReAct format. A Final
// Answer marker wins over an action; a response with neither marker,
// or with unparseable action input, is a parse error the loop recovers
// from by injecting an error observation.
func parseResponse(text string) (*parsedResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	if idx := strings.Index(text, markerFinalAnswer); idx >= 0 {
		return &parsedResponse{
			Thought:     extractThought(text[:idx]),
			FinalAnswer: strings.TrimSpace(text[idx+len(markerFinalAnswer):]),
			IsFinal:     true,
		}, nil
	}

	actionIdx := strings.Index(text, markerAction)
	if actionIdx < 0 {
		return nil, fmt.Errorf("missing %q or %q marker", markerAction, markerFinalAnswer)
	}

	rest := text[actionIdx+len(markerAction):]
	inputIdx := strings.Index(rest, markerActionInput)

	var actionName, rawInput string
	if inputIdx >= 0 {
		actionName = rest[:inputIdx]
		rawInput = strings.TrimSpace(rest[inputIdx+len(markerActionInput):])
	} else {
		actionName = rest
	}
	actionName = strings.TrimSpace(strings.Split(strings.TrimSpace(actionName), "\n")[0])
	if actionName == "" {
		return nil, fmt.Errorf("empty action name")
	}

	args := map[string]any{}
	if rawInput != "" && rawInput != "{}" {
		// Decode only the first JSON value; models often append prose
		// or a hallucinated Observation after the arguments.
		dec := json.NewDecoder(strings.NewReader(rawInput))
		if err := dec.Decode(&args); err != nil {
			return nil, fmt.Errorf("unparseable action input %q: %w", truncate(rawInput, 120), err)
		}
	}

	return &parsedResponse{
		Thought:     extractThought(text[:actionIdx]),
		Action:      actionName,
		ActionInput: args,
	}, nil
}

// extractThought pulls the reasoning text preceding an action marker.
func extractThought(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.LastIndex(text, markerThought); idx >= 0 {
		text = text[idx+len(markerThought):]
	}
	return strings.TrimSpace(text)
}

// truncate bounds s to max bytes, appending an ellipsis when cut. The
// cut backs up to a rune boundary so the result stays valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
