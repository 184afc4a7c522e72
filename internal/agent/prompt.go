package agent

import (
	"fmt"
	"strings"
)

// systemPromptTemplate is the ReAct instruction block. The agent is a
// DevOps engineer persona; the format rules keep small instruct models
// on the Thought/Action/Observation rails.
const systemPromptTemplate = `You are an AI DevOps engineer for monitoring and repairing a distributed system.

Tools:
%s

## Format (REQUIRED)

Every response MUST use this exact format:

Thought: [Your reasoning]
Action: [Tool name from: %s]
Action Input: {"parameter": "value"}

After each action the tool result appears as an Observation. Repeat
Thought/Action/Action Input until the task is done.

When finished:
Thought: Task complete
Final Answer: [Summary of actions and results]

CRITICAL: Always provide both "Action:" and "Action Input:" on separate lines.
Use {} as Action Input for tools that take no arguments.
If no tool is needed, go straight to Final Answer.`

// buildMessages assembles the conversation for one thinking step: the
// system prompt, then the task plus the accumulated scratchpad of
// prior steps.
func buildMessages(toolListing, toolNames, task, scratchpad string) (system, user string) {
	system = fmt.Sprintf(systemPromptTemplate, toolListing, toolNames)
	user = "Question: " + task
	if scratchpad != "" {
		user += "\n\n" + scratchpad
	}
	return system, user
}

// renderScratchpad serializes completed steps back into the prompt so
// the model sees its own prior reasoning and the tool observations.
func renderScratchpad(steps []Step) string {
	var b strings.Builder
	for _, s := range steps {
		if s.Thought != "" {
			fmt.Fprintf(&b, "Thought: %s\n", s.Thought)
		}
		if s.Action != "" {
			fmt.Fprintf(&b, "Action: %s\nAction Input: %s\n", s.Action, s.renderInput())
		}
		fmt.Fprintf(&b, "Observation: %s\n", s.Observation)
	}
	return strings.TrimRight(b.String(), "\n")
}
