package route

// Profile narrows what the assistant may do for a category.
type Profile struct {
	Tools        []string
	SystemPrompt string
}

// DefaultProfiles returns the stock profile per category.
func DefaultProfiles() map[Category]Profile {
	return map[Category]Profile{
		CategoryTestRunner: {
			Tools: []string{"Bash", "Read", "Grep", "Glob"},
			SystemPrompt: "You are running tests for a voice-dispatched command. " +
				"Run the relevant suites, report failures with their likely cause, and keep the summary short. " +
				"Do not modify code unless the instruction asks for it.",
		},
		CategoryDeployer: {
			Tools: []string{"Bash", "Read", "Grep", "Glob", "Edit", "Write"},
			SystemPrompt: "You are handling a deployment or git operation for a voice-dispatched command. " +
				"Run the test suite before deploying and stop if it fails. " +
				"Verify the result and describe how to roll back.",
		},
		CategoryResearcher: {
			Tools: []string{"Read", "Grep", "Glob", "WebSearch", "WebFetch"},
			SystemPrompt: "You are answering a question for a voice-dispatched command. " +
				"You have read-only access. Cite file paths for every claim about the codebase.",
		},
		CategoryGeneral: {
			Tools: []string{"Bash", "Read", "Grep", "Glob", "Edit", "Write"},
			SystemPrompt: "You are handling a voice-dispatched command. " +
				"Ask before anything destructive when the instruction is unclear.",
		},
	}
}
