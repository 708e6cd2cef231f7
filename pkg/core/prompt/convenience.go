package prompt

// Convenience functions for common prompt operations

// GetAnalystPrompt returns an analyst node's system prompt by kind
// ("macro", "policy", "sector", "technical", "intl_news").
func GetAnalystPrompt(kind string) (string, error) {
	id := "analyst." + kind
	return Get().GetSystemPrompt(id)
}

// GetStrategyPrompt returns the strategy rationale prompt template.
func GetStrategyPrompt() (string, error) {
	return Get().GetSystemPrompt("strategy.rationale")
}

// MustGetAnalystPrompt is like GetAnalystPrompt but panics on error; only
// for wiring paths where the prompt is known to be loaded.
func MustGetAnalystPrompt(kind string) string {
	p, err := GetAnalystPrompt(kind)
	if err != nil {
		panic(err)
	}
	return p
}
