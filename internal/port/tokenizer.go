package port

// TokenCounter estimates model token usage for stored messages.
type TokenCounter interface {
	CountTokens(text string) int
}
