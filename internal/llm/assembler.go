package llm

import (
	"unicode/utf8"

	"github.com/phrazzld/gitsong/internal/generation"
)

const (
	// CharsPerToken is the approximate number of characters in one token.
	CharsPerToken = 4
	// MessageOverhead is the estimated token cost of framing one message.
	MessageOverhead = 4
	// MaxTrimIterations bounds the trimming loop.
	MaxTrimIterations = 100
	// MinFieldRunes is the floor below which prompts are not truncated.
	MinFieldRunes = 200
)

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// EstimatePrompt approximates the token count of a whole prompt.
func EstimatePrompt(p generation.Prompt) int {
	total := 0
	if p.System != "" {
		total += EstimateTokens(p.System) + MessageOverhead
	}
	for _, m := range p.History {
		total += EstimateTokens(m.Text) + MessageOverhead
	}
	total += EstimateTokens(p.User) + MessageOverhead
	return total
}

// FitReport describes what Fit did.
type FitReport struct {
	Budget          int  `json:"budget"`
	InitialTokens   int  `json:"initial_tokens"`
	FinalTokens     int  `json:"final_tokens"`
	Iterations      int  `json:"iterations"`
	DroppedHistory  int  `json:"dropped_history"`
	TruncatedSystem bool `json:"truncated_system"`
	TruncatedUser   bool `json:"truncated_user"`
	WithinBudget    bool `json:"within_budget"`
}

// Assembler trims prompts to a token budget.
type Assembler struct {
	MaxIterations int
	MinFieldRunes int
}

// NewAssembler returns an Assembler with the package defaults.
func NewAssembler() *Assembler {
	return &Assembler{
		MaxIterations: MaxTrimIterations,
		MinFieldRunes: MinFieldRunes,
	}
}

// Fit returns a copy of p whose estimate is within budget, or the closest it
// could get. Each iteration takes the first applicable step:
//
//  1. drop the oldest history entry while more than one remains
//  2. cut the end of the system prompt by the overage, down to the floor
//  3. cut the end of the user prompt the same way
//
// and stops when no step applies. The input is not modified.
func (a *Assembler) Fit(p generation.Prompt, budget int) (generation.Prompt, FitReport) {
	out := generation.Prompt{
		System:  p.System,
		History: append([]generation.Message(nil), p.History...),
		User:    p.User,
	}

	est := EstimatePrompt(out)
	report := FitReport{Budget: budget, InitialTokens: est}

	for report.Iterations < a.MaxIterations && est > budget {
		overage := est - budget

		switch {
		case len(out.History) > 1:
			out.History = out.History[1:]
			report.DroppedHistory++
		case utf8.RuneCountInString(out.System) > a.MinFieldRunes:
			out.System = a.truncate(out.System, overage)
			report.TruncatedSystem = true
		case utf8.RuneCountInString(out.User) > a.MinFieldRunes:
			out.User = a.truncate(out.User, overage)
			report.TruncatedUser = true
		default:
			report.FinalTokens = est
			return out, report
		}

		report.Iterations++
		est = EstimatePrompt(out)
	}

	report.FinalTokens = est
	report.WithinBudget = est <= budget
	return out, report
}

// truncate removes overage*CharsPerToken runes from the end of s, keeping at
// least MinFieldRunes.
func (a *Assembler) truncate(s string, overage int) string {
	r := []rune(s)
	keep := len(r) - overage*CharsPerToken
	if keep < a.MinFieldRunes {
		keep = a.MinFieldRunes
	}
	return string(r[:keep])
}
