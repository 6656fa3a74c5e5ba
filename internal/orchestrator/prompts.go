package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/phrazzld/gitsong/internal/embedding"
	"github.com/phrazzld/gitsong/internal/generation"
)

const searchQuerySystem = `You help find the most interesting changes in a code repository.
Given a summary of recent commits, reply with one short search query (under 20 words)
describing the themes worth writing a song about. Reply with the query only.`

const lyricsSystem = `You are a songwriter who turns software development history into lyrics.
Write vivid, singable lyrics with verses and a chorus. Mark sections like [Verse 1], [Chorus].
Refer to real work from the commits you are shown, but never include code, URLs or secrets.
Reply with the lyrics only.`

const titleSystem = `You name songs. Reply with a title of at most 80 characters and nothing else.`

func searchQueryPrompt(summary string) generation.Prompt {
	return generation.Prompt{
		System: searchQuerySystem,
		User:   summary,
	}
}

// lyricsPrompt puts retrieved commits into history, least relevant first,
// so that trimming drops the weakest context before anything else.
func lyricsPrompt(summary, style string, matches []embedding.Match, maxRunes int) generation.Prompt {
	history := make([]generation.Message, 0, len(matches))
	for i := len(matches) - 1; i >= 0; i-- {
		history = append(history, generation.Message{
			Role: generation.RoleUser,
			Text: "Relevant commit excerpt:\n" + matches[i].Document,
		})
	}

	var user strings.Builder
	user.WriteString(summary)
	fmt.Fprintf(&user, "\nMusical style: %s\n", style)
	fmt.Fprintf(&user, "Write the song lyrics in at most %d characters.\n", maxRunes)

	return generation.Prompt{
		System:  lyricsSystem,
		History: history,
		User:    user.String(),
	}
}

func titlePrompt(lyrics, summary string) generation.Prompt {
	source := lyrics
	if source == "" {
		source = summary
	}
	return generation.Prompt{
		System: titleSystem,
		User:   source,
	}
}

// cleanTitle strips quotes and markup and caps the length.
func cleanTitle(raw string, maxRunes int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	line = strings.TrimPrefix(line, "Title:")
	line = strings.Trim(strings.TrimSpace(line), "\"'*#` ")
	return truncateRunes(line, maxRunes)
}

// clampLyrics cuts lyrics to maxRunes, preferring a line boundary.
func clampLyrics(lyrics string, maxRunes int) string {
	lyrics = strings.TrimSpace(lyrics)
	if utf8.RuneCountInString(lyrics) <= maxRunes {
		return lyrics
	}
	cut := truncateRunes(lyrics, maxRunes)
	if i := strings.LastIndex(cut, "\n"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
