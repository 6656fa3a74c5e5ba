package orchestrator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/phrazzld/gitsong/internal/domain"
)

const topFilesLimit = 10

// AuthorCount is one row of the author histogram.
type AuthorCount struct {
	Author  string `json:"author"`
	Commits int    `json:"commits"`
}

// FileChange is one row of the most-changed-files ranking.
type FileChange struct {
	Filename string `json:"filename"`
	Changes  int    `json:"changes"`
	Commits  int    `json:"commits"`
}

// Summary describes a set of commits.
type Summary struct {
	Commits   int           `json:"commits"`
	Authors   []AuthorCount `json:"authors"`
	TopFiles  []FileChange  `json:"top_files"`
	First     time.Time     `json:"first"`
	Last      time.Time     `json:"last"`
	Additions int           `json:"additions"`
	Deletions int           `json:"deletions"`
}

// Span is the time between the first and last commit.
func (s Summary) Span() time.Duration {
	return s.Last.Sub(s.First)
}

// Summarize builds the author histogram, file ranking and time span.
// Ties are broken by name so the result is deterministic.
func Summarize(commits []domain.Commit) Summary {
	s := Summary{Commits: len(commits)}
	authors := map[string]int{}
	files := map[string]*FileChange{}

	for i, c := range commits {
		authors[c.Author]++
		s.Additions += c.TotalAdditions
		s.Deletions += c.TotalDeletions
		if i == 0 || c.Date.Before(s.First) {
			s.First = c.Date
		}
		if i == 0 || c.Date.After(s.Last) {
			s.Last = c.Date
		}
		for _, f := range c.Files {
			fc, ok := files[f.Filename]
			if !ok {
				fc = &FileChange{Filename: f.Filename}
				files[f.Filename] = fc
			}
			changes := f.Changes
			if changes == 0 {
				changes = f.Additions + f.Deletions
			}
			fc.Changes += changes
			fc.Commits++
		}
	}

	for name, n := range authors {
		s.Authors = append(s.Authors, AuthorCount{Author: name, Commits: n})
	}
	sort.Slice(s.Authors, func(i, j int) bool {
		if s.Authors[i].Commits != s.Authors[j].Commits {
			return s.Authors[i].Commits > s.Authors[j].Commits
		}
		return s.Authors[i].Author < s.Authors[j].Author
	})

	for _, fc := range files {
		s.TopFiles = append(s.TopFiles, *fc)
	}
	sort.Slice(s.TopFiles, func(i, j int) bool {
		if s.TopFiles[i].Changes != s.TopFiles[j].Changes {
			return s.TopFiles[i].Changes > s.TopFiles[j].Changes
		}
		return s.TopFiles[i].Filename < s.TopFiles[j].Filename
	})
	if len(s.TopFiles) > topFilesLimit {
		s.TopFiles = s.TopFiles[:topFilesLimit]
	}
	return s
}

// Text renders the summary for a prompt.
func (s Summary) Text(repo domain.Repository) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", repo)
	fmt.Fprintf(&b, "Commits: %d (+%d -%d lines)\n", s.Commits, s.Additions, s.Deletions)
	if s.Commits > 0 {
		fmt.Fprintf(&b, "Period: %s to %s\n",
			s.First.UTC().Format(time.RFC3339), s.Last.UTC().Format(time.RFC3339))
	}
	if len(s.Authors) > 0 {
		b.WriteString("Authors:\n")
		for _, a := range s.Authors {
			fmt.Fprintf(&b, "  %s: %d\n", a.Author, a.Commits)
		}
	}
	if len(s.TopFiles) > 0 {
		b.WriteString("Most changed files:\n")
		for _, f := range s.TopFiles {
			fmt.Fprintf(&b, "  %s: %d lines in %d commits\n", f.Filename, f.Changes, f.Commits)
		}
	}
	return b.String()
}
