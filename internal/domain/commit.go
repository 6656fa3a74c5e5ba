package domain

import (
	"fmt"
	"strings"
	"time"
)

// CommitFile is the per-file change summary of a commit.
type CommitFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch,omitempty"`
}

// Commit is the source-control view of one commit.
type Commit struct {
	SHA            string       `json:"sha"`
	Author         string       `json:"author"`
	AuthorEmail    string       `json:"author_email,omitempty"`
	Committer      string       `json:"committer"`
	Date           time.Time    `json:"date"`
	Message        string       `json:"message"`
	URL            string       `json:"url,omitempty"`
	Files          []CommitFile `json:"files,omitempty"`
	TotalAdditions int          `json:"total_additions"`
	TotalDeletions int          `json:"total_deletions"`
}

// ShortSHA returns the first seven characters of the commit hash.
func (c Commit) ShortSHA() string {
	if len(c.SHA) <= 7 {
		return c.SHA
	}
	return c.SHA[:7]
}

// Document renders the commit as plain text for embedding and prompting.
func (c Commit) Document() string {
	var b strings.Builder
	fmt.Fprintf(&b, "commit %s\n", c.SHA)
	fmt.Fprintf(&b, "author: %s\n", c.Author)
	fmt.Fprintf(&b, "date: %s\n", c.Date.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(c.Message))
	if len(c.Files) > 0 {
		b.WriteString("\nfiles:\n")
		for _, f := range c.Files {
			fmt.Fprintf(&b, "  %s (+%d -%d)\n", f.Filename, f.Additions, f.Deletions)
		}
		for _, f := range c.Files {
			if f.Patch == "" {
				continue
			}
			fmt.Fprintf(&b, "\ndiff %s\n%s\n", f.Filename, f.Patch)
		}
	}
	return b.String()
}

// Repository identifies a source-control repository.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// String returns the owner/name form.
func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// ContentChunk is a bounded slice of a larger text, produced for embedding.
// Chunks are ephemeral; the vector store is the system of record.
type ContentChunk struct {
	SourceID  string `json:"source_id"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
	ByteStart int    `json:"byte_start"`
	ByteEnd   int    `json:"byte_end"`
}

// ID returns the deterministic identifier of the chunk within its source.
func (c ContentChunk) ID() string {
	return fmt.Sprintf("%s#%d", c.SourceID, c.Index)
}
