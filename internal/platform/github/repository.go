package github

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/phrazzld/gitsong/internal/domain"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ParseRepository accepts "owner/repo", an https GitHub URL or an scp-style
// git remote and returns the repository coordinates.
func ParseRepository(s string) (domain.Repository, error) {
	raw := strings.TrimSpace(s)
	path := raw

	switch {
	case strings.HasPrefix(raw, "git@"):
		idx := strings.Index(raw, ":")
		if idx < 0 {
			return domain.Repository{}, fmt.Errorf("%w: malformed git remote %q", domain.ErrValidation, s)
		}
		path = raw[idx+1:]
	case strings.Contains(raw, "://"):
		u, err := url.Parse(raw)
		if err != nil {
			return domain.Repository{}, fmt.Errorf("%w: malformed repository URL %q", domain.ErrValidation, s)
		}
		path = u.Path
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return domain.Repository{}, fmt.Errorf("%w: repository must look like owner/repo, got %q", domain.ErrValidation, s)
	}

	repo := domain.Repository{Owner: parts[0], Name: parts[1]}
	if !namePattern.MatchString(repo.Owner) || !namePattern.MatchString(repo.Name) {
		return domain.Repository{}, fmt.Errorf("%w: invalid repository %q", domain.ErrValidation, s)
	}
	return repo, nil
}
