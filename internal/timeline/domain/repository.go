package domain

import (
	"regexp"
	"strings"
)

// repositoryURLPattern matches "github.com/{owner}/{name}". Segments stop at
// "/", "?" and "#", so trailing paths, queries and fragments are ignored.
var repositoryURLPattern = regexp.MustCompile(`github\.com/([^/?#]+)/([^/?#]+)`)

// RepositoryReference identifies a repository on GitHub.
type RepositoryReference struct {
	Owner string
	Name  string
}

// Label returns the "owner/name" form used in logs and chart lines.
func (r RepositoryReference) Label() string {
	return r.Owner + "/" + r.Name
}

// ParseRepositoryURL extracts owner and name from a URL-like string such as
// "https://github.com/facebook/react". A trailing ".git" on the name is
// stripped. The second return value is false when the string does not contain
// the github.com marker followed by two path segments; callers should skip
// the entry rather than treat it as fatal.
func ParseRepositoryURL(raw string) (RepositoryReference, bool) {
	m := repositoryURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return RepositoryReference{}, false
	}

	name := strings.TrimSuffix(m[2], ".git")
	if name == "" {
		return RepositoryReference{}, false
	}

	return RepositoryReference{Owner: m[1], Name: name}, true
}
