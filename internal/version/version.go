// Package version computes the next release version for a sprint from
// the repository's existing tags.
package version

import (
	"fmt"
	"regexp"
	"strconv"
)

// Calculator yields the next release version identifier.
type Calculator interface {
	Next() (string, error)
}

// TagLister is the slice of the git client the calculator needs.
type TagLister interface {
	Tags() ([]string, error)
}

var semverRe = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)$`)

// GitCalculator derives the next patch version from vX.Y.Z tags.
type GitCalculator struct {
	repo TagLister
}

// NewGitCalculator creates a calculator reading tags from the repo.
func NewGitCalculator(repo TagLister) *GitCalculator {
	return &GitCalculator{repo: repo}
}

// Next returns the highest vX.Y.Z tag with the patch bumped, or v0.1.0
// when no semver tags exist. Tags in other formats are ignored.
func (c *GitCalculator) Next() (string, error) {
	tags, err := c.repo.Tags()
	if err != nil {
		return "", fmt.Errorf("list tags: %w", err)
	}

	var best [3]int
	found := false
	for _, tag := range tags {
		m := semverRe.FindStringSubmatch(tag)
		if m == nil {
			continue
		}
		major, _ := strconv.Atoi(m[1])
		minor, _ := strconv.Atoi(m[2])
		patch, _ := strconv.Atoi(m[3])
		v := [3]int{major, minor, patch}
		if !found || greater(v, best) {
			best = v
			found = true
		}
	}

	if !found {
		return "v0.1.0", nil
	}
	return fmt.Sprintf("v%d.%d.%d", best[0], best[1], best[2]+1), nil
}

func greater(a, b [3]int) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
