package utils

import "strings"

// ContainsString reports whether val is in slice.
func ContainsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}

// UniqueStrings drops repeated values, keeping first-seen order.
func UniqueStrings(input []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, val := range input {
		if !seen[val] {
			result = append(result, val)
			seen[val] = true
		}
	}
	return result
}

// NormalizeRepoName reduces "https://github.com/Owner/Repo.git" and similar
// spellings to "Owner/Repo". It returns "" when name is not owner/repo shaped.
func NormalizeRepoName(name string) string {
	name = strings.TrimSpace(name)
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "github.com/"} {
		if len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
			name = name[len(prefix):]
			break
		}
	}
	name = strings.TrimSuffix(strings.Trim(name, "/"), ".git")

	owner, repo, ok := strings.Cut(name, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return ""
	}
	return owner + "/" + repo
}

// NormalizeRepoNames normalizes each name, dropping invalid and repeated
// entries. Comparison is case-insensitive, matching GitHub.
func NormalizeRepoNames(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		n = NormalizeRepoName(n)
		if n == "" || seen[strings.ToLower(n)] {
			continue
		}
		seen[strings.ToLower(n)] = true
		out = append(out, n)
	}
	return out
}
