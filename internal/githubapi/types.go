package githubapi

import (
	"sort"
	"time"

	"github.com/google/go-github/v80/github"
)

// Repository is the subset of GitHub repository metadata the site renders.
type Repository struct {
	FullName      string    `json:"full_name"`
	Name          string    `json:"name"`
	Owner         string    `json:"owner"`
	Description   string    `json:"description"`
	HTMLURL       string    `json:"html_url"`
	Homepage      string    `json:"homepage,omitempty"`
	Language      string    `json:"language,omitempty"`
	Topics        []string  `json:"topics,omitempty"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	Watchers      int       `json:"watchers_count"`
	OpenIssues    int       `json:"open_issues_count"`
	SizeKB        int       `json:"size"`
	DefaultBranch string    `json:"default_branch,omitempty"`
	License       string    `json:"license,omitempty"`
	Private       bool      `json:"private"`
	Archived      bool      `json:"archived"`
	Fork          bool      `json:"fork"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	PushedAt      time.Time `json:"pushed_at"`
}

func repositoryFromGitHub(r *github.Repository) *Repository {
	return &Repository{
		FullName:      r.GetFullName(),
		Name:          r.GetName(),
		Owner:         r.GetOwner().GetLogin(),
		Description:   r.GetDescription(),
		HTMLURL:       r.GetHTMLURL(),
		Homepage:      r.GetHomepage(),
		Language:      r.GetLanguage(),
		Topics:        r.Topics,
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		Watchers:      r.GetWatchersCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
		SizeKB:        r.GetSize(),
		DefaultBranch: r.GetDefaultBranch(),
		License:       r.GetLicense().GetSPDXID(),
		Private:       r.GetPrivate(),
		Archived:      r.GetArchived(),
		Fork:          r.GetFork(),
		CreatedAt:     r.GetCreatedAt().Time,
		UpdatedAt:     r.GetUpdatedAt().Time,
		PushedAt:      r.GetPushedAt().Time,
	}
}

// Languages maps language name to bytes of code.
type Languages map[string]int

// LanguageShare is one language's portion of a repository.
type LanguageShare struct {
	Name    string  `json:"name"`
	Bytes   int     `json:"bytes"`
	Percent float64 `json:"percent"`
}

// Breakdown returns the languages by descending size, ties by name.
func (l Languages) Breakdown() []LanguageShare {
	total := 0
	for _, n := range l {
		total += n
	}
	out := make([]LanguageShare, 0, len(l))
	for name, n := range l {
		share := LanguageShare{Name: name, Bytes: n}
		if total > 0 {
			share.Percent = float64(n) * 100 / float64(total)
		}
		out = append(out, share)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bytes != out[j].Bytes {
			return out[i].Bytes > out[j].Bytes
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Rate is the quota state of one GitHub rate limit bucket.
type Rate struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Used      int       `json:"used"`
	Reset     time.Time `json:"reset"`
}

func rateFromGitHub(r *github.Rate) Rate {
	if r == nil {
		return Rate{}
	}
	return Rate{Limit: r.Limit, Remaining: r.Remaining, Used: r.Used, Reset: r.Reset.Time}
}

// RateLimitSnapshot is the account's quota at FetchedAt.
type RateLimitSnapshot struct {
	Core      Rate      `json:"core"`
	Search    Rate      `json:"search"`
	GraphQL   Rate      `json:"graphql"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CollaboratorResult describes a successful AddCollaborator.
type CollaboratorResult struct {
	Repository string `json:"repository"`
	Username   string `json:"username"`
	Permission string `json:"permission"`
	// InvitationID is set when GitHub created a new invitation.
	InvitationID        int64 `json:"invitation_id,omitempty"`
	AlreadyCollaborator bool  `json:"already_collaborator"`
}

// Supplementary carries data the page can render without. Err records why
// Value is empty, so "failed" stays distinguishable from "legitimately empty".
type Supplementary[T any] struct {
	Value T
	Err   error
}

// OK reports whether the value was fetched successfully.
func (s Supplementary[T]) OK() bool { return s.Err == nil }
