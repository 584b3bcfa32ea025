/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package projects

import (
	"time"

	"github.com/mikelane/repofetcher/internal/github"
)

// Project is one repository as presented to API consumers
type Project struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Languages       map[string]int `json:"languages"`
	ForksCount      int            `json:"forks_count"`
	StargazersCount int            `json:"stargazers_count"`
	HTMLURL         string         `json:"html_url"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Listing is the projects response for one user
type Listing struct {
	Username      string    `json:"username"`
	ProjectsCount int       `json:"projects_count"`
	Projects      []Project `json:"projects"`
}

// RepositoryListing is the repositories response for one user
type RepositoryListing struct {
	Username          string    `json:"username"`
	RepositoriesCount int       `json:"repositories_count"`
	Repositories      []Project `json:"repositories"`
}

// LookupError carries a consumer-facing message for an upstream failure.
// The classified upstream error stays reachable through errors.As.
type LookupError struct {
	Message string
	Err     error
}

func (e *LookupError) Error() string {
	return e.Message
}

func (e *LookupError) Unwrap() error { return e.Err }

func newProject(repo *github.Repository, languages map[string]int) Project {
	if languages == nil {
		languages = map[string]int{}
	}
	return Project{
		Name:            repo.Name,
		Description:     repo.Description,
		Languages:       languages,
		ForksCount:      repo.ForksCount,
		StargazersCount: repo.StargazersCount,
		HTMLURL:         repo.HTMLURL,
		CreatedAt:       repo.CreatedAt,
		UpdatedAt:       repo.UpdatedAt,
	}
}
