package models

import "time"

// Project represents a repository that briefs can target.
type Project struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	RepoURL         string    `json:"repo_url"`
	DefaultBranch   string    `json:"default_branch"`
	LocalPath       string    `json:"local_path"` // checkout the builder works in; may be empty
	DeploymentNotes string    `json:"deployment_notes"`
	ContextNotes    string    `json:"context_notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
