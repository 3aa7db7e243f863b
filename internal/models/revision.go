package models

import "time"

// RevisionStatus is the lifecycle of a revision request.
type RevisionStatus string

const (
	RevisionStatusPending    RevisionStatus = "pending"
	RevisionStatusInProgress RevisionStatus = "in_progress"
	RevisionStatusCompleted  RevisionStatus = "completed"
)

// RevisionRequest is human feedback on a built brief. Requests for one brief
// carry monotonically increasing revision numbers and are drained one at a
// time by the orchestrator.
type RevisionRequest struct {
	ID             string         `json:"id"`
	BriefID        string         `json:"brief_id"`
	Feedback       string         `json:"feedback"`
	RevisionNumber int            `json:"revision_number"`
	Status         RevisionStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
