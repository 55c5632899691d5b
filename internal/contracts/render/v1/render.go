// Package v1 holds the wire types of the render gateway shared by the server
// and its clients.
package v1

import "time"

// SubmitResponse is returned by POST /render.
type SubmitResponse struct {
	JobID string `json:"jobId"`
}

// Status is the polling view of a job. URL is set once the job has completed
// and Error once it has failed; both are null otherwise.
type Status struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	URL       *string   `json:"url"`
	Error     *string   `json:"error"`
	ObjectKey string    `json:"object_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusList is returned by GET /render.
type StatusList struct {
	Jobs []Status `json:"jobs"`
}
