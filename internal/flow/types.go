package flow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

// Envelope is the success/error wrapper carried by every directory response
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// LoginResponse is returned by POST /login
type LoginResponse struct {
	Envelope
	UserName string `json:"userName,omitempty"`
	UserID   int    `json:"userId,omitempty"`
	SiteURL  string `json:"siteUrl,omitempty"`
}

// StatusResponse is returned by GET /status
type StatusResponse struct {
	LoggedIn   bool             `json:"loggedIn"`
	UserName   string           `json:"userName,omitempty"`
	UserID     int              `json:"userId,omitempty"`
	SiteURL    string           `json:"siteUrl,omitempty"`
	AuthMethod model.AuthMethod `json:"authMethod,omitempty"`
}

// ProjectsResponse is returned by GET /projects
type ProjectsResponse struct {
	Envelope
	Projects []model.Entity `json:"projects"`
}

// SequencesResponse is returned by GET /sequences
type SequencesResponse struct {
	Envelope
	Sequences []model.Entity `json:"sequences"`
}

// ShotsResponse is returned by GET /shots
type ShotsResponse struct {
	Envelope
	Shots []model.Entity `json:"shots"`
}

// TasksResponse is returned by GET /tasks
type TasksResponse struct {
	Envelope
	Tasks []model.Entity `json:"tasks"`
}

// SelectOptions controls the side effects requested when an entity is selected
type SelectOptions struct {
	SetInProgress bool // move the entity's workflow status to in progress
	AssignToMe    bool // assign the entity to the session user (tasks only)
}

// SelectRequest is the body of POST /select
type SelectRequest struct {
	Kind          model.Kind `json:"kind" validate:"required,oneof=shot task"`
	ID            int        `json:"id" validate:"gt=0"`
	SetInProgress bool       `json:"setInProgress,omitempty"`
	AssignToMe    bool       `json:"assignToMe,omitempty"`
}

// Publish statuses accepted by the tracking service
const (
	PublishPendingReview = "rev"
	PublishViewed        = "vwd"
	PublishApproved      = "apr"
)

// PublishStatuses lists the accepted publish statuses in display order
var PublishStatuses = []string{PublishPendingReview, PublishViewed, PublishApproved}

// PublishRequest is the body of POST /publish
type PublishRequest struct {
	ProjectID   int    `json:"projectId" validate:"gt=0"`
	ShotID      int    `json:"shotId" validate:"gt=0"`
	TaskID      int    `json:"taskId,omitempty"`
	UserID      int    `json:"userId,omitempty"`
	Code        string `json:"code" validate:"required"`
	FilePath    string `json:"filePath" validate:"required"`
	Description string `json:"description"`
	Status      string `json:"status" validate:"required,oneof=rev vwd apr"`
}

// Validate checks the request before it is sent
func (r PublishRequest) Validate() error {
	return validateStruct(r)
}

// PublishResponse is returned by POST /publish
type PublishResponse struct {
	VersionID VersionID `json:"versionId,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// VersionID is a version identifier that decodes from a JSON string or number
type VersionID string

// UnmarshalJSON accepts both "123" and 123
func (v *VersionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = VersionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("version id: %w", err)
	}
	*v = VersionID(n.String())
	return nil
}

// Version is a published version of a shot
type Version struct {
	ID            int    `json:"id"`
	Code          string `json:"code"`
	VersionNumber int    `json:"versionNumber"`
	Path          string `json:"path,omitempty"`
}

// LatestVersionResponse is returned by GET /versions/latest
type LatestVersionResponse struct {
	Envelope
	Version *Version `json:"version,omitempty"`
}

// Validate checks the request before it is sent
func (r SelectRequest) Validate() error {
	return validateStruct(r)
}
