package domain

import (
	"fmt"
	"time"
)

// Agent is a tenant-scoped chatbot configuration. It owns a knowledge set
// and a persona, and belongs to one organization for billing purposes.
type Agent struct {
	ID          string
	OrgID       string
	Name        string
	Description string
	Locale      string // preferred response language code (e.g. "en", "es")
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewAgent creates a new Agent instance
func NewAgent(id, orgID, name, description, locale string, createdAt time.Time) *Agent {
	return &Agent{
		ID:          id,
		OrgID:       orgID,
		Name:        name,
		Description: description,
		Locale:      locale,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateAgent validates an Agent instance
func ValidateAgent(a *Agent) error {
	if a == nil {
		return fmt.Errorf("agent cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("agent ID is required")
	}

	if a.OrgID == "" {
		return fmt.Errorf("agent OrgID is required")
	}

	if a.Name == "" {
		return fmt.Errorf("agent Name is required")
	}

	return nil
}
