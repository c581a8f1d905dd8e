// Package models defines the rows persisted by the portal repositories.
package models

// Status is the lifecycle state of soft-deletable rows.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)
