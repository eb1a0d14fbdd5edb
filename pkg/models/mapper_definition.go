package models

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/uxon"
)

// MapperDefinitionFields are the stored properties of a mapper besides its configuration.
type MapperDefinitionFields struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	Version     int       `json:"version"`
	Key         string    `json:"key" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	IsActive    bool      `json:"is_active"`
	IsDeleted   bool      `json:"is_deleted"`
	CreatedTS   time.Time `json:"created_at"`
	UpdatedTS   time.Time `json:"updated_at"`
}

// MapperDefinition is a versioned, tenant owned mapper configuration.
type MapperDefinition struct {
	MapperDefinitionFields
	Config uxon.Object `json:"config" validate:"required"`
}
