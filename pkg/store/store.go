// Package store persists collation projects.
//
// A project bundles a witness set with its latest collation and stemma
// results. The hosted API keeps projects in MongoDB; tests and
// single-process deployments use the in-memory store.
package store

import (
	"context"
	"time"

	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/stemma"
	"github.com/textcritica/collate/pkg/witness"
)

// WitnessInput is a raw witness as submitted, before tokenization.
type WitnessInput struct {
	ID   string           `json:"id" bson:"id"`
	Text string           `json:"text" bson:"text"`
	Meta witness.Metadata `json:"meta,omitempty" bson:"meta,omitempty"`
}

// Project is a stored witness set with its derived results.
type Project struct {
	ID        string          `json:"id" bson:"_id"`
	Name      string          `json:"name" bson:"name"`
	Witnesses []WitnessInput  `json:"witnesses" bson:"witnesses"`
	Collation *collate.Result `json:"collation,omitempty" bson:"collation,omitempty"`
	Stemma    *stemma.Result  `json:"stemma,omitempty" bson:"stemma,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" bson:"updated_at"`
}

// Store is the interface for project storage backends.
type Store interface {
	// Get retrieves a project by ID. Missing projects return a
	// PROJECT_NOT_FOUND error.
	Get(ctx context.Context, id string) (*Project, error)

	// Put stores a project, replacing any existing one with the same ID.
	Put(ctx context.Context, p *Project) error

	// Delete removes a project. Deleting a missing project is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all projects ordered by creation time.
	List(ctx context.Context) ([]*Project, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
