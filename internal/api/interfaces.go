package api

import (
	"context"

	"neuroquest/internal/models"
)

// Consumer-driven interfaces: handlers declare exactly what they need
// from the persistence layer, which keeps handler tests free of a real
// database.

// CircuitRepository is what handlers need for saved-circuit CRUD.
type CircuitRepository interface {
	Create(ctx context.Context, circuit *models.SavedCircuit) (*models.SavedCircuit, error)
	GetByID(ctx context.Context, id string) (*models.SavedCircuit, error)
	List(ctx context.Context, roomID string, limit, offset int) ([]*models.SavedCircuit, error)
	Delete(ctx context.Context, id string) error
}
