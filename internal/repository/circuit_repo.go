package repository

import (
	"context"
	"fmt"

	"neuroquest/internal/models"

	"gorm.io/gorm"
)

// CircuitRepositoryImpl persists explicitly saved circuit snapshots.
type CircuitRepositoryImpl struct {
	db *gorm.DB
}

// NewCircuitRepository creates a new circuit repository
func NewCircuitRepository(db *gorm.DB) *CircuitRepositoryImpl {
	return &CircuitRepositoryImpl{db: db}
}

// Create stores a new saved circuit.
func (r *CircuitRepositoryImpl) Create(ctx context.Context, circuit *models.SavedCircuit) (*models.SavedCircuit, error) {
	if err := r.db.WithContext(ctx).Create(circuit).Error; err != nil {
		return nil, fmt.Errorf("failed to save circuit: %w", err)
	}
	return circuit, nil
}

// GetByID fetches one saved circuit.
func (r *CircuitRepositoryImpl) GetByID(ctx context.Context, id string) (*models.SavedCircuit, error) {
	var circuit models.SavedCircuit
	if err := r.db.WithContext(ctx).First(&circuit, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("circuit not found: %w", err)
	}
	return &circuit, nil
}

// List returns saved circuits, newest first. An empty roomID lists all
// rooms.
func (r *CircuitRepositoryImpl) List(ctx context.Context, roomID string, limit, offset int) ([]*models.SavedCircuit, error) {
	var circuits []*models.SavedCircuit

	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset)
	if roomID != "" {
		q = q.Where("room_id = ?", roomID)
	}
	if err := q.Find(&circuits).Error; err != nil {
		return nil, fmt.Errorf("failed to list circuits: %w", err)
	}

	return circuits, nil
}

// Delete soft-deletes a saved circuit.
func (r *CircuitRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.SavedCircuit{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete circuit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("circuit not found")
	}
	return nil
}
