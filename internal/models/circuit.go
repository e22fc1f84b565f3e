package models

import (
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// SavedCircuit is a durable snapshot of a sandbox room's neuron list,
// written only when a participant explicitly saves. Live room state is
// never persisted; this table is the one thing that survives a restart.
//
// IDs are KSUIDs: time-ordered, index-friendly, and short enough to read
// in logs.
type SavedCircuit struct {
	ID        string         `json:"id" gorm:"type:char(27);primaryKey"`
	RoomID    string         `json:"room_id" gorm:"type:text;not null;index"`
	Name      string         `json:"name" gorm:"type:text;not null"`
	Neurons   []Neuron       `json:"neurons" gorm:"type:jsonb;serializer:json"`
	CreatedBy string         `json:"created_by" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate generates a KSUID when the caller did not supply one.
func (c *SavedCircuit) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = ksuid.New().String()
	}
	return nil
}

// TableName override
func (SavedCircuit) TableName() string {
	return "saved_circuits"
}

// CircuitCreate is the request body for saving a room's circuit.
type CircuitCreate struct {
	RoomID    string `json:"room_id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}
