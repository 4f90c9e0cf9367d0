package domain

import (
	"time"

	"github.com/google/uuid"
)

// NormalizedGame is one archived game reduced to the fields the store keeps.
// Empty strings stand for absent values.
type NormalizedGame struct {
	ExternalID    string
	PGN           string
	TCN           string
	OwnerUsername string
	EndTime       *int64
	TimeClass     SpeedCategory
	TimeControl   string
	WhiteUsername string
	WhiteResult   string
	BlackUsername string
	BlackResult   string
}

func (g NormalizedGame) HasExternalID() bool { return g.ExternalID != "" }

type StoredGame struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	CreatedAt time.Time
	NormalizedGame
}

type IngestSummary struct {
	Fetched    int
	Added      int
	Duplicates int
	Failed     int
}

type GamePage struct {
	Games []StoredGame
	Total int
}
