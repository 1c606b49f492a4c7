package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one committed event as persisted by the indexer.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence   uint64    `gorm:"index" json:"sequence"`
	Type       string    `gorm:"index" json:"type"`
	Pod        string    `gorm:"index" json:"pod,omitempty"`
	Actor      string    `gorm:"index" json:"actor,omitempty"`
	Attributes string    `gorm:"type:text" json:"attributes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UsedNonce is an envelope nonce the RPC server has already admitted.
type UsedNonce struct {
	Signer     string    `gorm:"primaryKey;size:64"`
	Nonce      uint64    `gorm:"primaryKey;autoIncrement:false"`
	ObservedAt time.Time `gorm:"index"`
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &UsedNonce{})
}
