package history

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/onda-protocol/onda-program-library-sub000/core/types"
)

// Entry is one committed event as persisted by the store.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Seq        int64     `gorm:"not null;index" json:"seq"`
	Asset      string    `gorm:"size:66;index" json:"asset,omitempty"`
	Type       string    `gorm:"size:64;index" json:"type"`
	Attributes string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName pins the table name independent of the struct name.
func (Entry) TableName() string { return "event_history" }

// Event decodes the stored payload.
func (e Entry) Event() (*types.Event, error) {
	evt := types.NewEvent(e.Type)
	if e.Attributes == "" {
		return evt, nil
	}
	if err := json.Unmarshal([]byte(e.Attributes), &evt.Attributes); err != nil {
		return nil, err
	}
	return evt, nil
}

// MarshalJSON inlines the decoded attributes.
func (e Entry) MarshalJSON() ([]byte, error) {
	attrs := map[string]string{}
	if e.Attributes != "" {
		if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
			return nil, err
		}
	}
	type alias Entry
	return json.Marshal(struct {
		alias
		Attributes map[string]string `json:"attributes"`
	}{alias: alias(e), Attributes: attrs})
}

// AutoMigrate performs all schema migrations for the store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{})
}
