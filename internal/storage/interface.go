// Package storage provides the persistence layer for the webhook subscriber.
//
// It defines a storage-agnostic interface for delivery records and dashboard
// users, with adapters for embedded SQLite and PostgreSQL registered through
// a factory registry. The adapter is selected at startup from configuration.
//
// Example usage:
//
//	store, err := storage.NewStorage(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	delivery := &storage.Delivery{
//		MessageID: "msg_2NIiNvykOqNJCxatmB",
//		AppID:     "appdef_X1a4",
//		Outcome:   storage.OutcomeAccepted,
//	}
//	if err := store.CreateDelivery(delivery); err != nil {
//		log.Fatal(err)
//	}
package storage

import (
	"time"
)

type Storage interface {
	// Connection management
	Close() error
	Health() error

	// Users
	CreateUser(username, password string) (*User, error)
	GetUser(userID string) (*User, error)
	GetUserByUsername(username string) (*User, error)
	ValidateUser(username, password string) (*User, error)
	UpdateUserCredentials(userID string, username, password string) error
	IsDefaultUser(userID string) (bool, error)
	GetUserCount() (int, error)

	// Deliveries
	// CreateDelivery records one received webhook and its outcome. The
	// delivery ID is assigned by the adapter when empty.
	CreateDelivery(delivery *Delivery) error

	// GetDelivery retrieves a single delivery by ID
	GetDelivery(id string) (*Delivery, error)

	// GetDeliveryByMessageID retrieves the most recent delivery carrying the
	// given webhook message ID
	GetDeliveryByMessageID(messageID string) (*Delivery, error)

	// ListDeliveries retrieves paginated deliveries, newest first, with the
	// total count matching the filters
	ListDeliveries(filters DeliveryFilters, limit, offset int) ([]*Delivery, int, error)

	// MarkDeliveryForwarded flags a delivery as handed to the downstream
	// destination
	MarkDeliveryForwarded(id string) error

	// DeleteOldDeliveries removes deliveries received before the cutoff and
	// returns how many rows were removed
	DeleteOldDeliveries(before time.Time) (int64, error)

	// GetStats returns overall delivery statistics including:
	// - Total, accepted, and rejected delivery counts
	// - Deliveries received in the last 24 hours
	// - A breakdown of rejection reasons
	GetStats() (*Stats, error)
}

// StorageFactory creates storage adapters of a particular type
type StorageFactory interface {
	Create(config StorageConfig) (Storage, error)
	GetType() string
}

// StorageConfig is the interface all storage configurations must implement
type StorageConfig interface {
	Validate() error
	GetType() string
	GetConnectionString() string
}

// User represents a dashboard user account
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // bcrypt hash, never serialized
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Delivery outcomes recorded for every verification attempt
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Delivery represents one received webhook and its verification outcome.
// Payload holds the decoded request body of accepted deliveries and may be
// encrypted at rest depending on configuration.
type Delivery struct {
	ID           string    `json:"id"`
	MessageID    string    `json:"message_id"`
	AppID        string    `json:"app_id,omitempty"`
	Outcome      string    `json:"outcome"`
	RejectReason string    `json:"reject_reason,omitempty"`
	SourceIP     string    `json:"source_ip,omitempty"`
	Payload      []byte    `json:"-"`
	Encrypted    bool      `json:"-"`
	Forwarded    bool      `json:"forwarded"`
	ReceivedAt   time.Time `json:"received_at"`
}

// DeliveryFilters narrows ListDeliveries results. Zero-value fields are ignored.
type DeliveryFilters struct {
	AppID   string
	Outcome string
}

// Stats summarizes recorded deliveries for the dashboard
type Stats struct {
	TotalDeliveries     int64            `json:"total_deliveries"`
	AcceptedDeliveries  int64            `json:"accepted_deliveries"`
	RejectedDeliveries  int64            `json:"rejected_deliveries"`
	ForwardedDeliveries int64            `json:"forwarded_deliveries"`
	DeliveriesLast24h   int64            `json:"deliveries_last_24h"`
	RejectReasons       map[string]int64 `json:"reject_reasons"`
}

// GenericConfig is a simple map-based implementation of StorageConfig
type GenericConfig map[string]interface{}

func (gc GenericConfig) Validate() error {
	return nil // Basic configs don't need validation
}

func (gc GenericConfig) GetType() string {
	if t, ok := gc["type"].(string); ok {
		return t
	}
	return "unknown"
}

func (gc GenericConfig) GetConnectionString() string {
	if cs, ok := gc["connection_string"].(string); ok {
		return cs
	}
	return ""
}
