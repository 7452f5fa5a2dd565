package storage

import (
	"fmt"

	"github.com/quiltdata/benchling-webhook-sub011/internal/crypto"
)

// EncryptedStorage wraps a storage adapter and transparently encrypts
// delivery payloads at rest. All other operations pass through unchanged.
type EncryptedStorage struct {
	Storage
	encryptor *crypto.PayloadEncryptor
}

// NewEncryptedStorage decorates store with payload encryption. An empty key
// disables encryption and returns the adapter unchanged (development mode).
func NewEncryptedStorage(store Storage, encryptionKey string) (Storage, error) {
	if encryptionKey == "" {
		return store, nil
	}

	encryptor, err := crypto.NewPayloadEncryptor(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	return &EncryptedStorage{Storage: store, encryptor: encryptor}, nil
}

func (es *EncryptedStorage) CreateDelivery(delivery *Delivery) error {
	if len(delivery.Payload) == 0 || delivery.Encrypted {
		return es.Storage.CreateDelivery(delivery)
	}

	ciphertext, err := es.encryptor.Encrypt(delivery.Payload)
	if err != nil {
		return fmt.Errorf("failed to encrypt payload: %w", err)
	}

	// Store an encrypted copy so the caller keeps the plaintext payload
	stored := *delivery
	stored.Payload = ciphertext
	stored.Encrypted = true

	if err := es.Storage.CreateDelivery(&stored); err != nil {
		return err
	}

	delivery.ID = stored.ID
	delivery.ReceivedAt = stored.ReceivedAt
	return nil
}

func (es *EncryptedStorage) GetDelivery(id string) (*Delivery, error) {
	delivery, err := es.Storage.GetDelivery(id)
	if err != nil {
		return nil, err
	}
	if err := es.decrypt(delivery); err != nil {
		return nil, err
	}
	return delivery, nil
}

func (es *EncryptedStorage) GetDeliveryByMessageID(messageID string) (*Delivery, error) {
	delivery, err := es.Storage.GetDeliveryByMessageID(messageID)
	if err != nil {
		return nil, err
	}
	if err := es.decrypt(delivery); err != nil {
		return nil, err
	}
	return delivery, nil
}

func (es *EncryptedStorage) ListDeliveries(filters DeliveryFilters, limit, offset int) ([]*Delivery, int, error) {
	deliveries, total, err := es.Storage.ListDeliveries(filters, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, delivery := range deliveries {
		if err := es.decrypt(delivery); err != nil {
			return nil, 0, err
		}
	}
	return deliveries, total, nil
}

func (es *EncryptedStorage) decrypt(delivery *Delivery) error {
	if delivery == nil || !delivery.Encrypted {
		return nil
	}

	plaintext, err := es.encryptor.Decrypt(delivery.Payload)
	if err != nil {
		return fmt.Errorf("failed to decrypt payload for delivery %s: %w", delivery.ID, err)
	}

	delivery.Payload = plaintext
	delivery.Encrypted = false
	return nil
}
