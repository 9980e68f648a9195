package document

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	documentBucket      = "documents"
	publicTokenBucket   = "public_tokens"
	downloadTokenBucket = "download_tokens"
)

// PaymentGrant is the download access minted when a payment completes.
type PaymentGrant struct {
	DownloadToken   string
	ExpiresAt       time.Time
	PaidAt          time.Time
	PaymentIntentID string
}

// DB defines the durable document store.
type DB interface {
	// SaveDocument persists a document and its token indexes.
	SaveDocument(doc *Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(id string) (*Document, error)

	// FindByPublicToken retrieves the document owning a public token.
	FindByPublicToken(token string) (*Document, error)

	// FindByDownloadToken retrieves the document holding a download token.
	// Callers must still check DownloadValid against their clock.
	FindByDownloadToken(token string) (*Document, error)

	// MarkPaid applies the payment grant iff the document is not already
	// paid; first writer wins. It reports whether this call was the first,
	// and returns the stored document either way, so duplicate completion
	// events observe the originally minted token.
	MarkPaid(id string, grant PaymentGrant) (*Document, bool, error)

	// Close closes the store.
	Close() error
}

// BoltDB implements DB on a single bbolt file. bbolt serializes writers, so
// MarkPaid's read-check-write runs atomically.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database file.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{documentBucket, publicTokenBucket, downloadTokenBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveDocument persists the document and indexes its tokens.
func (b *BoltDB) SaveDocument(doc *Document) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putDocument(tx, doc)
	})
}

func putDocument(tx *bbolt.Tx, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}
	if err := tx.Bucket([]byte(documentBucket)).Put([]byte(doc.ID), data); err != nil {
		return err
	}
	if doc.PublicToken != "" {
		if err := tx.Bucket([]byte(publicTokenBucket)).Put([]byte(doc.PublicToken), []byte(doc.ID)); err != nil {
			return err
		}
	}
	if doc.DownloadToken != "" {
		if err := tx.Bucket([]byte(downloadTokenBucket)).Put([]byte(doc.DownloadToken), []byte(doc.ID)); err != nil {
			return err
		}
	}
	return nil
}

func getDocument(tx *bbolt.Tx, id string) (*Document, error) {
	data := tx.Bucket([]byte(documentBucket)).Get([]byte(id))
	if data == nil {
		return nil, ErrNotFound
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling document: %w", err)
	}
	return &doc, nil
}

// GetDocument retrieves a document by ID.
func (b *BoltDB) GetDocument(id string) (*Document, error) {
	var doc *Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		doc, err = getDocument(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *BoltDB) findByIndex(bucket, token string) (*Document, error) {
	var doc *Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(bucket)).Get([]byte(token))
		if id == nil {
			return ErrNotFound
		}
		var err error
		doc, err = getDocument(tx, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// FindByPublicToken retrieves the document owning a public token.
func (b *BoltDB) FindByPublicToken(token string) (*Document, error) {
	return b.findByIndex(publicTokenBucket, token)
}

// FindByDownloadToken retrieves the document holding a download token.
func (b *BoltDB) FindByDownloadToken(token string) (*Document, error) {
	return b.findByIndex(downloadTokenBucket, token)
}

// MarkPaid conditionally applies the payment grant inside one write
// transaction. An already-paid document is returned unchanged with first set
// to false; its original download token is never replaced.
func (b *BoltDB) MarkPaid(id string, grant PaymentGrant) (*Document, bool, error) {
	var (
		doc   *Document
		first bool
	)
	err := b.db.Update(func(tx *bbolt.Tx) error {
		var err error
		doc, err = getDocument(tx, id)
		if err != nil {
			return err
		}
		if doc.Status == StatusPaid && doc.DownloadToken != "" {
			first = false
			return nil
		}
		doc.Status = StatusPaid
		doc.DownloadToken = grant.DownloadToken
		doc.DownloadTokenExpiresAt = grant.ExpiresAt
		doc.PaidAt = grant.PaidAt
		doc.PaymentIntentID = grant.PaymentIntentID
		doc.UpdatedAt = grant.PaidAt
		first = true
		return putDocument(tx, doc)
	})
	if err != nil {
		return nil, false, err
	}
	return doc, first, nil
}

// Close closes the database.
func (b *BoltDB) Close() error {
	return b.db.Close()
}
