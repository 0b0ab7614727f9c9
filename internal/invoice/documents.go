package invoice

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const documentsBucket = "documents"

// DocumentDB defines the operations on the upload registry
type DocumentDB interface {
	// SaveDocument creates or replaces a document record
	SaveDocument(doc *Document) error

	// GetDocument retrieves a document by ID
	GetDocument(id string) (*Document, error)

	// ListDocuments returns the user's documents, newest first
	ListDocuments(userID int64) ([]*Document, error)

	// DeleteDocument removes a document record
	DeleteDocument(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDocuments implements DocumentDB using BoltDB
type BoltDocuments struct {
	db *bbolt.DB
}

// NewBoltDocuments opens the registry at path
func NewBoltDocuments(path string) (*BoltDocuments, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(documentsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDocuments{db: db}, nil
}

// SaveDocument creates or replaces a document record
func (b *BoltDocuments) SaveDocument(doc *Document) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling document: %w", err)
		}
		return tx.Bucket([]byte(documentsBucket)).Put([]byte(doc.ID), data)
	})
}

// GetDocument retrieves a document by ID
func (b *BoltDocuments) GetDocument(id string) (*Document, error) {
	var doc *Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(documentsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns the user's documents, newest first
func (b *BoltDocuments) ListDocuments(userID int64) ([]*Document, error) {
	docs := make([]*Document, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(documentsBucket)).ForEach(func(k, v []byte) error {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("unmarshaling document: %w", err)
			}
			if doc.UserID == userID {
				docs = append(docs, &doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// DeleteDocument removes a document record
func (b *BoltDocuments) DeleteDocument(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(documentsBucket)).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDocuments) Close() error {
	return b.db.Close()
}
