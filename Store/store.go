// Package Store implements a small document store on top of a single
// relational table. Each document is a JSON body keyed by (collection, id);
// the atomic unit is one row INSERT, UPDATE or DELETE. There are no
// cross-document transactions: callers that touch several documents issue
// independent writes and own the ordering.
package Store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a document id does not exist in a collection.
var ErrNotFound = errors.New("document not found")

type record struct {
	Collection string `gorm:"primaryKey;size:64"`
	ID         string `gorm:"primaryKey;size:64"`
	Doc        datatypes.JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (record) TableName() string { return "documents" }

// Store wraps the database handle for document operations.
type Store struct {
	db *gorm.DB
}

// New migrates the documents table and returns a ready store.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrating documents table: %w", err)
	}
	return &Store{db: db}, nil
}

// fieldPattern limits json_extract paths to plain field names so query
// parameters can never smuggle SQL through a path expression.
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SortField orders results by one document field.
type SortField struct {
	Field string
	Desc  bool
}

// Query narrows a Find: equality filters on document fields, field ordering
// and an offset/cap window. A zero Query returns the whole collection.
type Query struct {
	Filter map[string]any
	Sort   []SortField
	Skip   int
	Limit  int
}

// Insert stores a new document, assigns its id and returns it. The id is
// stamped into the stored JSON body as well.
func (s *Store) Insert(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	body, err := stampID(doc, id)
	if err != nil {
		return "", err
	}
	rec := record{Collection: collection, ID: id, Doc: body}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("inserting into %s: %w", collection, err)
	}
	return id, nil
}

// Get loads one document by id into out.
func (s *Store) Get(ctx context.Context, collection, id string, out any) error {
	var rec record
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal(rec.Doc, out)
}

// GetField reads a single string field of a document without decoding the
// body, via json_extract. The bool reports whether the document exists and
// carries the field.
func (s *Store) GetField(ctx context.Context, collection, id, field string) (string, bool, error) {
	if !fieldPattern.MatchString(field) {
		return "", false, fmt.Errorf("invalid field name %q", field)
	}
	row := s.db.WithContext(ctx).Model(&record{}).
		Where("collection = ? AND id = ?", collection, id).
		Select(fmt.Sprintf("json_extract(doc, '$.%s')", field)).
		Row()
	var value sql.NullString
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s/%s.%s: %w", collection, id, field, err)
	}
	return value.String, value.Valid, nil
}

// Find loads every document matching q into out, which must be a pointer to
// a slice (of structs or of map[string]any).
func (s *Store) Find(ctx context.Context, collection string, q Query, out any) error {
	tx := s.filtered(ctx, collection, q.Filter)
	if len(q.Sort) == 0 {
		tx = tx.Order("created_at, id")
	}
	for _, sf := range q.Sort {
		if !fieldPattern.MatchString(sf.Field) {
			continue
		}
		dir := "ASC"
		if sf.Desc {
			dir = "DESC"
		}
		tx = tx.Order(fmt.Sprintf("json_extract(doc, '$.%s') %s", sf.Field, dir))
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	} else if q.Skip > 0 {
		// sqlite refuses OFFSET without LIMIT
		tx = tx.Limit(1<<31 - 1)
	}
	if q.Skip > 0 {
		tx = tx.Offset(q.Skip)
	}
	var recs []record
	if err := tx.Find(&recs).Error; err != nil {
		return fmt.Errorf("listing %s: %w", collection, err)
	}
	raws := make([]json.RawMessage, len(recs))
	for i, rec := range recs {
		raws[i] = json.RawMessage(rec.Doc)
	}
	blob, err := json.Marshal(raws)
	if err != nil {
		return err
	}
	return json.Unmarshal(blob, out)
}

// Count returns the number of documents matching the filter.
func (s *Store) Count(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	var n int64
	if err := s.filtered(ctx, collection, filter).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return n, nil
}

// Update replaces the body of one document. The write is a single row
// UPDATE and therefore atomic.
func (s *Store) Update(ctx context.Context, collection, id string, doc any) error {
	body, err := stampID(doc, id)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&record{}).
		Where("collection = ? AND id = ?", collection, id).
		Update("doc", body)
	if res.Error != nil {
		return fmt.Errorf("updating %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateWhere applies mutate to every document matching the filter and
// writes back the ones for which mutate returns true. Each write is an
// independent single-row UPDATE; a failure part-way leaves earlier writes
// in place. Returns the number of documents rewritten.
func (s *Store) UpdateWhere(ctx context.Context, collection string, filter map[string]any, mutate func(doc map[string]any) bool) (int64, error) {
	var recs []record
	if err := s.filtered(ctx, collection, filter).Find(&recs).Error; err != nil {
		return 0, fmt.Errorf("listing %s for update: %w", collection, err)
	}
	var n int64
	for _, rec := range recs {
		var doc map[string]any
		if err := json.Unmarshal(rec.Doc, &doc); err != nil {
			return n, fmt.Errorf("decoding %s/%s: %w", collection, rec.ID, err)
		}
		if !mutate(doc) {
			continue
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return n, err
		}
		res := s.db.WithContext(ctx).Model(&record{}).
			Where("collection = ? AND id = ?", collection, rec.ID).
			Update("doc", datatypes.JSON(body))
		if res.Error != nil {
			return n, fmt.Errorf("updating %s/%s: %w", collection, rec.ID, res.Error)
		}
		n += res.RowsAffected
	}
	return n, nil
}

// Delete removes one document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&record{})
	if res.Error != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ForEach streams every document of a collection to fn in insertion order.
func (s *Store) ForEach(ctx context.Context, collection string, fn func(id string, doc json.RawMessage) error) error {
	var recs []record
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at, id").
		Find(&recs).Error
	if err != nil {
		return fmt.Errorf("scanning %s: %w", collection, err)
	}
	for _, rec := range recs {
		if err := fn(rec.ID, json.RawMessage(rec.Doc)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) filtered(ctx context.Context, collection string, filter map[string]any) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&record{}).Where("collection = ?", collection)
	for field, want := range filter {
		if !fieldPattern.MatchString(field) {
			continue
		}
		tx = tx.Where(datatypes.JSONQuery("doc").Equals(want, field))
	}
	return tx
}

// stampID marshals doc and writes the store-assigned id into the JSON body,
// so the id travels with the document on every read.
func stampID(doc any, id string) (datatypes.JSON, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	body["id"] = id
	out, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}
