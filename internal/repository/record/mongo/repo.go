// Package mongo keeps document records in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/repository/record"
)

const collectionName = "documents"

// Repo implements the metadata record store on MongoDB.
type Repo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect dials uri and returns a repository over database.documents.
func Connect(ctx context.Context, uri, database string) (*Repo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &Repo{client: client, coll: client.Database(database).Collection(collectionName)}, nil
}

// Close disconnects the client.
func (r *Repo) Close(ctx context.Context) error { return r.client.Disconnect(ctx) }

// Ping checks connectivity against the primary.
func (r *Repo) Ping(ctx context.Context) error { return r.client.Ping(ctx, readpref.Primary()) }

// EnsureIndex creates the listing indexes.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("owner_status_created"),
		},
		{
			Keys:    bson.D{{Key: "shares.user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("shared_created"),
		},
		{
			Keys:    bson.D{{Key: "is_public", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("public_created"),
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Create inserts a new record. An existing id is domain.ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, doc *document.Document) error {
	if _, err := r.coll.InsertOne(ctx, record.FromDocument(doc)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("document %s: %w", doc.ID(), domain.ErrAlreadyExists)
		}
		return fmt.Errorf("insert document %s: %w", doc.ID(), err)
	}
	return nil
}

// Save replaces an existing record; a missing record is domain.ErrNotFound.
func (r *Repo) Save(ctx context.Context, doc *document.Document) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID()}, record.FromDocument(doc))
	if err != nil {
		return fmt.Errorf("replace document %s: %w", doc.ID(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("document %s: %w", doc.ID(), domain.ErrNotFound)
	}
	return nil
}

// Get returns a record by id.
func (r *Repo) Get(ctx context.Context, id string) (document.Document, error) {
	var dto record.DTO
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&dto)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return document.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("find document %s: %w", id, err)
	}
	return dto.Document(), nil
}

// Delete removes a record; a missing record is domain.ErrNotFound.
func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List returns the records visible to q.UserID under q.Scope, newest first.
func (r *Repo) List(ctx context.Context, q record.ListQuery) (record.Page, error) {
	f, err := listFilter(q)
	if err != nil {
		return record.Page{}, err
	}
	q = q.Normalize()

	total, err := r.coll.CountDocuments(ctx, f)
	if err != nil {
		return record.Page{}, fmt.Errorf("count documents: %w", err)
	}

	cur, err := r.coll.Find(ctx, f, listOptions(q))
	if err != nil {
		return record.Page{}, fmt.Errorf("find documents: %w", err)
	}
	var dtos []record.DTO
	if err := cur.All(ctx, &dtos); err != nil {
		return record.Page{}, fmt.Errorf("decode documents: %w", err)
	}

	page := record.Page{Total: int(total), Documents: make([]document.Document, 0, len(dtos))}
	for _, dto := range dtos {
		page.Documents = append(page.Documents, dto.Document())
	}
	return page, nil
}

func listFilter(q record.ListQuery) (bson.D, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	owned := bson.E{Key: "owner_id", Value: q.UserID}
	shared := bson.E{Key: "shares.user_id", Value: q.UserID}
	public := bson.E{Key: "is_public", Value: true}

	var f bson.D
	switch q.Normalize().Scope {
	case record.ScopeShared:
		f = bson.D{shared}
	case record.ScopePublic:
		f = bson.D{public}
	case record.ScopeAll:
		f = bson.D{{Key: "$or", Value: bson.A{bson.D{owned}, bson.D{public}, bson.D{shared}}}}
	default:
		f = bson.D{owned}
	}
	if q.Status != "" {
		f = append(f, bson.E{Key: "status", Value: string(q.Status)})
	}
	return f, nil
}

func listOptions(q record.ListQuery) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))
}
