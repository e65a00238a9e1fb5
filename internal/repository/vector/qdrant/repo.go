// Package qdrant stores segment vectors in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/domain/vector"
)

const scrollPage = 256

// pointNamespace derives stable point UUIDs from record ids.
var pointNamespace = uuid.MustParse("6f1c1a52-4a0e-5d8e-9c39-2d0b7c8e1f40")

// PointID maps a record id to its Qdrant point id.
func PointID(recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(recordID)).String()
}

// pointsAPI is the subset of qdrant.PointsClient in use.
type pointsAPI interface {
	Upsert(ctx context.Context, in *qdrant.UpsertPoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error)
	Delete(ctx context.Context, in *qdrant.DeletePoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error)
	Search(ctx context.Context, in *qdrant.SearchPoints, opts ...grpc.CallOption) (*qdrant.SearchResponse, error)
	Count(ctx context.Context, in *qdrant.CountPoints, opts ...grpc.CallOption) (*qdrant.CountResponse, error)
	Scroll(ctx context.Context, in *qdrant.ScrollPoints, opts ...grpc.CallOption) (*qdrant.ScrollResponse, error)
	CreateFieldIndex(
		ctx context.Context, in *qdrant.CreateFieldIndexCollection, opts ...grpc.CallOption,
	) (*qdrant.PointsOperationResponse, error)
}

// collectionsAPI is the subset of qdrant.CollectionsClient in use.
type collectionsAPI interface {
	List(
		ctx context.Context, in *qdrant.ListCollectionsRequest, opts ...grpc.CallOption,
	) (*qdrant.ListCollectionsResponse, error)
	Get(
		ctx context.Context, in *qdrant.GetCollectionInfoRequest, opts ...grpc.CallOption,
	) (*qdrant.GetCollectionInfoResponse, error)
	Create(
		ctx context.Context, in *qdrant.CreateCollection, opts ...grpc.CallOption,
	) (*qdrant.CollectionOperationResponse, error)
}

// Repo is the vector index gateway over Qdrant.
type Repo struct {
	points      pointsAPI
	collections collectionsAPI
	collection  string
	dims        int
	conn        *grpc.ClientConn
}

// Dial connects to Qdrant's gRPC port.
func Dial(addr, collection string, dims int) (*Repo, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", addr, err)
	}
	r := newRepo(qdrant.NewPointsClient(conn), qdrant.NewCollectionsClient(conn), collection, dims)
	r.conn = conn
	return r, nil
}

func newRepo(p pointsAPI, c collectionsAPI, collection string, dims int) *Repo {
	return &Repo{points: p, collections: c, collection: collection, dims: dims}
}

// Close releases the gRPC connection.
func (r *Repo) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Ping lists collections as a liveness probe.
func (r *Repo) Ping(ctx context.Context) error {
	if _, err := r.collections.List(ctx, &qdrant.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	return nil
}

// EnsureIndex creates the collection and payload indexes, or verifies the dimension of an existing one.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	list, err := r.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: list collections: %w", domain.ErrIndex, err)
	}
	exists := slices.ContainsFunc(list.GetCollections(), func(c *qdrant.CollectionDescription) bool {
		return c.GetName() == r.collection
	})

	if exists {
		info, err := r.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: r.collection})
		if err != nil {
			return fmt.Errorf("%w: collection info: %w", domain.ErrIndex, err)
		}
		size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if int(size) != r.dims {
			return fmt.Errorf("%w: collection %s has dimension %d, embedding produces %d",
				domain.ErrVectorDimMismatch, r.collection, size, r.dims)
		}
		return nil
	}

	_, err = r.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(r.dims),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %w", domain.ErrIndex, err)
	}

	wait := true
	for _, field := range []string{vector.FieldDocumentID, vector.FieldOwnerID} {
		_, err := r.points.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: r.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           &wait,
		})
		if err != nil {
			return fmt.Errorf("%w: index payload %s: %w", domain.ErrIndex, field, err)
		}
	}
	return nil
}

func (r *Repo) point(rec *vector.Record) (*qdrant.PointStruct, error) {
	if len(rec.Vector) != r.dims {
		return nil, fmt.Errorf("%w: record %s has %d dimensions, want %d",
			domain.ErrVectorDimMismatch, rec.ID(), len(rec.Vector), r.dims)
	}
	return &qdrant.PointStruct{
		Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: PointID(rec.ID())}},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: rec.Vector}},
		},
		Payload: map[string]*qdrant.Value{
			vector.FieldDocumentID:   stringValue(rec.DocumentID),
			vector.FieldDocumentName: stringValue(rec.DocumentName),
			vector.FieldSeq:          intValue(int64(rec.Seq)),
			vector.FieldText:         stringValue(rec.Text),
			vector.FieldOwnerID:      stringValue(rec.OwnerID),
			vector.FieldCreatedAt:    intValue(rec.CreatedAt.UnixMilli()),
			vector.FieldSourceURL:    stringValue(rec.SourceURL),
		},
	}, nil
}

// UpsertBatch writes all records and waits for them to be applied.
func (r *Repo) UpsertBatch(ctx context.Context, recs []vector.Record) (int, error) {
	points := make([]*qdrant.PointStruct, 0, len(recs))
	for i := range recs {
		p, err := r.point(&recs[i])
		if err != nil {
			return 0, err
		}
		points = append(points, p)
	}
	if err := r.upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("%w: batch upsert: %w", domain.ErrIndex, err)
	}
	return len(points), nil
}

// Upsert writes a single record.
func (r *Repo) Upsert(ctx context.Context, rec vector.Record) error {
	p, err := r.point(&rec)
	if err != nil {
		return err
	}
	if err := r.upsert(ctx, []*qdrant.PointStruct{p}); err != nil {
		return fmt.Errorf("%w: upsert %s: %w", domain.ErrIndex, rec.ID(), err)
	}
	return nil
}

func (r *Repo) upsert(ctx context.Context, points []*qdrant.PointStruct) error {
	wait := true
	_, err := r.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         points,
	})
	return err
}

// DeleteByFilter counts the matching points, deletes them and returns the count.
func (r *Repo) DeleteByFilter(ctx context.Context, expr filter.Expression) (int, error) {
	if expr.IsEmpty() {
		return 0, fmt.Errorf("%w: refusing to delete with an empty filter", domain.ErrValidation)
	}
	f := buildFilter(expr)

	exact := true
	count, err := r.points.Count(ctx, &qdrant.CountPoints{CollectionName: r.collection, Filter: f, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", domain.ErrIndex, err)
	}
	n := int(count.GetResult().GetCount())
	if n == 0 {
		return 0, nil
	}

	wait := true
	_, err = r.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: f},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: delete: %w", domain.ErrIndex, err)
	}
	return n, nil
}

// Search returns the topK most similar records within expr, best first.
func (r *Repo) Search(ctx context.Context, vec []float32, topK int, expr filter.Expression) ([]vector.Hit, error) {
	if len(vec) != r.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			domain.ErrVectorDimMismatch, len(vec), r.dims)
	}
	resp, err := r.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: r.collection,
		Vector:         vec,
		Limit:          uint64(topK),
		Filter:         buildFilter(expr),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Include{
				Include: &qdrant.PayloadIncludeSelector{
					Fields: []string{vector.FieldDocumentID, vector.FieldSeq, vector.FieldText},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", domain.ErrIndex, err)
	}

	hits := make([]vector.Hit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hits = append(hits, vector.Hit{
			DocumentID: p.GetPayload()[vector.FieldDocumentID].GetStringValue(),
			Seq:        int(p.GetPayload()[vector.FieldSeq].GetIntegerValue()),
			Text:       p.GetPayload()[vector.FieldText].GetStringValue(),
			Score:      float64(p.GetScore()),
		})
	}
	return hits, nil
}

// DocumentIDs scrolls the collection and returns the distinct document ids.
func (r *Repo) DocumentIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	var offset *qdrant.PointId
	limit := uint32(scrollPage)
	for {
		resp, err := r.points.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: r.collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload: &qdrant.WithPayloadSelector{
				SelectorOptions: &qdrant.WithPayloadSelector_Include{
					Include: &qdrant.PayloadIncludeSelector{Fields: []string{vector.FieldDocumentID}},
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scroll: %w", domain.ErrIndex, err)
		}
		for _, p := range resp.GetResult() {
			id := p.GetPayload()[vector.FieldDocumentID].GetStringValue()
			if id == "" {
				continue
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return ids, nil
		}
	}
}

// buildFilter translates an expression into a Qdrant must-filter. Empty yields nil.
func buildFilter(expr filter.Expression) *qdrant.Filter {
	if expr.IsEmpty() {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(expr.Clauses()))
	for _, c := range expr.Clauses() {
		if c.Op() == filter.OpAny {
			should := make([]*qdrant.Condition, len(c.Any()))
			for i, sub := range c.Any() {
				should[i] = fieldCondition(sub)
			}
			must = append(must, &qdrant.Condition{
				ConditionOneOf: &qdrant.Condition_Filter{Filter: &qdrant.Filter{Should: should}},
			})
			continue
		}
		must = append(must, fieldCondition(c))
	}
	return &qdrant.Filter{Must: must}
}

func fieldCondition(c filter.Clause) *qdrant.Condition {
	var match *qdrant.Match
	if c.Op() == filter.OpIn {
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keywords{
			Keywords: &qdrant.RepeatedStrings{Strings: c.Values()},
		}}
	} else {
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: c.Value()}}
	}
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: c.Field(), Match: match},
		},
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(i int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}
}
