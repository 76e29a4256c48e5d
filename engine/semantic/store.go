// Package semantic indexes knowledge-base issues in Qdrant so the
// generative fallback can ground its prompt on the most similar known
// problems.
package semantic

import (
	"context"
	"fmt"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// pointsAPI is the subset of pb.PointsClient the index uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the index uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// IssueIndex is the sole owner of all Qdrant operations.
type IssueIndex struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates an IssueIndex connected to Qdrant at the given gRPC address.
func New(addr, collection string) (*IssueIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &IssueIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds an index over existing clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *IssueIndex {
	return &IssueIndex{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (x *IssueIndex) Close() error {
	if x.conn == nil {
		return nil
	}
	return x.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (x *IssueIndex) EnsureCollection(ctx context.Context, dims int) error {
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == x.collection {
			return nil
		}
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", x.collection, err)
	}
	return nil
}

// DeleteCollection drops the collection.
func (x *IssueIndex) DeleteCollection(ctx context.Context) error {
	if _, err := x.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: x.collection}); err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", x.collection, err)
	}
	return nil
}

// Upsert writes issue vectors. Point ids derive from issue ids.
func (x *IssueIndex) Upsert(ctx context.Context, vectors []IssueVector) error {
	if len(vectors) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(vectors))
	for i, v := range vectors {
		rec := v.Issue
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(rec.ID)}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: v.Embedding}},
			},
			Payload: map[string]*pb.Value{
				"issue_id":  stringValue(rec.ID),
				"brand":     stringValue(rec.Brand),
				"brand_key": stringValue(strings.ToLower(rec.Brand)),
				"model":     stringValue(rec.Model),
				"problem":   stringValue(rec.Problem),
				"solution":  stringValue(rec.Solution),
				"keywords":  stringValue(strings.Join(rec.Keywords, ",")),
			},
		}
	}

	wait := true
	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(vectors), err)
	}
	return nil
}

// DeleteIssue removes the point for one issue.
func (x *IssueIndex) DeleteIssue(ctx context.Context, issueID string) error {
	wait := true
	_, err := x.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{Must: []*pb.Condition{fieldMatch("issue_id", issueID)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete issue %s: %w", issueID, err)
	}
	return nil
}

// SimilarIssues returns the topK issues closest to embedding. A non-empty
// brand restricts hits to that brand (case-insensitive).
func (x *IssueIndex) SimilarIssues(ctx context.Context, embedding []float32, topK int, brand string) ([]Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if b := strings.TrimSpace(brand); b != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{fieldMatch("brand_key", strings.ToLower(b))}}
	}

	resp, err := x.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		p := r.GetPayload()
		hits[i] = Hit{
			IssueID:  p["issue_id"].GetStringValue(),
			Score:    r.GetScore(),
			Brand:    p["brand"].GetStringValue(),
			Model:    p["model"].GetStringValue(),
			Problem:  p["problem"].GetStringValue(),
			Solution: p["solution"].GetStringValue(),
		}
	}
	return hits, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}
