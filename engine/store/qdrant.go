package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantIndex is the sole owner of all Qdrant operations. It implements the
// dense side of the Document Store.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// NewQdrantIndex creates a QdrantIndex connected to Qdrant at the given gRPC
// address.
func NewQdrantIndex(addr string, collection string) (*QdrantIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("store: dial qdrant %s: %w", addr, err)
	}
	return &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist. Reopening an
// existing collection is a no-op, which gives the dense side its
// close-and-reopen persistence.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dims int) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("store: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	d := uint64(dims)
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("store: create collection %s: %w", q.collection, err)
	}
	return nil
}

// DeleteCollection drops the collection. Used for explicit index rebuilds.
func (q *QdrantIndex) DeleteCollection(ctx context.Context) error {
	_, err := q.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: q.collection,
	})
	if err != nil {
		return fmt.Errorf("store: delete collection %s: %w", q.collection, err)
	}
	return nil
}

// DensePoint is one embedded chunk ready for upsert.
type DensePoint struct {
	ID        string
	Embedding []float32
	Chunk     domain.Chunk
}

// Upsert stores embedded chunks into Qdrant. Chunk content and metadata ride
// along as point payload so search hits can be rehydrated without a second
// store.
func (q *QdrantIndex) Upsert(ctx context.Context, points []DensePoint) error {
	if len(points) == 0 {
		return nil
	}

	pts := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		payload := make(map[string]*pb.Value, len(p.Chunk.Metadata)+1)
		payload["content"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: p.Chunk.Content}}
		for k, v := range p.Chunk.Metadata {
			payload["meta_"+k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}

		pts[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Embedding},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         pts,
	})
	if err != nil {
		return fmt.Errorf("store: upsert %d points: %w", len(points), err)
	}
	return nil
}

// DeleteBySource removes all points originating from one source document.
// Used for re-ingestion.
func (q *QdrantIndex) DeleteBySource(ctx context.Context, source string) error {
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch("meta_"+domain.MetaSource, source),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("store: delete by source %s: %w", source, err)
	}
	return nil
}

// Search performs k-NN similarity search over the query embedding and returns
// candidates in descending score order.
func (q *QdrantIndex) Search(ctx context.Context, embedding []float32, k int) ([]domain.CandidateResult, error) {
	req := &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("store: dense search: %w", err)
	}

	results := make([]domain.CandidateResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		chunk := domain.Chunk{Metadata: make(map[string]string)}
		for key, val := range r.GetPayload() {
			s := val.GetStringValue()
			if key == "content" {
				chunk.Content = s
				continue
			}
			if after, ok := strings.CutPrefix(key, "meta_"); ok {
				chunk.Metadata[after] = s
			}
		}
		results[i] = domain.CandidateResult{
			Chunk:  chunk,
			Score:  float64(r.GetScore()),
			Origin: domain.OriginDense,
		}
	}
	return results, nil
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
