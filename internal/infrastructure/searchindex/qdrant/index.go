// Package qdrant provides a SearchIndex implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ersonp/saga-core/internal/domain/ports"
	"github.com/ersonp/saga-core/internal/infrastructure/config"
)

// Index implements the SearchIndex interface using Qdrant.
type Index struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	embedder   ports.Embedder
	collection string
	vectorSize uint64
	conn       *grpc.ClientConn
}

// NewIndex creates a new Qdrant search index.
func NewIndex(cfg config.QdrantConfig, embedder ports.Embedder, vectorSize uint64) (*Index, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Index{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		embedder:   embedder,
		collection: cfg.Collection,
		vectorSize: vectorSize,
		conn:       conn,
	}, nil
}

// Close closes the gRPC connection.
func (i *Index) Close() error {
	if i.conn != nil {
		return i.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (i *Index) EnsureCollection(ctx context.Context) error {
	_, err := i.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: i.collection,
	})
	if err == nil {
		return nil
	}

	_, err = i.client.Create(ctx, &pb.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     i.vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// Invalidate removes all derived points for a source id.
func (i *Index) Invalidate(ctx context.Context, sourceID string) error {
	_, err := i.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: i.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: sourceFilter(sourceID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting points for source: %w", err)
	}

	return nil
}

// Rebuild replaces the derived point for a source id with a freshly embedded
// one. Invalidation runs first so stale chunks never survive an update.
func (i *Index) Rebuild(ctx context.Context, sourceID, content string, metadata map[string]string) error {
	if err := i.Invalidate(ctx, sourceID); err != nil {
		return err
	}

	embedding, err := i.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embedding content: %w", err)
	}

	payload := map[string]*pb.Value{
		"source_id": {Kind: &pb.Value_StringValue{StringValue: sourceID}},
		"content":   {Kind: &pb.Value_StringValue{StringValue: content}},
	}
	for k, v := range metadata {
		payload["meta_"+k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}

	point := &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{
				Uuid: uuid.New().String(),
			},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{
					Data: embedding,
				},
			},
		},
		Payload: payload,
	}

	_, err = i.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: i.collection,
		Points:         []*pb.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upserting point: %w", err)
	}

	return nil
}

// Search embeds the query and returns the closest indexed chunks.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]ports.IndexHit, error) {
	embedding, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	resp, err := i.points.Search(ctx, &pb.SearchPoints{
		CollectionName: i.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	hits := make([]ports.IndexHit, 0, len(resp.Result))
	for _, point := range resp.Result {
		hits = append(hits, ports.IndexHit{
			SourceID: getStringValue(point.Payload, "source_id"),
			Content:  getStringValue(point.Payload, "content"),
			Metadata: metadataFromPayload(point.Payload),
			Score:    point.Score,
		})
	}

	return hits, nil
}

// Count returns the total number of indexed points.
func (i *Index) Count(ctx context.Context) (uint64, error) {
	resp, err := i.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: i.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}

	if resp.Result.PointsCount == nil {
		return 0, nil
	}

	return *resp.Result.PointsCount, nil
}

// sourceFilter builds a filter matching all points derived from a source id.
func sourceFilter(sourceID string) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: "source_id",
						Match: &pb.Match{
							MatchValue: &pb.Match_Keyword{
								Keyword: sourceID,
							},
						},
					},
				},
			},
		},
	}
}

// metadataFromPayload extracts the metadata entries from a point payload.
func metadataFromPayload(payload map[string]*pb.Value) map[string]string {
	var meta map[string]string
	for k, v := range payload {
		if len(k) > 5 && k[:5] == "meta_" {
			if meta == nil {
				meta = make(map[string]string)
			}
			meta[k[5:]] = v.GetStringValue()
		}
	}
	return meta
}

// getStringValue extracts a string value from a point payload.
func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}
