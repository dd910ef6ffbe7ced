package semantic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/WessleyAI/condo-ledger/engine/chunk"
	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/pkg/fn"
)

const contentKey = "content"

// pointsAPI is the subset of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	embed       Embedder
	opts        Options

	mu    sync.Mutex
	ready bool
}

var _ Store = (*VectorStore)(nil)

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, embed Embedder, opts Options) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	vs := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), embed, opts)
	vs.conn = conn
	return vs, nil
}

// NewWithClients builds a VectorStore over existing gRPC clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, embed Embedder, opts Options) *VectorStore {
	return &VectorStore{
		points:      points,
		collections: collections,
		embed:       embed,
		opts:        opts.withDefaults(),
	}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

func (v *VectorStore) exists(ctx context.Context) (bool, error) {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.opts.Collection {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ready {
		return nil
	}

	ok, err := v.exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		_, err = v.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: v.opts.Collection,
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
			return fmt.Errorf("semantic: create collection %s: %w", v.opts.Collection, err)
		}
	}
	v.ready = true
	return nil
}

// DeleteCollection drops the collection. A missing collection is not an error.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ready = false

	ok, err := v.exists(ctx)
	if err != nil || !ok {
		return err
	}
	if _, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.opts.Collection}); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("semantic: delete collection %s: %w", v.opts.Collection, err)
	}
	return nil
}

// UpsertBatch embeds and stores chunks in batches of Options.BatchSize.
func (v *VectorStore) UpsertBatch(ctx context.Context, chunks []chunk.Chunk, reset bool) (IndexReport, error) {
	if reset {
		if err := v.DeleteCollection(ctx); err != nil {
			return IndexReport{}, err
		}
	}
	report := IndexReport{Total: len(chunks)}
	if len(chunks) == 0 {
		return report, domain.ErrNoChunks
	}

	valid := flatChunks(chunks, &report)
	for i, batch := range fn.Chunk(valid, v.opts.BatchSize) {
		report.Batches++
		res := fn.Retry(ctx, v.opts.Retry, func(ctx context.Context) fn.Result[int] {
			return fn.FromPair(len(batch), v.upsert(ctx, batch))
		})
		if _, err := res.Unwrap(); err != nil {
			v.opts.Logger.Warn("semantic: batch skipped", "batch", i, "size", len(batch), "err", err)
			report.FailedBatches++
			report.Skipped += len(batch)
			report.Errors = append(report.Errors, indexErr(fmt.Sprintf("batch %d", i), err))
			continue
		}
		report.Indexed += len(batch)
	}

	if report.Indexed == 0 {
		return report, fmt.Errorf("semantic: upsert: %w", errors.Join(report.Errors...))
	}
	return report, nil
}

func (v *VectorStore) upsert(ctx context.Context, batch []chunk.Chunk) error {
	texts := fn.Map(batch, func(c chunk.Chunk) string { return c.Content })
	vectors, err := v.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(batch) || len(vectors[0]) == 0 {
		return fmt.Errorf("embed: got %d vectors for %d chunks", len(vectors), len(batch))
	}
	if err := v.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(batch))
	for i, c := range batch {
		payload := make(map[string]*pb.Value)
		for k, val := range c.Metadata() {
			payload[k] = toValue(val)
		}
		payload[contentKey] = toValue(c.Content)

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(c.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vectors[i]},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err = v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.opts.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

// PointID derives a stable Qdrant point ID from a chunk ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// Query embeds text and runs a filtered similarity search.
func (v *VectorStore) Query(ctx context.Context, text string, k int, filter map[string]string) ([]Hit, error) {
	vec, err := v.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}

	req := &pb.SearchPoints{
		CollectionName: v.opts.Collection,
		Vector:         vec,
		Limit:          uint64(k),
		Filter:         buildFilter(filter),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	resp, err := v.points.Search(ctx, req)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = toHit(r.GetPayload(), float64(r.GetScore()))
	}
	return hits, nil
}

const scrollPage = 256

// ListDistinctMetadata scrolls payloads until sampleLimit points have been seen.
func (v *VectorStore) ListDistinctMetadata(ctx context.Context, sampleLimit int) (Inventory, error) {
	set := newInventorySet()
	var offset *pb.PointId
	seen := 0
	for seen < sampleLimit {
		limit := uint32(min(scrollPage, sampleLimit-seen))
		resp, err := v.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: v.opts.Collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			if status.Code(err) == codes.NotFound {
				break
			}
			return Inventory{}, fmt.Errorf("semantic: scroll: %w", err)
		}
		for _, p := range resp.GetResult() {
			set.add(toMetadata(p.GetPayload()))
		}
		seen += len(resp.GetResult())
		offset = resp.GetNextPageOffset()
		if offset == nil || len(resp.GetResult()) == 0 {
			break
		}
	}
	return set.inventory(), nil
}

// Count returns the exact number of points in the collection.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := v.points.Count(ctx, &pb.CountPoints{CollectionName: v.opts.Collection, Exact: &exact})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func buildFilter(filter map[string]string) *pb.Filter {
	if len(filter) == 0 {
		return nil
	}
	must := make([]*pb.Condition, 0, len(filter))
	for _, k := range fn.SortedKeys(filter) {
		must = append(must, fieldMatch(k, filter[k]))
	}
	return &pb.Filter{Must: must}
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

func toValue(val any) *pb.Value {
	switch tv := val.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}

func toMetadata(payload map[string]*pb.Value) chunk.Metadata {
	md := make(chunk.Metadata, len(payload))
	for k, val := range payload {
		if k == contentKey {
			continue
		}
		switch kind := val.GetKind().(type) {
		case *pb.Value_StringValue:
			md[k] = kind.StringValue
		case *pb.Value_IntegerValue:
			md[k] = kind.IntegerValue
		case *pb.Value_DoubleValue:
			md[k] = kind.DoubleValue
		case *pb.Value_BoolValue:
			md[k] = kind.BoolValue
		}
	}
	return md
}

// toHit maps a payload to a Hit. Cosine similarity is clamped into [0,1].
func toHit(payload map[string]*pb.Value, score float64) Hit {
	md := toMetadata(payload)
	return Hit{
		ChunkID:  md.String(chunk.KeyChunkID),
		Content:  payload[contentKey].GetStringValue(),
		Kind:     md.Kind(),
		Metadata: md,
		Score:    clamp01(score),
	}
}

func indexErr(unit string, err error) error {
	return &domain.IndexingError{Unit: unit, Err: err}
}
