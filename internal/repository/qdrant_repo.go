package repository

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	defaultVectorDimension = 1024

	payloadIdentityKey = "identity_key"
	payloadTitle       = "title"
	payloadContent     = "content"
	payloadSourceID    = "source_id"
	payloadSourceDesc  = "source_description"
)

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API key, implies TLS
	UseTLS          bool
	VectorDimension int
}

// QdrantRepository is the vector index of committed episodes. Each point
// carries the episode text so hits render without a database read.
type QdrantRepository struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   uint64
}

// NewQdrantRepository opens a gRPC client. Local instances are reached
// without TLS; Qdrant Cloud needs TLS and the api-key header.
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	dim := cfg.VectorDimension
	if dim <= 0 {
		dim = defaultVectorDimension
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := grpc.NewClient(addr, dialOptions(cfg)...)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to qdrant at %s", addr)
	}

	return &QdrantRepository{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		dimension:   uint64(dim),
	}, nil
}

func dialOptions(cfg *QdrantConnectionConfig) []grpc.DialOption {
	if !cfg.UseTLS && cfg.APIKey == "" {
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})),
	}
	if cfg.APIKey != "" {
		key := cfg.APIKey
		opts = append(opts, grpc.WithUnaryInterceptor(
			func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
				return invoker(metadata.AppendToOutgoingContext(ctx, "api-key", key), method, req, reply, cc, callOpts...)
			}))
	}
	return opts
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection and its source_id index. An
// existing collection with a different vector size is an error.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: r.collection})
	if err == nil {
		if size, ok := vectorSize(info.GetResult()); ok && size != r.dimension {
			return errors.Newf("collection %s has vector size %d, embedding produces %d", r.collection, size, r.dimension)
		}
		return nil
	}

	m, ef, fullScan := uint64(16), uint64(128), uint64(10000)
	if _, err := r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: r.dimension, Distance: pb.Distance_Cosine},
		}},
		HnswConfig: &pb.HnswConfigDiff{M: &m, EfConstruct: &ef, FullScanThreshold: &fullScan},
	}); err != nil {
		return errors.Wrapf(err, "create collection %s", r.collection)
	}

	if _, err := r.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collection,
		FieldName:      payloadSourceID,
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	}); err != nil {
		return errors.Wrapf(err, "index %s", payloadSourceID)
	}
	return nil
}

// vectorSize reads the configured size of an unnamed or the first named vector.
func vectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if size := vectors.GetParams().GetSize(); size > 0 {
		return size, true
	}
	for _, p := range vectors.GetParamsMap().GetMap() {
		if size := p.GetSize(); size > 0 {
			return size, true
		}
	}
	return 0, false
}

// EpisodePayload is stored with each vector.
type EpisodePayload struct {
	IdentityKey       string `json:"identity_key"`
	Title             string `json:"title"`
	Content           string `json:"content"`
	SourceID          string `json:"source_id"`
	SourceDescription string `json:"source_description"`
}

func (p *EpisodePayload) values() map[string]*pb.Value {
	return map[string]*pb.Value{
		payloadIdentityKey: pb.NewValueString(p.IdentityKey),
		payloadTitle:       pb.NewValueString(p.Title),
		payloadContent:     pb.NewValueString(p.Content),
		payloadSourceID:    pb.NewValueString(p.SourceID),
		payloadSourceDesc:  pb.NewValueString(p.SourceDescription),
	}
}

func payloadFromValues(v map[string]*pb.Value) *EpisodePayload {
	if v == nil {
		return nil
	}
	return &EpisodePayload{
		IdentityKey:       v[payloadIdentityKey].GetStringValue(),
		Title:             v[payloadTitle].GetStringValue(),
		Content:           v[payloadContent].GetStringValue(),
		SourceID:          v[payloadSourceID].GetStringValue(),
		SourceDescription: v[payloadSourceDesc].GetStringValue(),
	}
}

func pointID(id string) (*pb.PointId, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid point ID %q", id)
	}
	return pb.NewIDUUID(uid.String()), nil
}

// Upsert writes one point and waits until it is searchable.
func (r *QdrantRepository) Upsert(ctx context.Context, id string, vector []float32, payload *EpisodePayload) error {
	pid, err := pointID(id)
	if err != nil {
		return err
	}

	wait := true
	_, err = r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id:      pid,
			Vectors: pb.NewVectorsDense(vector),
			Payload: payload.values(),
		}},
	})
	return errors.Wrapf(err, "upsert point %s", id)
}

// SearchResult is one hit of a similarity search.
type SearchResult struct {
	ID      string
	Score   float32
	Payload *EpisodePayload
}

// Search returns the topK nearest points, within one tender when sourceID
// is set.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int, sourceID string) ([]SearchResult, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    pb.NewWithPayload(true),
		Filter:         sourceFilter(sourceID),
	})
	if err != nil {
		return nil, errors.Wrap(err, "search points")
	}

	results := make([]SearchResult, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		results = append(results, SearchResult{
			ID:      hit.GetId().GetUuid(),
			Score:   hit.GetScore(),
			Payload: payloadFromValues(hit.GetPayload()),
		})
	}
	return results, nil
}

func sourceFilter(sourceID string) *pb.Filter {
	if sourceID == "" {
		return nil
	}
	return &pb.Filter{Must: []*pb.Condition{pb.NewMatchKeyword(payloadSourceID, sourceID)}}
}

// Delete removes one point; used to roll back a vector whose episode row
// could not be written.
func (r *QdrantRepository) Delete(ctx context.Context, id string) error {
	pid, err := pointID(id)
	if err != nil {
		return err
	}
	_, err = r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points:         pb.NewPointsSelector(pid),
	})
	return errors.Wrapf(err, "delete point %s", id)
}
