package vectorstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	apperrors "github.com/riskline/riskline/internal/errors"
)

const defaultNProbe = 10
const ivfNlist = 1024
const batchSize = 50

// Client is a thin adapter over the Qdrant gRPC API, scoped to the two
// collections this module needs (VS-PR, VS-File).
type Client struct {
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	apiKey      string
	dimension   uint64
	timeout     time.Duration
}

// NewClient dials url (TLS auto-detected from a ":443" suffix or "https://"
// scheme) and authenticates subsequent calls with apiKey via the ctxWithAuth
// metadata wrapper.
func NewClient(url, apiKey string, dimension int, timeout time.Duration) (*Client, error) {
	var opts []grpc.DialOption
	if strings.HasSuffix(url, ":443") || strings.HasPrefix(url, "https://") {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(nil)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	url = strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")

	conn, err := grpc.NewClient(url, opts...)
	if err != nil {
		return nil, apperrors.ConfigErrorf("dial vector store %s: %v", url, err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		apiKey:      apiKey,
		dimension:   uint64(dimension),
		timeout:     timeout,
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) ctxWithAuth(ctx context.Context) context.Context {
	if c.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", c.apiKey)
}

// EnsureCollection creates name as a cosine-metric collection over the
// client's fixed dimension if it does not already exist (spec §4.4). HNSW
// graph building is disabled (M=0), so searches scan the collection
// exactly; Qdrant has no IVF_FLAT index and ivfNlist is not applied.
func (c *Client) EnsureCollection(ctx context.Context, name string) error {
	ctx = c.ctxWithAuth(ctx)

	exists, err := c.collections.CollectionExists(ctx, &qdrant.CollectionExistsRequest{CollectionName: name})
	if err == nil && exists.GetResult().GetExists() {
		return nil
	}

	_, err = c.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     c.dimension,
					Distance: qdrant.Distance_Cosine,
					HnswConfig: &qdrant.HnswConfigDiff{
						// M=0 turns off the HNSW graph, leaving an exact
						// flat scan; Qdrant's native index is HNSW, not IVF.
						M: ptrUint64(0),
					},
				},
			},
		},
	})
	if err != nil {
		return apperrors.TransientRemoteError(err, "create collection "+name)
	}
	return nil
}

func ptrUint64(v uint64) *uint64 { return &v }

// ValidateVector forces vec to exactly dimension D: truncating if longer,
// zero-padding if shorter (spec §4.4 "Vector validation").
func ValidateVector(vec []float32, dimension int) []float32 {
	if len(vec) == dimension {
		return vec
	}
	if len(vec) > dimension {
		return vec[:dimension]
	}
	padded := make([]float32, dimension)
	copy(padded, vec)
	return padded
}

// Point is one scalar+vector row to upsert.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// Upsert writes points into collection in batches of 50; a failed batch
// falls back to one upsert per point, and if any point still fails the
// first such error is returned and later batches are not written.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	ctx = c.ctxWithAuth(ctx)

	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		batch := points[start:end]

		qp := make([]*qdrant.PointStruct, len(batch))
		for i, p := range batch {
			vec := ValidateVector(p.Vector, int(c.dimension))
			qp[i] = &qdrant.PointStruct{
				Id:      pointID(p.ID),
				Vectors: qdrant.NewVectors(vec...),
				Payload: toPayload(p.Payload),
			}
		}

		wait := true
		_, err := c.points.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         qp,
			Wait:           &wait,
		})
		if err != nil {
			var rowErr error
			for _, p := range qp {
				_, err := c.points.Upsert(ctx, &qdrant.UpsertPoints{
					CollectionName: collection,
					Points:         []*qdrant.PointStruct{p},
					Wait:           &wait,
				})
				if err != nil && rowErr == nil {
					rowErr = err
				}
			}
			if rowErr != nil {
				return apperrors.SchemaViolationErrorf("upsert batch [%d:%d] into %s: %v", start, end, collection, rowErr)
			}
		}
	}
	return nil
}

// pointID derives a deterministic UUID from a logical primary key string so
// repeated ingests upsert the same point rather than duplicating rows.
func pointID(pk string) *qdrant.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(pk)).String()
	return qdrant.NewID(id)
}

// DeleteByFilter deletes every point in collection matching expr. Nothing in
// this module calls it: Upsert derives a deterministic point ID from each
// logical key, so re-upserting a row overwrites the existing point.
func (c *Client) DeleteByFilter(ctx context.Context, collection string, expr Expr) error {
	ctx = c.ctxWithAuth(ctx)
	_, err := c.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: toQdrantFilter(expr),
			},
		},
	})
	if err != nil {
		return apperrors.TransientRemoteError(err, "delete by filter from "+collection)
	}
	return nil
}

// toQdrantFilter converts our combinator Expr tree to Qdrant's native
// filter protobuf, the one coercion point between our scalar language and
// the wire format.
func toQdrantFilter(expr Expr) *qdrant.Filter {
	if expr == nil {
		return nil
	}
	return &qdrant.Filter{Must: []*qdrant.Condition{expr.condition()}}
}

func toPayload(m map[string]interface{}) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		out[k] = toQdrantValue(v)
	}
	return out
}

func toQdrantValue(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return qdrant.NewValueString(val)
	case bool:
		return qdrant.NewValueBool(val)
	case int:
		return qdrant.NewValueInt(int64(val))
	case int64:
		return qdrant.NewValueInt(val)
	case float64:
		return qdrant.NewValueDouble(val)
	case []string:
		list := make([]*qdrant.Value, len(val))
		for i, s := range val {
			list[i] = qdrant.NewValueString(s)
		}
		return qdrant.NewValueList(list...)
	default:
		return qdrant.NewValueString("")
	}
}

func fromQdrantValue(v *qdrant.Value) interface{} {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := fromQdrantValue(item).(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
