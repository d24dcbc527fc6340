package vectorstore

import (
	"context"

	"github.com/qdrant/go-client/qdrant"

	apperrors "github.com/riskline/riskline/internal/errors"
)

// Row is one result row: its scalar payload plus, for ANN queries, the
// distance to the query vector.
type Row struct {
	Payload  map[string]interface{}
	Distance float32
}

// QueryPRs executes a scalar-only query against the PR collection.
func (c *Client) QueryPRs(ctx context.Context, collection string, expr Expr, limit uint32) ([]Row, error) {
	return c.scroll(ctx, collection, expr, limit)
}

// QueryFiles executes a scalar-only query against the file collection.
func (c *Client) QueryFiles(ctx context.Context, collection string, expr Expr, limit uint32) ([]Row, error) {
	return c.scroll(ctx, collection, expr, limit)
}

func (c *Client) scroll(ctx context.Context, collection string, expr Expr, limit uint32) ([]Row, error) {
	ctx = c.ctxWithAuth(ctx)

	withPayload := qdrant.NewWithPayload(true)
	resp, err := c.points.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         toQdrantFilter(expr),
		Limit:          &limit,
		WithPayload:    withPayload,
	})
	if err != nil {
		return nil, apperrors.QueryBadErrorf("scroll %s: %v", collection, err)
	}

	rows := make([]Row, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		rows = append(rows, Row{Payload: payloadToMap(p.GetPayload())})
	}
	return rows, nil
}

// SearchPRs runs ANN search over the PR collection with a scalar prefilter;
// the HnswEf search parameter is fixed at defaultNProbe*10 = 100 (spec §4.4).
func (c *Client) SearchPRs(ctx context.Context, collection string, vec []float32, expr Expr, k uint64) ([]Row, error) {
	return c.search(ctx, collection, vec, expr, k)
}

// SearchFiles runs ANN search over the file collection.
func (c *Client) SearchFiles(ctx context.Context, collection string, vec []float32, expr Expr, k uint64) ([]Row, error) {
	return c.search(ctx, collection, vec, expr, k)
}

func (c *Client) search(ctx context.Context, collection string, vec []float32, expr Expr, k uint64) ([]Row, error) {
	ctx = c.ctxWithAuth(ctx)
	vec = ValidateVector(vec, int(c.dimension))

	withPayload := qdrant.NewWithPayload(true)
	resp, err := c.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vec,
		Filter:         toQdrantFilter(expr),
		Limit:          k,
		WithPayload:    withPayload,
		Params: &qdrant.SearchParams{
			HnswEf: ptrUint64(defaultNProbe * 10),
		},
	})
	if err != nil {
		return nil, apperrors.QueryBadErrorf("search %s: %v", collection, err)
	}

	rows := make([]Row, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		rows = append(rows, Row{
			Payload:  payloadToMap(p.GetPayload()),
			Distance: 1 - p.GetScore(), // cosine similarity -> distance
		})
	}
	return rows, nil
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = fromQdrantValue(v)
	}
	return out
}

// SetPayload updates a subset of fields on an existing point without a full
// re-upsert. Nothing in this module calls it.
func (c *Client) SetPayload(ctx context.Context, collection, pointPK string, fields map[string]interface{}) error {
	ctx = c.ctxWithAuth(ctx)
	_, err := c.points.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: collection,
		Payload:        toPayload(fields),
		PointsSelector: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{pointID(pointPK)}},
			},
		},
	})
	if err != nil {
		return apperrors.TransientRemoteError(err, "set payload on "+collection)
	}
	return nil
}
