package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/engine"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
	"github.com/utafrali/catalogue/pkg/tracing"
)

const defaultSearchSize = 10

// Options tunes an Index.
type Options struct {
	// BatchSize caps documents per bulk request. Defaults to 100.
	BatchSize int
	// SearchSize caps hits returned by Search. Defaults to 10.
	SearchSize int
}

// Index is an Elasticsearch-backed engine.IndexManager for one entity type.
type Index struct {
	client     *elasticsearch.Client
	def        engine.Definition
	batchSize  int
	searchSize int
	logger     *slog.Logger
	tracer     trace.Tracer
}

var _ engine.IndexManager = (*Index)(nil)

// New creates an Index. It does not contact the cluster; call EnsureIndex.
func New(client *elasticsearch.Client, def engine.Definition, opts Options, logger *slog.Logger) *Index {
	size := opts.SearchSize
	if size <= 0 {
		size = defaultSearchSize
	}
	return &Index{
		client:     client,
		def:        def,
		batchSize:  engine.BatchSize(opts.BatchSize),
		searchSize: size,
		logger:     logger.With(slog.String("index", def.Name)),
		tracer:     tracing.Tracer("github.com/utafrali/catalogue/internal/engine/elasticsearch"),
	}
}

// Name returns the index name.
func (i *Index) Name() string { return i.def.Name }

// Ping checks whether the cluster is reachable.
func (i *Index) Ping(ctx context.Context) error {
	res, err := i.client.Ping(i.client.Ping.WithContext(ctx))
	if err != nil {
		return apperrors.IndexUnavailable(fmt.Errorf("ping: %w", err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return apperrors.IndexUnavailable(decodeError(res).err("ping"))
	}
	return nil
}

// EnsureIndex creates the index with its mapping when it is missing. Losing a
// creation race to another process counts as success.
func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.def.Name}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return apperrors.IndexUnavailable(fmt.Errorf("check index %s: %w", i.def.Name, err))
	}
	_ = res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return apperrors.IndexUnavailable(fmt.Errorf("check index %s: unexpected status %d", i.def.Name, res.StatusCode))
	}

	mapping, err := buildIndexMapping(i.def)
	if err != nil {
		return fmt.Errorf("build mapping for %s: %w", i.def.Name, err)
	}

	res, err = i.client.Indices.Create(
		i.def.Name,
		i.client.Indices.Create.WithBody(bytes.NewReader(mapping)),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return apperrors.IndexUnavailable(fmt.Errorf("create index %s: %w", i.def.Name, err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		e := decodeError(res)
		if e.Error.Type == errResourceAlreadyExists {
			i.logger.DebugContext(ctx, "index created concurrently")
			return nil
		}
		return apperrors.IndexUnavailable(e.err("create index " + i.def.Name))
	}

	i.logger.InfoContext(ctx, "index created")
	return nil
}

// bulkItemResponse is one entry of a bulk response's items array.
type bulkItemResponse struct {
	Index struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool               `json:"errors"`
	Items  []bulkItemResponse `json:"items"`
}

// BulkSync writes docs in fetch order, one bulk request per batch. The first
// failing batch aborts the sync.
func (i *Index) BulkSync(ctx context.Context, docs []domain.Indexable) error {
	batches := 0
	for batch := range slices.Chunk(docs, i.batchSize) {
		batches++
		if err := i.bulk(ctx, batches, batch); err != nil {
			return err
		}
	}
	i.logger.InfoContext(ctx, "bulk sync completed",
		slog.Int("documents", len(docs)),
		slog.Int("batches", batches),
	)
	return nil
}

func (i *Index) bulk(ctx context.Context, n int, batch []domain.Indexable) (err error) {
	ctx, span := i.tracer.Start(ctx, "elasticsearch.bulk",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "elasticsearch"),
			attribute.String("index", i.def.Name),
			attribute.Int("batch", n),
			attribute.Int("documents", len(batch)),
		),
	)
	start := time.Now()
	defer func() {
		bulkDuration.WithLabelValues(i.def.Name).Observe(time.Since(start).Seconds())
		bulkBatchesTotal.WithLabelValues(i.def.Name, outcome(err)).Inc()
		tracing.RecordError(span, err)
		span.End()
	}()

	body, err := encodeBulk(batch)
	if err != nil {
		return fmt.Errorf("bulk batch %d: %w", n, err)
	}

	res, err := i.client.Bulk(
		bytes.NewReader(body),
		i.client.Bulk.WithIndex(i.def.Name),
		i.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return apperrors.IndexUnavailable(fmt.Errorf("bulk batch %d: %w", n, err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return apperrors.IndexUnavailable(decodeError(res).err(fmt.Sprintf("bulk batch %d", n)))
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return apperrors.IndexUnavailable(fmt.Errorf("bulk batch %d: decode response: %w", n, err))
	}
	if br.Errors {
		return apperrors.IndexUnavailable(itemErrors(n, len(batch), br.Items))
	}

	documentsIndexedTotal.WithLabelValues(i.def.Name).Add(float64(len(batch)))
	return nil
}

func encodeBulk(batch []domain.Indexable) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range batch {
		action := map[string]any{"index": map[string]any{"_id": doc.DocumentID()}}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("encode action: %w", err)
		}
		if err := enc.Encode(doc.SearchDocument()); err != nil {
			return nil, fmt.Errorf("encode document %s: %w", doc.DocumentID(), err)
		}
	}
	return buf.Bytes(), nil
}

func itemErrors(n, total int, items []bulkItemResponse) error {
	var msgs []string
	for _, item := range items {
		if e := item.Index.Error; e != nil {
			msgs = append(msgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, e.Type, e.Reason))
		}
	}
	return fmt.Errorf("bulk batch %d: %d of %d documents failed: %s", n, len(msgs), total, strings.Join(msgs, "; "))
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Title string `json:"title"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// buildSearchQuery returns a best_fields multi_match over every indexed field.
func (i *Index) buildSearchQuery(keyword string) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":    keyword,
				"fields":   i.def.Fields,
				"type":     "best_fields",
				"operator": "or",
			},
		},
		"_source": []string{"title"},
		"size":    i.searchSize,
	}
}

// Search runs a keyword query. A blank keyword returns no hits.
func (i *Index) Search(ctx context.Context, keyword string) (hits []domain.SearchHit, err error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []domain.SearchHit{}, nil
	}
	defer func() { searchQueriesTotal.WithLabelValues(i.def.Name, outcome(err)).Inc() }()

	body, err := json.Marshal(i.buildSearchQuery(keyword))
	if err != nil {
		return nil, fmt.Errorf("search: marshal query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithIndex(i.def.Name),
		i.client.Search.WithBody(bytes.NewReader(body)),
		i.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, apperrors.IndexUnavailable(fmt.Errorf("search %s: %w", i.def.Name, err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		e := decodeError(res)
		if res.StatusCode == http.StatusBadRequest {
			return nil, apperrors.MalformedQuery(e.err("search").Error())
		}
		return nil, apperrors.IndexUnavailable(e.err("search " + i.def.Name))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, apperrors.IndexUnavailable(fmt.Errorf("search %s: decode response: %w", i.def.Name, err))
	}

	hits = make([]domain.SearchHit, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			i.logger.WarnContext(ctx, "skipping hit with non-numeric id", slog.String("id", h.ID))
			continue
		}
		hits = append(hits, domain.SearchHit{EntityID: id, Title: h.Source.Title, Score: h.Score})
	}
	engine.SortHits(hits)
	return hits, nil
}

// Upsert writes a single document.
func (i *Index) Upsert(ctx context.Context, doc domain.Indexable) error {
	data, err := json.Marshal(doc.SearchDocument())
	if err != nil {
		return fmt.Errorf("upsert: marshal document: %w", err)
	}

	res, err := i.client.Index(
		i.def.Name,
		bytes.NewReader(data),
		i.client.Index.WithDocumentID(doc.DocumentID()),
		i.client.Index.WithContext(ctx),
	)
	if err != nil {
		return apperrors.IndexUnavailable(fmt.Errorf("upsert %s: %w", doc.DocumentID(), err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return apperrors.IndexUnavailable(decodeError(res).err("upsert " + doc.DocumentID()))
	}
	i.logger.DebugContext(ctx, "document upserted", slog.String("id", doc.DocumentID()))
	return nil
}

// Delete removes a document. A 404 is ignored.
func (i *Index) Delete(ctx context.Context, id string) error {
	res, err := i.client.Delete(i.def.Name, id, i.client.Delete.WithContext(ctx))
	if err != nil {
		return apperrors.IndexUnavailable(fmt.Errorf("delete %s: %w", id, err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return apperrors.IndexUnavailable(decodeError(res).err("delete " + id))
	}
	i.logger.DebugContext(ctx, "document deleted", slog.String("id", id))
	return nil
}

// DeleteIndex drops the index. A 404 is ignored.
func (i *Index) DeleteIndex(ctx context.Context) error {
	res, err := i.client.Indices.Delete([]string{i.def.Name}, i.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return apperrors.IndexUnavailable(fmt.Errorf("delete index %s: %w", i.def.Name, err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return apperrors.IndexUnavailable(decodeError(res).err("delete index " + i.def.Name))
	}
	i.logger.InfoContext(ctx, "index deleted")
	return nil
}
