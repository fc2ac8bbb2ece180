package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/engine"
)

type storedDoc struct {
	seq    int
	fields map[string]string
}

// Index is an in-memory engine.IndexManager. Scoring counts distinct keyword
// terms matched in the best matching field. Thread-safe via sync.RWMutex.
type Index struct {
	mu        sync.RWMutex
	def       engine.Definition
	batchSize int
	created   bool
	creates   int
	seq       int
	docs      map[string]storedDoc
	batches   []int
}

var _ engine.IndexManager = (*Index)(nil)

// New creates an empty in-memory index for def.
func New(def engine.Definition, batchSize int) *Index {
	return &Index{
		def:       def,
		batchSize: engine.BatchSize(batchSize),
		docs:      make(map[string]storedDoc),
	}
}

// Ping always succeeds.
func (i *Index) Ping(context.Context) error { return nil }

// EnsureIndex marks the index as created.
func (i *Index) EnsureIndex(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.created {
		i.created = true
		i.creates++
	}
	return nil
}

// BulkSync stores docs batch by batch, recording each batch size.
func (i *Index) BulkSync(_ context.Context, docs []domain.Indexable) error {
	for batch := range slices.Chunk(docs, i.batchSize) {
		stored := make(map[string]storedDoc, len(batch))
		for _, d := range batch {
			fields, err := i.extract(d)
			if err != nil {
				return err
			}
			stored[d.DocumentID()] = storedDoc{fields: fields}
		}

		i.mu.Lock()
		for _, d := range batch {
			i.put(d.DocumentID(), stored[d.DocumentID()].fields)
		}
		i.batches = append(i.batches, len(batch))
		i.mu.Unlock()
	}
	return nil
}

// Upsert stores a single document.
func (i *Index) Upsert(_ context.Context, doc domain.Indexable) error {
	fields, err := i.extract(doc)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.put(doc.DocumentID(), fields)
	return nil
}

// put keeps a document's original position when it is overwritten.
func (i *Index) put(id string, fields map[string]string) {
	doc, ok := i.docs[id]
	if !ok {
		i.seq++
		doc.seq = i.seq
	}
	doc.fields = fields
	i.docs[id] = doc
}

// Delete removes a document.
func (i *Index) Delete(_ context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.docs, id)
	return nil
}

// DeleteIndex drops every document and the created flag.
func (i *Index) DeleteIndex(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.docs = make(map[string]storedDoc)
	i.created = false
	return nil
}

// Search scores every document against the keyword terms.
func (i *Index) Search(_ context.Context, keyword string) ([]domain.SearchHit, error) {
	terms := distinct(tokenize(keyword))
	if len(terms) == 0 {
		return []domain.SearchHit{}, nil
	}

	i.mu.RLock()
	type scored struct {
		seq int
		hit domain.SearchHit
	}
	var matched []scored
	for id, doc := range i.docs {
		score := i.score(doc, terms)
		if score == 0 {
			continue
		}
		entityID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		matched = append(matched, scored{doc.seq, domain.SearchHit{
			EntityID: entityID,
			Title:    doc.fields["title"],
			Score:    score,
		}})
	}
	i.mu.RUnlock()

	slices.SortFunc(matched, func(a, b scored) int { return a.seq - b.seq })
	hits := make([]domain.SearchHit, 0, len(matched))
	for _, m := range matched {
		hits = append(hits, m.hit)
	}
	engine.SortHits(hits)
	return hits, nil
}

// Len returns the number of stored documents.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// Creates returns how many times the index was created.
func (i *Index) Creates() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.creates
}

// Batches returns the size of every bulk batch written so far.
func (i *Index) Batches() []int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Clone(i.batches)
}

func (i *Index) score(doc storedDoc, terms []string) float64 {
	var best float64
	for _, f := range i.def.Fields {
		words := tokenize(doc.fields[f])
		var n float64
		for _, term := range terms {
			if slices.Contains(words, term) {
				n++
			}
		}
		best = max(best, n)
	}
	return best
}

// extract keeps the string values of the indexed fields.
func (i *Index) extract(doc domain.Indexable) (map[string]string, error) {
	raw, err := json.Marshal(doc.SearchDocument())
	if err != nil {
		return nil, fmt.Errorf("memory index %s: marshal document %s: %w", i.def.Name, doc.DocumentID(), err)
	}
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("memory index %s: decode document %s: %w", i.def.Name, doc.DocumentID(), err)
	}

	fields := make(map[string]string, len(i.def.Fields))
	for _, f := range i.def.Fields {
		if s, ok := all[f].(string); ok {
			fields[f] = s
		}
	}
	return fields, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func distinct(terms []string) []string {
	slices.Sort(terms)
	return slices.Compact(terms)
}
