package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/sirupsen/logrus"

	"github/itish2003/rentalqa/models"
)

var chromaLog = logrus.WithField("component", "chroma")

// Chroma stores each namespace in its own ChromaDB collection named
// "<index>-<namespace>".
type Chroma struct {
	client chromago.Client
	index  string

	mu          sync.Mutex
	collections map[string]chromago.Collection
}

// NewChroma connects to the ChromaDB server at baseURL. An empty baseURL uses
// the client default.
func NewChroma(baseURL, index string) (*Chroma, error) {
	var opts []chromago.ClientOption
	if baseURL != "" {
		opts = append(opts, chromago.WithBaseURL(baseURL))
	}
	client, err := chromago.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}
	return &Chroma{
		client:      client,
		index:       index,
		collections: make(map[string]chromago.Collection),
	}, nil
}

// CollectionName maps a namespace to its collection.
func (c *Chroma) CollectionName(namespace string) string {
	if namespace == "" {
		return c.index
	}
	return c.index + "-" + namespace
}

func (c *Chroma) collection(ctx context.Context, namespace string) (chromago.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[namespace]; ok {
		return col, nil
	}

	name := c.CollectionName(namespace)
	chromaLog.Infof("getting or creating collection '%s'", name)
	col, err := c.client.GetOrCreateCollection(ctx, name, collectionOptions(namespace)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection %s: %w", name, err)
	}
	c.collections[namespace] = col
	return col, nil
}

// collectionOptions creates collections in cosine space so that Query can
// report 1 - distance as the cosine similarity. The space option must come
// after the metadata option, which replaces the whole metadata map.
func collectionOptions(namespace string) []chromago.CreateCollectionOption {
	return []chromago.CreateCollectionOption{
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "Rental document chunks"),
				chromago.NewStringAttribute("namespace", namespace),
			),
		),
		chromago.WithHNSWSpaceCreate(embeddings.COSINE),
	}
}

// Upsert writes records by ID.
func (c *Chroma) Upsert(ctx context.Context, namespace string, records []models.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}
	col, err := c.collection(ctx, namespace)
	if err != nil {
		return err
	}

	ids := make([]chromago.DocumentID, len(records))
	texts := make([]string, len(records))
	vecs := make([]embeddings.Embedding, len(records))
	metas := make([]chromago.DocumentMetadata, len(records))
	for i, r := range records {
		ids[i] = chromago.DocumentID(r.ID)
		texts[i] = r.Text
		vecs[i] = embeddings.NewEmbeddingFromFloat32(r.Vector)
		metas[i] = toDocumentMetadata(r.Metadata)
	}

	err = col.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(vecs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %d records to chromadb: %w", len(records), err)
	}
	return nil
}

// Query returns the k nearest records. Chroma reports cosine distance, which
// is converted back to similarity.
func (c *Chroma) Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.RetrievedDocument, error) {
	col, err := c.collection(ctx, namespace)
	if err != nil {
		return nil, err
	}
	results, err := col.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	distanceGroups := results.GetDistancesGroups()

	docs := []models.RetrievedDocument{}
	if len(documentGroups) == 0 {
		return docs, nil
	}
	for i, doc := range documentGroups[0] {
		d := models.RetrievedDocument{PageContent: doc.ContentString(), Metadata: models.Metadata{}}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) && metadataGroups[0][i] != nil {
			d.Metadata = fromDocumentMetadata(metadataGroups[0][i])
		}
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			d.Score = 1 - float32(distanceGroups[0][i])
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// DeleteBySource removes every record of one source document.
func (c *Chroma) DeleteBySource(ctx context.Context, namespace, source string) error {
	col, err := c.collection(ctx, namespace)
	if err != nil {
		return err
	}
	where := chromago.EqString(models.MetadataSource, source)
	return col.Delete(ctx, chromago.WithWhereDelete(where))
}

// Count returns the number of records in the namespace's collection.
func (c *Chroma) Count(ctx context.Context, namespace string) (int, error) {
	col, err := c.collection(ctx, namespace)
	if err != nil {
		return 0, err
	}
	return col.Count(ctx)
}

// Close releases the client.
func (c *Chroma) Close() error {
	return c.client.Close()
}

func toDocumentMetadata(md models.Metadata) chromago.DocumentMetadata {
	attrs := make([]*chromago.MetaAttribute, 0, len(md))
	for k, v := range md {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, chromago.NewStringAttribute(k, val))
		case int:
			attrs = append(attrs, chromago.NewIntAttribute(k, int64(val)))
		case int64:
			attrs = append(attrs, chromago.NewIntAttribute(k, val))
		case float64:
			attrs = append(attrs, chromago.NewFloatAttribute(k, val))
		case float32:
			attrs = append(attrs, chromago.NewFloatAttribute(k, float64(val)))
		case bool:
			attrs = append(attrs, chromago.NewBoolAttribute(k, val))
		default:
			attrs = append(attrs, chromago.NewStringAttribute(k, fmt.Sprint(val)))
		}
	}
	return chromago.NewDocumentMetadata(attrs...)
}

// fromDocumentMetadata converts Chroma metadata to a plain map. The metadata
// type has no accessor for all values, so it goes through JSON.
func fromDocumentMetadata(meta chromago.DocumentMetadata) models.Metadata {
	raw, err := json.Marshal(meta)
	if err != nil {
		chromaLog.Warnf("could not marshal metadata for document: %v", err)
		return models.Metadata{}
	}
	return decodeMetadata(raw)
}
