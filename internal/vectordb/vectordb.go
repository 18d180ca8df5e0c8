// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/model"
)

// HashMatch identifies the document a previously-ingested file_hash
// belongs to, so /files/check can tell a client which document already
// holds the matching content instead of a bare boolean.
type HashMatch struct {
	DocumentID string
	FileName   string
}

// VectorDB is the full store contract spec 4.D names: batch upsert,
// similarity query, per-document deletion, document listing, a full
// chunk scan for the sparse index, and hash-based dedup checks.
type VectorDB interface {
	UpsertBatch(ctx context.Context, chunks []model.Chunk) error
	Query(ctx context.Context, vector []float32, topK int) ([]model.ScoredChunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	ListDocuments(ctx context.Context, sortBy, order string) ([]model.DocumentSummary, error)
	ListAllChunks(ctx context.Context) ([]model.Chunk, error)
	CheckHashes(ctx context.Context, hashes []string) (map[string]HashMatch, error)
	Count(ctx context.Context) (int, error)
}

// QdrantVectorDB is a thin wrapper around the Qdrant service clients.
type QdrantVectorDB struct {
	collectionsSvc qdrant.CollectionsClient
	pointsSvc      qdrant.PointsClient
	collection     string
	dimension      int
}

// NewQdrantVectorDB constructs a new wrapper and ensures the collection
// exists with the given embedding dimension.
func NewQdrantVectorDB(conn *grpc.ClientConn, collection string, dimension int) (*QdrantVectorDB, error) {
	if conn == nil {
		return nil, errors.New("gRPC connection is required")
	}
	if collection == "" {
		collection = "ragcore_chunks"
	}
	if dimension <= 0 {
		dimension = 1536
	}

	vdb := &QdrantVectorDB{
		collectionsSvc: qdrant.NewCollectionsClient(conn),
		pointsSvc:      qdrant.NewPointsClient(conn),
		collection:     collection,
		dimension:      dimension,
	}

	if err := vdb.ensureCollection(context.Background(), dimension); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	return vdb, nil
}

func (q *QdrantVectorDB) ensureCollection(ctx context.Context, dim int) error {
	collections, err := q.collectionsSvc.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, coll := range collections.Collections {
		if coll.Name == q.collection {
			q.dimension = dim
			return nil
		}
	}

	_, err = q.collectionsSvc.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dim),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	logger.Printf("created qdrant collection %s (dim=%d)", q.collection, dim)
	q.dimension = dim
	return nil
}

// UpsertBatch stores or updates a set of chunks in one request.
func (q *QdrantVectorDB) UpsertBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s: vector cannot be empty", c.ID)
		}
		payload := SanitizeMetadata(c.Metadata)
		payload["text"] = qdrant.NewValue(c.Text)
		payload["document_id"] = qdrant.NewValue(c.DocumentID)
		payload["chunk_index"] = qdrant.NewValue(int64(c.ChunkIndex))
		payload["chunk_id"] = qdrant.NewValue(c.ID)

		// Qdrant point ids must be a UUID or an unsigned int, but the
		// spec's chunk_id is the literal "{document_id}-chunk-{index}"
		// string, so the point id is a deterministic hash of it and the
		// literal itself travels in the chunk_id payload field.
		pointID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.ID)).String()
		points = append(points, &qdrant.PointStruct{
			Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID}},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: c.Embedding}},
			},
			Payload: payload,
		})
	}

	_, err := q.pointsSvc.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

// Query performs a similarity search, rescaling Qdrant's cosine score
// (which can sit anywhere in [-1,1]) into [0,1] so fusion math across
// the dense/sparse retrievers in 4.J has a stable shared range.
func (q *QdrantVectorDB) Query(ctx context.Context, vector []float32, topK int) ([]model.ScoredChunk, error) {
	if len(vector) == 0 {
		return nil, errors.New("query vector cannot be empty")
	}
	if topK <= 0 {
		topK = 10
	}

	result, err := q.pointsSvc.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: false}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	out := make([]model.ScoredChunk, 0, len(result.Result))
	for _, sp := range result.Result {
		chunk := chunkFromPoint(sp.Id, sp.Payload)
		out = append(out, model.ScoredChunk{
			Chunk: chunk,
			Score: normalizeCosine(sp.Score),
		})
	}
	return out, nil
}

func normalizeCosine(score float32) float32 {
	v := (score + 1) / 2
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

// DeleteByDocument removes every chunk belonging to a document.
func (q *QdrantVectorDB) DeleteByDocument(ctx context.Context, documentID string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatchKeyword("document_id", documentID)},
	}
	_, err := q.pointsSvc.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

// ListAllChunks scrolls through every point in the collection, used to
// rebuild the sparse (BM25) index (4.I) on refresh.
func (q *QdrantVectorDB) ListAllChunks(ctx context.Context) ([]model.Chunk, error) {
	var chunks []model.Chunk
	var offset *qdrant.PointId

	for {
		resp, err := q.pointsSvc.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Offset:         offset,
			Limit:          qu32(256),
			WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: false}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll: %w", err)
		}
		for _, p := range resp.Result {
			chunks = append(chunks, chunkFromPoint(p.Id, p.Payload))
		}
		if resp.NextPageOffset == nil {
			break
		}
		offset = resp.NextPageOffset
	}
	return chunks, nil
}

// ListDocuments groups chunk payloads by document_id into a summary
// list, sorted per the caller's request.
func (q *QdrantVectorDB) ListDocuments(ctx context.Context, sortBy, order string) ([]model.DocumentSummary, error) {
	chunks, err := q.ListAllChunks(ctx)
	if err != nil {
		return nil, err
	}

	byDoc := map[string]*model.DocumentSummary{}
	for _, c := range chunks {
		d, ok := byDoc[c.DocumentID]
		if !ok {
			d = &model.DocumentSummary{DocumentID: c.DocumentID}
			if v, ok := c.Metadata[model.MetaFileName]; ok {
				d.FileName = v.AsString()
			}
			if v, ok := c.Metadata[model.MetaFileType]; ok {
				d.FileType = v.AsString()
			}
			if v, ok := c.Metadata[model.MetaPath]; ok {
				d.Path = v.AsString()
			}
			if v, ok := c.Metadata[model.MetaFileSizeBytes]; ok {
				if i, ok := v.Int(); ok {
					d.SizeBytes = i
				}
			}
			if v, ok := c.Metadata[model.MetaUploadedAt]; ok {
				if ts, err := time.Parse(time.RFC3339, v.AsString()); err == nil {
					d.UploadedAt = ts
				}
			}
			byDoc[c.DocumentID] = d
		}
		d.Chunks++
	}

	out := make([]model.DocumentSummary, 0, len(byDoc))
	for _, d := range byDoc {
		out = append(out, *d)
	}

	sortDocuments(out, sortBy, order)
	return out, nil
}

func sortDocuments(docs []model.DocumentSummary, sortBy, order string) {
	less := func(i, j int) bool {
		switch sortBy {
		case "file_size_bytes":
			return docs[i].SizeBytes < docs[j].SizeBytes
		case "chunks":
			return docs[i].Chunks < docs[j].Chunks
		case "file_name":
			return docs[i].FileName < docs[j].FileName
		default:
			return docs[i].UploadedAt.Before(docs[j].UploadedAt)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if order == "desc" {
			return less(j, i)
		}
		return less(i, j)
	})
}

// CheckHashes reports, for each hash supplied, the document a chunk
// with that file_hash already belongs to — used by /files/check so a
// client can skip re-uploading a file it already has on the server.
func (q *QdrantVectorDB) CheckHashes(ctx context.Context, hashes []string) (map[string]HashMatch, error) {
	out := make(map[string]HashMatch, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}
	want := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		want[h] = true
	}

	chunks, err := q.ListAllChunks(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		v, ok := c.Metadata[model.MetaFileHash]
		if !ok {
			continue
		}
		h := v.AsString()
		if _, ok := out[h]; ok || !want[h] {
			continue
		}
		match := HashMatch{DocumentID: c.DocumentID}
		if fn, ok := c.Metadata[model.MetaFileName]; ok {
			match.FileName = fn.AsString()
		}
		out[h] = match
	}
	return out, nil
}

// Count returns the number of points currently stored.
func (q *QdrantVectorDB) Count(ctx context.Context) (int, error) {
	info, err := q.collectionsSvc.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: q.collection})
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	if info.Result == nil || info.Result.PointsCount == nil {
		return 0, nil
	}
	return int(*info.Result.PointsCount), nil
}

func qu32(n uint32) *uint32 { return &n }

func chunkFromPoint(id *qdrant.PointId, payload map[string]*qdrant.Value) model.Chunk {
	var pointID string
	if id != nil {
		if u := id.GetUuid(); u != "" {
			pointID = u
		} else if n := id.GetNum(); n != 0 {
			pointID = fmt.Sprintf("%d", n)
		}
	}

	meta := model.Metadata{}
	var text, documentID, chunkID string
	var chunkIndex int
	for k, v := range payload {
		switch k {
		case "text":
			text = v.GetStringValue()
			continue
		case "document_id":
			documentID = v.GetStringValue()
		case "chunk_index":
			chunkIndex = int(v.GetIntegerValue())
		case "chunk_id":
			chunkID = v.GetStringValue()
			continue
		}
		meta[k] = primitiveFromValue(v)
	}
	if chunkID == "" {
		// Points written before the chunk_id payload field existed; fall
		// back to the point id itself rather than leaving Chunk.ID empty.
		chunkID = pointID
	}

	return model.Chunk{
		ID:         chunkID,
		DocumentID: documentID,
		ChunkIndex: chunkIndex,
		Text:       text,
		Metadata:   meta,
	}
}

func primitiveFromValue(v *qdrant.Value) model.Primitive {
	switch k := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return model.String(k.StringValue)
	case *qdrant.Value_IntegerValue:
		return model.Int(k.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return model.Float(k.DoubleValue)
	case *qdrant.Value_BoolValue:
		return model.Bool(k.BoolValue)
	default:
		return model.Null()
	}
}

// SanitizeMetadata converts a Chunk's flattened Metadata into the
// Qdrant payload wire type, matching the store-contract primitive set
// (string|int|float|bool|null) spec 4.D requires. model.Primitive has
// no map or list kind, so there is nothing to flatten or drop here.
func SanitizeMetadata(meta model.Metadata) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(meta))
	for k, v := range meta {
		switch v.Kind() {
		case model.KindString:
			out[k] = qdrant.NewValue(v.AsString())
		case model.KindInt:
			i, _ := v.Int()
			out[k] = qdrant.NewValue(i)
		case model.KindFloat:
			f, _ := v.Float()
			out[k] = qdrant.NewValue(f)
		case model.KindBool:
			b, _ := v.Bool()
			out[k] = qdrant.NewValue(b)
		default:
			out[k] = qdrant.NewValue(nil)
		}
	}
	return out
}
