package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Document is a chunk prepared for storage: text plus metadata and embedding.
type Document struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding []float32              `json:"embedding,omitempty"`
}

// RetrievalHit is one similarity-search result. Distance is cosine distance
// (non-negative dissimilarity); nil when the engine did not report one.
type RetrievalHit struct {
	Content    string   `json:"content"`
	Source     string   `json:"source"`
	DocumentID string   `json:"document_id"`
	ChunkIndex int      `json:"chunk_index"`
	FileType   string   `json:"file_type"`
	Distance   *float64 `json:"distance,omitempty"`
}

// Stats summarizes the state of a collection.
type Stats struct {
	TotalChunks int64 `json:"total_chunks"`
	Healthy     bool  `json:"healthy"`
}

// PGVectorStore handles pgvector operations for one collection
type PGVectorStore struct {
	pool      *pgxpool.Pool
	tableName string
}

// isValidTableName validates that a table name contains only safe characters
// to prevent SQL injection attacks
func isValidTableName(name string) bool {
	// Only allow alphanumeric characters and underscores
	// Table names must start with a letter or underscore and be between 1-63 chars (PostgreSQL limit)
	matched, _ := regexp.MatchString(`^[a-z_][a-zA-Z0-9_]{0,62}$`, name)
	return matched
}

// NewPGVectorStore creates a new PGVector store
func NewPGVectorStore(pool *pgxpool.Pool, tableName string) (*PGVectorStore, error) {
	if !isValidTableName(tableName) {
		return nil, fmt.Errorf("invalid table name: must contain only alphanumeric characters and underscores, start with a letter or underscore, and be 1-63 characters long")
	}
	return &PGVectorStore{
		pool:      pool,
		tableName: tableName,
	}, nil
}

// AddDocuments adds documents with embeddings to the vector store
func (vs *PGVectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (content, metadata, embedding)
		VALUES ($1, $2, $3)
	`, pgx.Identifier{vs.tableName}.Sanitize())

	batch := &pgx.Batch{}
	for _, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		embedding := pgvector.NewVector(doc.Embedding)
		batch.Queue(query, doc.Content, metadataJSON, embedding)
	}

	br := vs.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
	}

	return nil
}

// SimilaritySearch returns the closest chunks by cosine distance,
// relevance-ranked (nearest first).
func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, limit int) ([]RetrievalHit, error) {
	if limit <= 0 {
		limit = 5
	}

	embedding := pgvector.NewVector(queryEmbedding)
	query := fmt.Sprintf(`
		SELECT content, metadata, embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgx.Identifier{vs.tableName}.Sanitize())

	rows, err := vs.pool.Query(ctx, query, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var hits []RetrievalHit
	for rows.Next() {
		var content string
		var metadataJSON []byte
		var distance *float64

		if err := rows.Scan(&content, &metadataJSON, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var metadata map[string]interface{}
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		hit := RetrievalHit{
			Content:    content,
			Source:     metadataString(metadata, "source"),
			DocumentID: metadataString(metadata, "document_id"),
			FileType:   metadataString(metadata, "file_type"),
			Distance:   distance,
		}
		if idx, ok := metadata["chunk_index"].(float64); ok {
			hit.ChunkIndex = int(idx)
		}

		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return hits, nil
}

// Stats returns collection statistics.
func (vs *PGVectorStore) Stats(ctx context.Context) (*Stats, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pgx.Identifier{vs.tableName}.Sanitize())

	var count int64
	if err := vs.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return &Stats{Healthy: false}, fmt.Errorf("failed to count chunks: %w", err)
	}
	return &Stats{TotalChunks: count, Healthy: true}, nil
}

// Wipe deletes every chunk in the collection. The table itself is kept.
func (vs *PGVectorStore) Wipe(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, pgx.Identifier{vs.tableName}.Sanitize())
	if _, err := vs.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to wipe collection: %w", err)
	}
	return nil
}

func metadataString(metadata map[string]interface{}, key string) string {
	if s, ok := metadata[key].(string); ok {
		return s
	}
	return ""
}
