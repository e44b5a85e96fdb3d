package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
)

// File is one raw uploaded document. Content is expected to be text;
// binary format extraction (PDF, DOCX) is the concern of an upstream parser.
type File struct {
	Name    string
	Content []byte
}

// Chunk is a unit of ingested text. Immutable once persisted.
type Chunk struct {
	Content     string
	Source      string
	DocumentID  string
	ChunkIndex  int
	FileType    string
	TotalChunks int
	IngestedAt  time.Time
}

// Summary describes one ingestion batch.
type Summary struct {
	BatchID          string    `json:"batch_id"`
	TotalDocuments   int       `json:"total_documents"`
	TotalChunks      int       `json:"total_chunks"`
	TotalCharacters  int       `json:"total_characters"`
	AverageChunkSize float64   `json:"average_chunk_size"`
	FilesProcessed   int       `json:"files_processed"`
	IngestedAt       time.Time `json:"ingested_at"`
}

// Processor turns uploaded files into text chunks ready for embedding.
type Processor struct {
	logger *slog.Logger
}

func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger}
}

// Process chunks every non-empty file with a recursive character splitter.
// All chunks of one call share a batch-scoped document id, and chunk indexes
// run 0-based across the whole batch.
func (p *Processor) Process(ctx context.Context, files []File, chunkSize, chunkOverlap int) ([]Chunk, *Summary, error) {
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no files provided for processing")
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 200
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	batchID := uuid.NewString()
	now := time.Now()

	var chunks []Chunk
	totalCharacters := 0
	documents := 0

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if len(file.Content) == 0 {
			p.logger.Warn("Skipping empty file", "filename", file.Name)
			continue
		}

		pieces, err := splitter.SplitText(string(file.Content))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to split %s: %w", file.Name, err)
		}

		documents++
		for _, piece := range pieces {
			chunks = append(chunks, Chunk{
				Content:    piece,
				Source:     file.Name,
				DocumentID: batchID,
				ChunkIndex: len(chunks),
				FileType:   fileType(file.Name),
				IngestedAt: now,
			})
			totalCharacters += len(piece)
		}
	}

	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("no chunks were created from documents")
	}

	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}

	summary := &Summary{
		BatchID:          batchID,
		TotalDocuments:   documents,
		TotalChunks:      len(chunks),
		TotalCharacters:  totalCharacters,
		AverageChunkSize: float64(totalCharacters) / float64(len(chunks)),
		FilesProcessed:   documents,
		IngestedAt:       now,
	}

	p.logger.Info("Created chunks", "batch_id", batchID, "documents", documents, "chunks", len(chunks))
	return chunks, summary, nil
}

func fileType(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
		return strings.ToLower(name[idx+1:])
	}
	return "unknown"
}
