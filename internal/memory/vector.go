// ABOUTME: In-process semantic memory over OpenAI embeddings with cosine ranking
// ABOUTME: Doubles as the background Updater ingesting completed turn transcripts

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns texts into embedding vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder implements Embedder on the OpenAI embeddings API
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder for the given model
func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
	}
}

// Embed returns one vector per input text
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: want %d, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// memoryItem is one stored reflection with its embedding
type memoryItem struct {
	content   string
	embedding []float32
	storedAt  time.Time
}

// maxTranscriptLen bounds what one turn contributes to memory
const maxTranscriptLen = 2000

// VectorSearcher is an in-process semantic memory store. It implements
// both Searcher (recall) and Updater (background ingestion). Contents are
// process-lifetime only; persistence of long-term memory items is an
// external concern.
type VectorSearcher struct {
	embedder Embedder
	maxItems int
	logger   *slog.Logger

	mu    sync.RWMutex
	items map[string][]memoryItem
}

// NewVectorSearcher creates a searcher retaining at most maxItems entries
// per owner (oldest evicted first)
func NewVectorSearcher(embedder Embedder, maxItems int) *VectorSearcher {
	if maxItems <= 0 {
		maxItems = 100
	}
	return &VectorSearcher{
		embedder: embedder,
		maxItems: maxItems,
		logger:   slog.Default().With("component", "memory"),
		items:    make(map[string][]memoryItem),
	}
}

// Add stores one memory item for the owner
func (s *VectorSearcher) Add(ctx context.Context, ownerID, content string) error {
	vectors, err := s.embedder.Embed(ctx, []string{content})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := append(s.items[ownerID], memoryItem{
		content:   content,
		embedding: vectors[0],
		storedAt:  time.Now(),
	})
	if len(items) > s.maxItems {
		items = items[len(items)-s.maxItems:]
	}
	s.items[ownerID] = items
	return nil
}

// Search returns the owner's top-k items by cosine similarity to the query
func (s *VectorSearcher) Search(ctx context.Context, ownerID, query string, k int) ([]SearchHit, error) {
	s.mu.RLock()
	stored := s.items[ownerID]
	s.mu.RUnlock()
	if len(stored) == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	queryVec := vectors[0]

	hits := make([]SearchHit, 0, len(stored))
	for _, item := range stored {
		hits = append(hits, SearchHit{
			Content: item.content,
			Score:   cosineSimilarity(queryVec, item.embedding),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Update implements Updater: the turn transcript becomes one memory item
func (s *VectorSearcher) Update(ctx context.Context, ownerID, transcript string) error {
	if transcript == "" {
		return nil
	}
	if len(transcript) > maxTranscriptLen {
		transcript = transcript[:maxTranscriptLen]
	}
	return s.Add(ctx, ownerID, transcript)
}

// cosineSimilarity computes the cosine of the angle between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
