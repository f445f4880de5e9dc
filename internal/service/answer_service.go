package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"ragserver/internal/ai"
	"ragserver/internal/model"
)

const (
	maxContextChars  = 6000
	maxFallbackChars = 700
)

// AnswerService composes a grounded answer over retrieved chunks. Each
// request tries the generation backend first (when one is configured) and
// degrades to extractive bullets on any failure: unreachable backend,
// timeout, or output that does not parse as the requested JSON.
type AnswerService struct {
	retrieval *RetrievalService
	generator ai.IGenerator
	llmModel  string
	timeout   time.Duration
}

func NewAnswerService(retrieval *RetrievalService, generator ai.IGenerator, llmModel string, timeout time.Duration) *AnswerService {
	return &AnswerService{
		retrieval: retrieval,
		generator: generator,
		llmModel:  llmModel,
		timeout:   timeout,
	}
}

type Citation struct {
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	PageNumber    int     `json:"page_number"`
	ChunkIndex    int     `json:"chunk_index"`
	Score         float64 `json:"score"`
}

type UsedModel struct {
	Embedding string  `json:"embedding"`
	LLM       *string `json:"llm"`
}

type AnswerTiming struct {
	RetrieveMS int64 `json:"retrieve_ms"`
	GenerateMS int64 `json:"generate_ms"`
	TotalMS    int64 `json:"total_ms"`
}

type Answer struct {
	Answer        string       `json:"answer"`
	AnswerBullets []string     `json:"answer_bullets"`
	Citations     []Citation   `json:"citations"`
	UsedModel     UsedModel    `json:"used_model"`
	Timing        AnswerTiming `json:"timing"`
}

type llmAnswer struct {
	Answer        string   `json:"answer"`
	AnswerBullets []string `json:"answer_bullets"`
}

func (s *AnswerService) Answer(ctx context.Context, query string, opts RetrieveOptions) (*Answer, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("query", query))
	started := time.Now()

	hits, err := s.retrieval.Retrieve(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	retrieveMS := time.Since(started).Milliseconds()

	result := &Answer{
		Citations: citations(hits),
		UsedModel: UsedModel{Embedding: s.retrieval.EmbeddingModelName()},
	}

	genStart := time.Now()
	if s.generator != nil && len(hits) > 0 {
		if parsed, err := s.generate(ctx, query, hits); err == nil {
			result.Answer = parsed.Answer
			result.AnswerBullets = parsed.AnswerBullets
			result.UsedModel.LLM = &s.llmModel
		} else {
			logger.Warn("generation failed, using extractive fallback", zap.Error(err))
		}
	}
	if result.UsedModel.LLM == nil {
		result.Answer, result.AnswerBullets = extractiveAnswer(hits)
	}

	result.Timing = AnswerTiming{
		RetrieveMS: retrieveMS,
		GenerateMS: time.Since(genStart).Milliseconds(),
		TotalMS:    time.Since(started).Milliseconds(),
	}
	return result, nil
}

func (s *AnswerService) generate(ctx context.Context, query string, hits []model.SearchHit) (*llmAnswer, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	prompt := buildPrompt(query, hits)
	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	parsed, err := parseAnswer(raw)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

func buildPrompt(query string, hits []model.SearchHit) string {
	var sb strings.Builder
	for i, hit := range hits {
		section := fmt.Sprintf("[%d] %s (chunk %d)\n%s\n\n", i+1, hit.DocumentTitle, hit.ChunkIndex, hit.Text)
		if sb.Len()+len(section) > maxContextChars {
			break
		}
		sb.WriteString(section)
	}
	return fmt.Sprintf(`You are a concise assistant. Read CONTEXT and answer QUESTION.
- Only use information from CONTEXT.
- Respond with strict JSON having keys "answer" (string) and "answer_bullets" (array of strings). No extra text.

QUESTION:
%s

CONTEXT:
%s`, query, sb.String())
}

func parseAnswer(output string) (*llmAnswer, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	var parsed llmAnswer
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("parse answer: %w", err)
	}
	if strings.TrimSpace(parsed.Answer) == "" {
		return nil, fmt.Errorf("empty answer in response")
	}
	return &parsed, nil
}

// extractiveAnswer builds bullets from the leading sentence of each top
// chunk, in rank order.
func extractiveAnswer(hits []model.SearchHit) (string, []string) {
	if len(hits) == 0 {
		return "No relevant passages found.", []string{"No relevant passages found."}
	}
	bullets := make([]string, 0, len(hits))
	for _, hit := range hits {
		if sentence := leadingSentence(hit.Text); sentence != "" {
			bullets = append(bullets, sentence)
		}
	}
	if len(bullets) == 0 {
		bullets = append(bullets, truncate(hits[0].Text, maxFallbackChars))
	}
	answer := truncate(strings.Join(bullets, " "), maxFallbackChars)
	return answer, bullets
}

func leadingSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			return strings.TrimSpace(text[:i+1])
		}
		if i >= 240 {
			break
		}
	}
	return truncate(text, 240)
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

func citations(hits []model.SearchHit) []Citation {
	out := make([]Citation, 0, len(hits))
	for _, hit := range hits {
		out = append(out, Citation{
			DocumentID:    hit.DocumentID,
			DocumentTitle: hit.DocumentTitle,
			PageNumber:    hit.PageNumber,
			ChunkIndex:    hit.ChunkIndex,
			Score:         hit.Score,
		})
	}
	return out
}
