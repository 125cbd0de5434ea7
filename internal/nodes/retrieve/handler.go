// internal/nodes/retrieve/handler.go
package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"

	stderrors "eduforge/internal/common/errors"
	"eduforge/internal/models"
	"eduforge/internal/pipeline"
)

const (
	NodeName = "retrieve"
)

// Logger interface definition
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// TopicResolver canonicalizes a raw topic before it becomes a search query.
// The curriculum store implements it; a nil resolver means pass-through.
type TopicResolver interface {
	Resolve(ctx context.Context, subject, topic string, grade int) (string, []string)
}

// Handler queries the curriculum index for reference snippets, with a
// short-lived cache in front of it. Collaborator failures degrade to an
// empty snippet list; downstream nodes tolerate zero context.
type Handler struct {
	config   *Config
	es       *elasticsearch.Client
	cache    *redis.Client
	resolver TopicResolver
	logger   Logger
}

func NewHandler(config *Config, es *elasticsearch.Client, cache *redis.Client, resolver TopicResolver, log Logger) *Handler {
	return &Handler{
		config:   config,
		es:       es,
		cache:    cache,
		resolver: resolver,
		logger:   log.WithFields(map[string]interface{}{"node": NodeName}),
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	cacheKey := fmt.Sprintf("ctx:%s:%s:%d", strings.ToLower(input.Subject), strings.ToLower(input.Topic), input.Grade)

	if snippets, ok := h.fromCache(ctx, cacheKey); ok {
		return &Output{Snippets: snippets, FromCache: true}, nil
	}

	queryText, keywords := input.Topic, []string(nil)
	if h.resolver != nil {
		queryText, keywords = h.resolver.Resolve(ctx, input.Subject, input.Topic, input.Grade)
	}

	searchCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	snippets, searchErr := h.search(searchCtx, input, queryText, keywords)
	if searchErr != nil {
		// Soft failure: the pipeline continues without context. The failure
		// still rides along so the run record shows what went missing.
		h.logger.Warn("search failed, continuing with empty context", map[string]interface{}{
			"topic":     input.Topic,
			"errorCode": string(searchErr.Code),
			"error":     searchErr.Details,
		})
		return &Output{Snippets: nil, SoftFailed: true, Failure: searchErr}, nil
	}

	h.toCache(ctx, cacheKey, snippets)
	return &Output{Snippets: snippets}, nil
}

func (h *Handler) search(ctx context.Context, input *Input, queryText string, keywords []string) ([]models.ContextSnippet, *stderrors.StandardError) {
	queryBody := buildCurriculumQuery(input, queryText, keywords)
	body, _ := json.Marshal(queryBody)

	size := h.config.TopK
	req := esapi.SearchRequest{
		Index: []string{h.config.Index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, h.es)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, stderrors.NewSearchTimeoutError()
		}
		return nil, stderrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, stderrors.NewSearchQueryFailedError(fmt.Errorf("status %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, stderrors.NewSearchQueryFailedError(fmt.Errorf("decode error: %w", err))
	}

	maxScore := parsed.Hits.MaxScore
	if maxScore <= 0 {
		maxScore = 1
	}

	snippets := make([]models.ContextSnippet, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		if strings.TrimSpace(hit.Source.Text) == "" {
			continue
		}
		snippets = append(snippets, models.ContextSnippet{
			Text:           hit.Source.Text,
			Source:         hit.Source.Source,
			RelevanceScore: clamp01(hit.Score / maxScore),
		})
		if len(snippets) >= h.config.TopK {
			break
		}
	}

	h.logger.Info("context retrieved", map[string]interface{}{
		"topic":    input.Topic,
		"snippets": len(snippets),
	})
	return snippets, nil
}

func buildCurriculumQuery(input *Input, queryText string, keywords []string) map[string]interface{} {
	mustClauses := []interface{}{
		map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  queryText,
				"fields": []string{"topic^3", "text^2", "keywords"},
				"type":   "best_fields",
			},
		},
	}
	for _, kw := range keywords {
		mustClauses = append(mustClauses, map[string]interface{}{
			"match": map[string]interface{}{"keywords": kw},
		})
	}

	filterClauses := []interface{}{
		map[string]interface{}{
			"term": map[string]interface{}{"subject": strings.ToLower(input.Subject)},
		},
		map[string]interface{}{
			"range": map[string]interface{}{
				"grade": map[string]interface{}{
					"gte": input.Grade - 1,
					"lte": input.Grade + 1,
				},
			},
		},
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   mustClauses,
				"filter": filterClauses,
			},
		},
	}
}

func (h *Handler) fromCache(ctx context.Context, key string) ([]models.ContextSnippet, bool) {
	if h.cache == nil {
		return nil, false
	}
	raw, err := h.cache.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var snippets []models.ContextSnippet
	if err := json.Unmarshal([]byte(raw), &snippets); err != nil {
		return nil, false
	}
	h.logger.Debug("context cache hit", map[string]interface{}{"key": key})
	return snippets, true
}

func (h *Handler) toCache(ctx context.Context, key string, snippets []models.ContextSnippet) {
	if h.cache == nil || len(snippets) == 0 {
		return
	}
	raw, err := json.Marshal(snippets)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, key, raw, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("context cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Node adapts the handler to the pipeline engine.
type Node struct {
	handler *Handler
}

func NewNode(handler *Handler) *Node {
	return &Node{handler: handler}
}

func (n *Node) Name() string { return NodeName }

func (n *Node) Run(ctx context.Context, state *pipeline.PipelineState) (*pipeline.StateDelta, error) {
	output, err := n.handler.execute(ctx, &Input{
		Subject: state.Request.Subject,
		Topic:   state.Request.Topic,
		Grade:   state.Request.Grade,
	})
	if err != nil {
		return nil, err
	}
	delta := &pipeline.StateDelta{
		RetrievedContext: output.Snippets,
		RetrievalFailed:  pipeline.BoolPtr(output.SoftFailed),
	}
	if output.Failure != nil {
		delta.Failures = []*stderrors.StandardError{output.Failure}
	}
	return delta, nil
}
