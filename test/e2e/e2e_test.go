// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduforge/internal/common/errors"
	"eduforge/internal/common/logger"
	"eduforge/internal/models"
	"eduforge/internal/nodes/calibrate"
	"eduforge/internal/nodes/enhance"
	"eduforge/internal/nodes/finalize"
	"eduforge/internal/nodes/generate"
	"eduforge/internal/nodes/retrieve"
	"eduforge/internal/nodes/validate"
	"eduforge/internal/pipeline"

	"github.com/elastic/go-elasticsearch/v8"
)

// Logger adapters to bridge logger.Logger to node-specific Logger interfaces
type calibrateLoggerAdapter struct {
	logger.Logger
}

func (a *calibrateLoggerAdapter) WithFields(fields map[string]interface{}) calibrate.Logger {
	return &calibrateLoggerAdapter{a.Logger.WithFields(fields)}
}

type retrieveLoggerAdapter struct {
	logger.Logger
}

func (a *retrieveLoggerAdapter) WithFields(fields map[string]interface{}) retrieve.Logger {
	return &retrieveLoggerAdapter{a.Logger.WithFields(fields)}
}

type generateLoggerAdapter struct {
	logger.Logger
}

func (a *generateLoggerAdapter) WithFields(fields map[string]interface{}) generate.Logger {
	return &generateLoggerAdapter{a.Logger.WithFields(fields)}
}

type validateLoggerAdapter struct {
	logger.Logger
}

func (a *validateLoggerAdapter) WithFields(fields map[string]interface{}) validate.Logger {
	return &validateLoggerAdapter{a.Logger.WithFields(fields)}
}

type enhanceLoggerAdapter struct {
	logger.Logger
}

func (a *enhanceLoggerAdapter) WithFields(fields map[string]interface{}) enhance.Logger {
	return &enhanceLoggerAdapter{a.Logger.WithFields(fields)}
}

type finalizeLoggerAdapter struct {
	logger.Logger
}

func (a *finalizeLoggerAdapter) WithFields(fields map[string]interface{}) finalize.Logger {
	return &finalizeLoggerAdapter{a.Logger.WithFields(fields)}
}

// ==========================
// Collaborator Stubs
// ==========================

// genAIStub plays the generation collaborator. Each call pops the next
// scripted completion; past the script it repeats the last one.
type genAIStub struct {
	t       *testing.T
	scripts []genAIScript
	calls   int32
}

type genAIScript struct {
	status int
	text   string
	hang   bool
}

func (s *genAIStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call := int(atomic.AddInt32(&s.calls, 1)) - 1
		if call >= len(s.scripts) {
			call = len(s.scripts) - 1
		}
		script := s.scripts[call]

		if script.hang {
			select {
			case <-r.Context().Done():
			case <-time.After(30 * time.Second):
			}
			return
		}
		if script.status != 0 && script.status != http.StatusOK {
			w.WriteHeader(script.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"text": script.text, "confidence": 0.9})
	}
}

func questionJSON(text, answer string) map[string]interface{} {
	return map[string]interface{}{
		"questionText":  text,
		"questionType":  "multiple_choice",
		"options":       []string{answer, "91", "92", "93"},
		"correctAnswer": answer,
		"explanation":   "Work the operation out step by step.",
	}
}

func inconsistentQuestionJSON(text string) map[string]interface{} {
	q := questionJSON(text, "10")
	q["correctAnswer"] = "999"
	return q
}

func completionText(questions ...map[string]interface{}) string {
	raw, _ := json.Marshal(questions)
	return string(raw)
}

func newSearchStub(t *testing.T, healthy bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"cluster unavailable"}`))
			return
		}
		payload := map[string]interface{}{
			"hits": map[string]interface{}{
				"max_score": 2.0,
				"hits": []map[string]interface{}{
					{"_score": 2.0, "_source": map[string]interface{}{"text": "Addition combines two quantities into a total.", "source": "grade3-unit1"}},
					{"_score": 1.0, "_source": map[string]interface{}{"text": "Carrying moves a ten into the next column.", "source": "grade3-unit2"}},
				},
			},
		}
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ==========================
// Pipeline Assembly
// ==========================

type testEnv struct {
	engine *pipeline.Engine
	genAI  *genAIStub
}

func buildPipeline(t *testing.T, genAI *genAIStub, esURL string, globalTimeout time.Duration) *testEnv {
	t.Helper()
	log := logger.NewTestLogger(t)

	genSrv := httptest.NewServer(genAI.handler())
	t.Cleanup(genSrv.Close)

	esClient, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{esURL}})
	require.NoError(t, err)

	maxRetries := 2
	genConfig := generate.LoadConfig()
	genConfig.GenAIBaseURL = genSrv.URL
	genConfig.Timeout = 5 * time.Second
	genConfig.MaxRetries = 0
	genConfig.RouterRetries = maxRetries

	retrieveConfig := retrieve.LoadConfig()
	retrieveConfig.Timeout = 2 * time.Second

	finalizer := finalize.NewHandler(finalize.LoadConfig(), &finalizeLoggerAdapter{log})
	engine := pipeline.NewEngine(
		pipeline.EngineConfig{MaxRetries: maxRetries, GlobalTimeout: globalTimeout},
		pipeline.NewRouter(maxRetries),
		finalizer,
		log,
	)
	engine.Register(calibrate.NewNode(calibrate.NewHandler(calibrate.LoadConfig(), &calibrateLoggerAdapter{log})))
	engine.Register(retrieve.NewNode(retrieve.NewHandler(retrieveConfig, esClient, nil, nil, &retrieveLoggerAdapter{log})))
	engine.Register(generate.NewNode(generate.NewHandler(genConfig, &generateLoggerAdapter{log})))
	engine.Register(validate.NewNode(validate.NewHandler(validate.LoadConfig(), &validateLoggerAdapter{log})))
	engine.Register(enhance.NewNode(enhance.NewHandler(enhance.LoadConfig(), &enhanceLoggerAdapter{log})))

	return &testEnv{engine: engine, genAI: genAI}
}

func questionRequest(count int) models.WorkflowRequest {
	return models.WorkflowRequest{
		RequestID:  "e2e-req",
		Subject:    "math",
		Topic:      "Addition",
		Grade:      3,
		Difficulty: models.DifficultyMedium,
		Count:      count,
		Persona: models.Persona{
			LearningStyle: "visual",
			Interests:     []string{"dinosaurs", "soccer"},
		},
	}
}

// ==========================
// End-to-End Scenarios
// ==========================

func TestE2E_HappyPath(t *testing.T) {
	genAI := &genAIStub{t: t, scripts: []genAIScript{
		{text: completionText(
			questionJSON("What is 3 + 7?", "10"),
			questionJSON("What is 14 - 4?", "10"),
			questionJSON("What is 5 + 5?", "10"),
		)},
	}}
	env := buildPipeline(t, genAI, newSearchStub(t, true).URL, 20*time.Second)

	result, err := env.engine.Run(context.Background(), questionRequest(3))

	require.NoError(t, err)
	require.Len(t, result.Questions, 3)
	assert.Equal(t, 0, result.RetryCount)
	assert.False(t, result.Degraded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&genAI.calls))

	for _, q := range result.Questions {
		assert.True(t, q.AnswerInOptions())
		assert.True(t, q.HasTag(models.TagVectorContextUsed))
		assert.True(t, q.HasTag(models.TagPersonalized))
		assert.Greater(t, q.EngagementScore, 0.5)
	}

	report := result.Report
	assert.True(t, report.Checks["mathematical_correctness"])
	assert.True(t, report.Checks["context_grounded"])
	assert.True(t, report.Checks["personalized"])
	assert.True(t, report.Checks["full_count_produced"])
	assert.Greater(t, report.ConfidenceScore, 0.7)

	for _, node := range []string{"calibrate", "retrieve", "generate", "validate", "enhance", "finalize"} {
		assert.Contains(t, result.TimingsMS, node)
	}
}

func TestE2E_RetryRecoversFromInconsistentCandidates(t *testing.T) {
	genAI := &genAIStub{t: t, scripts: []genAIScript{
		// One usable candidate and two whose answer is not among their
		// options.
		{text: completionText(
			questionJSON("What is 3 + 7?", "10"),
			inconsistentQuestionJSON("What is 4 + 6?"),
			inconsistentQuestionJSON("What is 5 + 5?"),
		)},
		// The retry fills the deficit.
		{text: completionText(
			questionJSON("What is 6 + 4?", "10"),
			questionJSON("What is 12 - 2?", "10"),
		)},
	}}
	env := buildPipeline(t, genAI, newSearchStub(t, true).URL, 20*time.Second)

	result, err := env.engine.Run(context.Background(), questionRequest(3))

	require.NoError(t, err)
	require.Len(t, result.Questions, 3)
	assert.Equal(t, 1, result.RetryCount)
	assert.False(t, result.Degraded)
	assert.Equal(t, int32(2), atomic.LoadInt32(&genAI.calls))
	for _, q := range result.Questions {
		assert.True(t, q.AnswerInOptions(), "inconsistent candidates never reach the result")
		assert.False(t, q.HasTag(models.TagFallbackGenerated))
	}
}

func TestE2E_SearchOutageDegradesGracefully(t *testing.T) {
	genAI := &genAIStub{t: t, scripts: []genAIScript{
		{text: completionText(
			questionJSON("What is 3 + 7?", "10"),
			questionJSON("What is 14 - 4?", "10"),
			questionJSON("What is 5 + 5?", "10"),
		)},
	}}
	env := buildPipeline(t, genAI, newSearchStub(t, false).URL, 20*time.Second)

	result, err := env.engine.Run(context.Background(), questionRequest(3))

	require.NoError(t, err)
	require.Len(t, result.Questions, 3)
	assert.False(t, result.Degraded, "a missing context source is absorbed, not degraded")
	assert.False(t, result.Report.Checks["context_grounded"])

	found := false
	for _, issue := range result.Report.Issues {
		if issue == "context retrieval failed, questions generated without reference material" {
			found = true
		}
	}
	assert.True(t, found, "issues: %v", result.Report.Issues)

	for _, q := range result.Questions {
		assert.True(t, q.HasTag(models.TagNoContext) || q.HasTag(models.TagPersonalized))
		assert.False(t, q.HasTag(models.TagVectorContextUsed))
	}
}

func TestE2E_CollaboratorOutageEndsInFallback(t *testing.T) {
	genAI := &genAIStub{t: t, scripts: []genAIScript{
		{status: http.StatusServiceUnavailable},
	}}
	env := buildPipeline(t, genAI, newSearchStub(t, true).URL, 20*time.Second)

	result, err := env.engine.Run(context.Background(), questionRequest(3))

	require.NoError(t, err, "the caller still gets a result")
	require.Len(t, result.Questions, 3)
	assert.Equal(t, 2, result.RetryCount, "the retry budget is spent before falling back")
	assert.False(t, result.Degraded)
	for _, q := range result.Questions {
		assert.True(t, q.HasTag(models.TagFallbackGenerated))
		assert.True(t, q.AnswerInOptions())
	}
	assert.LessOrEqual(t, result.Report.ConfidenceScore, 1.0)
}

func TestE2E_GlobalTimeoutDegrades(t *testing.T) {
	genAI := &genAIStub{t: t, scripts: []genAIScript{
		{hang: true},
	}}
	env := buildPipeline(t, genAI, newSearchStub(t, true).URL, 500*time.Millisecond)

	started := time.Now()
	result, err := env.engine.Run(context.Background(), questionRequest(3))
	elapsed := time.Since(started)

	require.NoError(t, err)
	require.Len(t, result.Questions, 3, "timeout still returns the full count")
	assert.True(t, result.Degraded)
	assert.Less(t, elapsed, 10*time.Second, "the wall-clock budget is honored")
	for _, q := range result.Questions {
		assert.True(t, q.HasTag(models.TagFallbackGenerated))
	}
}

func TestE2E_InvalidRequestIsRejected(t *testing.T) {
	genAI := &genAIStub{t: t, scripts: []genAIScript{{text: "unused"}}}
	env := buildPipeline(t, genAI, newSearchStub(t, true).URL, 20*time.Second)

	tests := []struct {
		name   string
		mutate func(r *models.WorkflowRequest)
	}{
		{name: "missing subject", mutate: func(r *models.WorkflowRequest) { r.Subject = "" }},
		{name: "missing topic", mutate: func(r *models.WorkflowRequest) { r.Topic = "" }},
		{name: "grade out of range", mutate: func(r *models.WorkflowRequest) { r.Grade = 13 }},
		{name: "zero count", mutate: func(r *models.WorkflowRequest) { r.Count = 0 }},
		{name: "count too large", mutate: func(r *models.WorkflowRequest) { r.Count = 21 }},
		{name: "bad difficulty", mutate: func(r *models.WorkflowRequest) { r.Difficulty = "impossible" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := questionRequest(3)
			tt.mutate(&request)

			result, runErr := env.engine.Run(context.Background(), request)

			require.Error(t, runErr)
			assert.Nil(t, result)
			stdErr, ok := runErr.(*errors.StandardError)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeInvalidRequest, stdErr.Code)
			assert.Equal(t, int32(0), atomic.LoadInt32(&genAI.calls), "no node runs for a rejected request")
		})
	}
}

func TestE2E_PersonalizationIsOptional(t *testing.T) {
	genAI := &genAIStub{t: t, scripts: []genAIScript{
		{text: completionText(
			questionJSON("What is 3 + 7?", "10"),
			questionJSON("What is 14 - 4?", "10"),
		)},
	}}
	env := buildPipeline(t, genAI, newSearchStub(t, true).URL, 20*time.Second)

	request := questionRequest(2)
	request.Persona = models.Persona{}
	result, err := env.engine.Run(context.Background(), request)

	require.NoError(t, err)
	require.Len(t, result.Questions, 2)
	for _, q := range result.Questions {
		assert.False(t, q.HasTag(models.TagPersonalized))
		assert.Contains(t, q.QuestionText, "What is")
	}
	assert.True(t, result.Report.Checks["personalized"], "base engagement still counts as an enhancement pass")
}
