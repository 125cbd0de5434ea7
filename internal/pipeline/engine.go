package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	stderrors "eduforge/internal/common/errors"
	"eduforge/internal/common/metrics"
	"eduforge/internal/models"
)

// Finalizer assembles the caller-facing result from whatever state exists.
// It must succeed on any state, including one with zero candidates.
type Finalizer interface {
	Finalize(state *PipelineState) *models.FinalResult
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// EngineConfig holds the engine's execution budgets.
type EngineConfig struct {
	MaxRetries    int
	GlobalTimeout time.Duration
	// MaxSteps is a hard guard against routing loops. Zero selects a bound
	// derived from the node count and retry budget.
	MaxSteps int
}

// Engine owns one run at a time per call: it initializes state, asks the
// router for decisions, executes nodes, and merges their deltas. Engines
// are safe for concurrent Run calls; all run state is per-call.
type Engine struct {
	nodes      map[string]Node
	router     *Router
	finalizer  Finalizer
	cfg        EngineConfig
	logger     Logger
	errHandler *stderrors.NodeErrorHandler
}

func NewEngine(cfg EngineConfig, router *Router, finalizer Finalizer, logger Logger) *Engine {
	if cfg.GlobalTimeout <= 0 {
		cfg.GlobalTimeout = 30 * time.Second
	}
	if cfg.MaxSteps <= 0 {
		// Linear path plus the bounded generate loop, with headroom.
		cfg.MaxSteps = 8 + 4*(cfg.MaxRetries+1)
	}
	return &Engine{
		nodes:      make(map[string]Node),
		router:     router,
		finalizer:  finalizer,
		cfg:        cfg,
		logger:     logger,
		errHandler: stderrors.NewNodeErrorHandler(logger),
	}
}

// Register adds a node under its own name. Registering twice replaces.
func (e *Engine) Register(node Node) {
	e.nodes[node.Name()] = node
}

// Run executes one full pipeline run. The only error it returns is request
// validation failure; every downstream failure degrades into the result.
func (e *Engine) Run(ctx context.Context, request models.WorkflowRequest) (*models.FinalResult, error) {
	if err := request.Validate(); err != nil {
		return nil, stderrors.NewInvalidRequestError(err.Error())
	}

	started := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.GlobalTimeout)
	defer cancel()

	state := NewState(request)
	e.logger.Info("Pipeline run started", map[string]interface{}{
		"requestId": request.RequestID,
		"topic":     request.Topic,
		"count":     request.Count,
		"timeout":   e.cfg.GlobalTimeout.String(),
	})

	state = e.loop(runCtx, state)

	result := e.finish(state, started)
	e.logger.Info("Pipeline run finished", map[string]interface{}{
		"requestId":  request.RequestID,
		"questions":  len(result.Questions),
		"retryCount": result.RetryCount,
		"degraded":   result.Degraded,
		"elapsedMs":  result.TotalMS,
	})
	return result, nil
}

// loop drives routing decisions until finalization is due or a budget is
// exhausted. It returns the last state; finalization happens outside the
// run context so an expired budget cannot suppress the result.
func (e *Engine) loop(ctx context.Context, state *PipelineState) *PipelineState {
	for step := 0; ; step++ {
		if ctx.Err() != nil {
			state = Merge(state, &StateDelta{
				Degraded: BoolPtr(true),
				Failures: []*stderrors.StandardError{stderrors.NewPipelineTimeoutError(e.cfg.GlobalTimeout)},
			})
			return state
		}
		if step >= e.cfg.MaxSteps {
			e.logger.Error("Routing step guard tripped", map[string]interface{}{
				"requestId": state.Request.RequestID,
				"steps":     step,
			})
			state = Merge(state, &StateDelta{Degraded: BoolPtr(true)})
			return state
		}

		decision := e.router.Decide(state)
		switch decision.Kind {
		case DecisionFinalize:
			return state

		case DecisionProceed:
			if decision.Next == NodeFinalize {
				return state
			}
			state = e.runNode(ctx, decision.Next, state)

		case DecisionRetry:
			metrics.NodeRetries.WithLabelValues(decision.Next).Inc()
			state = Merge(state, &StateDelta{
				RetryCount: IntPtr(state.RetryCount + 1),
				Deficit:    IntPtr(decision.Deficit),
			})
			e.logger.Warn("Retrying node", map[string]interface{}{
				"requestId":  state.Request.RequestID,
				"node":       decision.Next,
				"retryCount": state.RetryCount,
				"deficit":    decision.Deficit,
			})
			state = e.runNode(ctx, decision.Next, state)

		case DecisionProceedParallel:
			state = e.runParallel(ctx, decision.Parallel, state)
		}
	}
}

// runNode executes one node with panic and error containment. Failures are
// recorded on the state; the node still counts as completed so routing can
// move on, with the retry loop or finalizer absorbing the gap.
func (e *Engine) runNode(ctx context.Context, name string, state *PipelineState) *PipelineState {
	node, ok := e.nodes[name]
	if !ok {
		e.logger.Error("Unknown node requested", map[string]interface{}{"node": name})
		return Merge(state, &StateDelta{
			CompletedNodes: []string{name},
			Failures:       []*stderrors.StandardError{stderrors.NewUnknownNodeError(name)},
		})
	}

	started := time.Now()
	delta, err := e.invoke(ctx, node, state)
	elapsed := time.Since(started)

	merged := &StateDelta{
		CompletedNodes: []string{name},
		Timings:        map[string]int64{name: elapsed.Milliseconds()},
	}
	if delta != nil {
		merged.Calibration = delta.Calibration
		merged.RetrievedContext = delta.RetrievedContext
		merged.RetrievalFailed = delta.RetrievalFailed
		merged.Candidates = delta.Candidates
		merged.ReplaceCandidates = delta.ReplaceCandidates
		merged.Validation = delta.Validation
		merged.Enhanced = delta.Enhanced
		merged.Failures = delta.Failures
		merged.Degraded = delta.Degraded
		for n, ms := range delta.Timings {
			merged.Timings[n] = ms
		}
	}

	if err != nil {
		outcome, stdErr := e.errHandler.HandleNodeError(name, err)
		merged.Failures = append(merged.Failures, stdErr)
		if outcome == stderrors.OutcomeDegrade {
			merged.Degraded = BoolPtr(true)
		}
		metrics.NodeRunsFailed.WithLabelValues(name, string(stdErr.Code)).Inc()
	} else {
		metrics.NodeRunsCompleted.WithLabelValues(name).Inc()
	}
	metrics.NodeDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	return Merge(state, merged)
}

// runParallel forks the given nodes over independent snapshots of the same
// state and joins them before routing continues. Deltas merge in node-name
// order so the outcome does not depend on completion order.
func (e *Engine) runParallel(ctx context.Context, names []string, state *PipelineState) *PipelineState {
	type branchResult struct {
		name    string
		delta   *StateDelta
		err     error
		elapsed time.Duration
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	results := make([]branchResult, len(sorted))
	var wg sync.WaitGroup
	for i, name := range sorted {
		node, ok := e.nodes[name]
		if !ok {
			results[i] = branchResult{name: name, err: stderrors.NewUnknownNodeError(name)}
			continue
		}
		wg.Add(1)
		go func(i int, name string, node Node, snapshot *PipelineState) {
			defer wg.Done()
			started := time.Now()
			delta, err := e.invoke(ctx, node, snapshot)
			results[i] = branchResult{name: name, delta: delta, err: err, elapsed: time.Since(started)}
		}(i, name, node, state.Clone())
	}
	wg.Wait()

	for _, res := range results {
		merged := &StateDelta{
			CompletedNodes: []string{res.name},
			Timings:        map[string]int64{res.name: res.elapsed.Milliseconds()},
		}
		if res.delta != nil {
			merged.Validation = res.delta.Validation
			merged.Enhanced = res.delta.Enhanced
			merged.Candidates = res.delta.Candidates
			merged.ReplaceCandidates = res.delta.ReplaceCandidates
			merged.Failures = res.delta.Failures
		}
		if res.err != nil {
			outcome, stdErr := e.errHandler.HandleNodeError(res.name, res.err)
			merged.Failures = append(merged.Failures, stdErr)
			if outcome == stderrors.OutcomeDegrade {
				merged.Degraded = BoolPtr(true)
			}
			metrics.NodeRunsFailed.WithLabelValues(res.name, string(stdErr.Code)).Inc()
		} else {
			metrics.NodeRunsCompleted.WithLabelValues(res.name).Inc()
		}
		metrics.NodeDuration.WithLabelValues(res.name).Observe(res.elapsed.Seconds())
		state = Merge(state, merged)
	}
	return state
}

// invoke calls a node with panic recovery at the engine boundary.
func (e *Engine) invoke(ctx context.Context, node Node, state *PipelineState) (delta *StateDelta, err error) {
	defer func() {
		if r := recover(); r != nil {
			delta = nil
			err = stderrors.NewNodePanicError(node.Name(), r)
		}
	}()
	return node.Run(ctx, state)
}

// finish runs the finalizer on whatever state exists and stamps run-level
// metrics. The finalizer never fails and always returns a full result.
func (e *Engine) finish(state *PipelineState, started time.Time) *models.FinalResult {
	finalStart := time.Now()
	result := e.finalizer.Finalize(state)
	result.TimingsMS[NodeFinalize] = time.Since(finalStart).Milliseconds()
	result.TotalMS = time.Since(started).Milliseconds()

	status := "ok"
	if result.Degraded {
		status = "degraded"
		metrics.PipelineRunsDegraded.Inc()
	}
	metrics.PipelineRunsCompleted.WithLabelValues(status).Inc()

	generated, fallback := 0, 0
	for i := range result.Questions {
		if result.Questions[i].HasTag(models.TagFallbackGenerated) {
			fallback++
		} else {
			generated++
		}
	}
	if generated > 0 {
		metrics.QuestionsReturned.WithLabelValues("generated").Observe(float64(generated))
	}
	if fallback > 0 {
		metrics.QuestionsReturned.WithLabelValues("fallback").Observe(float64(fallback))
	}
	return result
}

// DescribeNodes lists the registered node names, for startup logs.
func (e *Engine) DescribeNodes() []string {
	names := make([]string, 0, len(e.nodes))
	for name := range e.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
