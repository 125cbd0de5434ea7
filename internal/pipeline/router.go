package pipeline

// DecisionKind enumerates the router's verdict variants.
type DecisionKind string

const (
	DecisionProceed         DecisionKind = "proceed"
	DecisionProceedParallel DecisionKind = "proceed_parallel"
	DecisionRetry           DecisionKind = "retry"
	DecisionFinalize        DecisionKind = "finalize"
)

// RoutingDecision is the router's verdict for the next step. It is consumed
// by the engine immediately and never stored.
type RoutingDecision struct {
	Kind     DecisionKind
	Next     string
	Parallel []string
	// Deficit is how many candidates a retry round should request.
	Deficit int
}

func Proceed(next string) RoutingDecision {
	return RoutingDecision{Kind: DecisionProceed, Next: next}
}

func ProceedParallel(nodes ...string) RoutingDecision {
	return RoutingDecision{Kind: DecisionProceedParallel, Parallel: nodes}
}

func Retry(target string, deficit int) RoutingDecision {
	return RoutingDecision{Kind: DecisionRetry, Next: target, Deficit: deficit}
}

func Finalize() RoutingDecision {
	return RoutingDecision{Kind: DecisionFinalize}
}

// Router selects the next node by inspecting the pipeline state. The linear
// path is calibrate, retrieve, generate, then validate and enhance in
// parallel, then finalize. The only loop edge goes back to generate, and it
// is bounded by MaxRetries.
type Router struct {
	maxRetries int
}

func NewRouter(maxRetries int) *Router {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Router{maxRetries: maxRetries}
}

// MaxRetries returns the retry bound the router enforces.
func (r *Router) MaxRetries() int { return r.maxRetries }

// Decide returns the next routing decision for the given state.
func (r *Router) Decide(state *PipelineState) RoutingDecision {
	if state.HasCompleted(NodeFinalize) {
		return Finalize()
	}

	switch state.LastCompleted() {
	case "":
		return Proceed(NodeCalibrate)
	case NodeCalibrate:
		return Proceed(NodeRetrieve)
	case NodeRetrieve:
		return Proceed(NodeGenerate)
	case NodeGenerate:
		return r.afterGenerate(state)
	case NodeValidate, NodeEnhance:
		return r.afterParallelJoin(state)
	default:
		return Finalize()
	}
}

// afterGenerate retries generation while the candidate set is short of the
// requested count and the retry budget allows it.
func (r *Router) afterGenerate(state *PipelineState) RoutingDecision {
	usable := 0
	for i := range state.Candidates {
		if state.Candidates[i].AnswerInOptions() {
			usable++
		}
	}
	want := state.Request.Count
	if usable < want && state.RetryCount < r.maxRetries {
		return Retry(NodeGenerate, want-usable)
	}
	return ProceedParallel(NodeValidate, NodeEnhance)
}

// afterParallelJoin proceeds to finalization once enough candidates were
// accepted or the retry budget is spent; otherwise it re-enters generation
// for the deficit only.
func (r *Router) afterParallelJoin(state *PipelineState) RoutingDecision {
	if !state.HasCompleted(NodeValidate) || !state.HasCompleted(NodeEnhance) {
		// One branch of the fork finished alone. The engine joins both
		// before asking again, so this only shows up in isolation tests.
		return ProceedParallel(NodeValidate, NodeEnhance)
	}

	accepted := state.AcceptedCount()
	if accepted >= state.Request.Count || state.RetryCount >= r.maxRetries {
		return Proceed(NodeFinalize)
	}
	return Retry(NodeGenerate, state.Request.Count-accepted)
}
