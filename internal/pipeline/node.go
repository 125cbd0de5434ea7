package pipeline

import (
	"context"
)

// Node names used by the router and the timing/metrics breakdown.
const (
	NodeCalibrate = "calibrate"
	NodeRetrieve  = "retrieve"
	NodeGenerate  = "generate"
	NodeValidate  = "validate"
	NodeEnhance   = "enhance"
	NodeFinalize  = "finalize"
)

// Node is one pipeline stage. Run receives a read-only state snapshot and
// returns a partial result for the engine to merge. A node must not retain
// the snapshot past its return.
type Node interface {
	Name() string
	Run(ctx context.Context, state *PipelineState) (*StateDelta, error)
}

// NodeFunc adapts a function to the Node interface, mainly for tests.
type NodeFunc struct {
	NodeName string
	Fn       func(ctx context.Context, state *PipelineState) (*StateDelta, error)
}

func (n NodeFunc) Name() string { return n.NodeName }

func (n NodeFunc) Run(ctx context.Context, state *PipelineState) (*StateDelta, error) {
	return n.Fn(ctx, state)
}
