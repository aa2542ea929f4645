package workflows

import (
	"context"

	"github.com/tendant/simple-thumbnail-pipeline/pkg/pipeline"
	"go.uber.org/zap"
)

// WorkflowContext contains context for workflow execution
type WorkflowContext struct {
	Ctx     context.Context
	Request pipeline.ProcessRequest
	RunID   string
	Logger  *zap.Logger
}

// WorkflowResult contains the result of workflow execution
type WorkflowResult struct {
	Success bool
	Error   error
	File    pipeline.FileResult
}

// Workflow defines the interface for processing one unit of work
type Workflow interface {
	// Execute runs the workflow
	Execute(wctx *WorkflowContext) (*WorkflowResult, error)

	// Name returns the workflow name
	Name() string
}

func (wctx *WorkflowContext) logger() *zap.Logger {
	if wctx.Logger == nil {
		return zap.NewNop()
	}
	return wctx.Logger
}
