// Package dispatch routes structured operation requests from the dialogue
// policy to the job matching engine.
//
// The operation set is a closed enum with an exhaustive switch: adding an
// operation is a compile-time-checked change rather than a silent miss in a
// name-keyed handler map. Names outside the set are an UNKNOWN_OPERATION
// error, not a catch-all reply.
package dispatch

import (
	"context"

	"github.com/connectify-ai/connectify/errors"
	"github.com/connectify-ai/connectify/matching"
)

// Operation enumerates the operations the policy may request.
type Operation int

const (
	// OpGetProfile fetches a stored profile by name.
	OpGetProfile Operation = iota
	// OpRecommendJobs runs a similarity query for the given text.
	OpRecommendJobs
	// OpListJobs lists all stored job listings.
	OpListJobs
	// OpCreateJob ingests a single job listing.
	OpCreateJob
)

// String returns the operation's wire name.
func (o Operation) String() string {
	switch o {
	case OpGetProfile:
		return "get_profile"
	case OpRecommendJobs:
		return "recommend_jobs"
	case OpListJobs:
		return "get_jobs"
	case OpCreateJob:
		return "create_job"
	default:
		return "unknown"
	}
}

// ParseOperation maps a wire name onto the enum.
func ParseOperation(name string) (Operation, error) {
	switch name {
	case "get_profile":
		return OpGetProfile, nil
	case "recommend_jobs":
		return OpRecommendJobs, nil
	case "get_jobs":
		return OpListJobs, nil
	case "create_job":
		return OpCreateJob, nil
	default:
		return 0, errors.Newf(errors.CodeUnknownOperation, "unknown operation %q", name)
	}
}

// Dispatcher executes operations against the matching engine.
type Dispatcher struct {
	engine *matching.Engine
}

// NewDispatcher creates a dispatcher over the given engine.
func NewDispatcher(engine *matching.Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// ExecuteCall parses the wire name and executes the operation.
func (d *Dispatcher) ExecuteCall(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	op, err := ParseOperation(name)
	if err != nil {
		return nil, err
	}
	return d.Execute(ctx, op, args)
}

// Execute runs one operation. The switch is exhaustive over the enum.
func (d *Dispatcher) Execute(ctx context.Context, op Operation, args map[string]interface{}) (interface{}, error) {
	switch op {
	case OpGetProfile:
		name := stringArg(args, "name")
		if name == "" {
			return nil, errors.New(errors.CodeInvalidInput, "get_profile requires a name argument")
		}
		return d.engine.GetProfile(ctx, name)

	case OpRecommendJobs:
		text := stringArg(args, "text")
		if text == "" {
			text = stringArg(args, "conversation")
		}
		if text == "" {
			return nil, errors.New(errors.CodeInvalidInput, "recommend_jobs requires a text argument")
		}
		return d.engine.Recommend(ctx, text, intArg(args, "top_k"))

	case OpListJobs:
		return d.engine.ListJobs(ctx)

	case OpCreateJob:
		title := stringArg(args, "title")
		if title == "" {
			return nil, errors.New(errors.CodeInvalidInput, "create_job requires a title argument")
		}
		if err := d.engine.IngestJob(ctx, title, stringArg(args, "description")); err != nil {
			return nil, err
		}
		return "Job saved successfully", nil

	default:
		return nil, errors.Newf(errors.CodeUnknownOperation, "unhandled operation %d", op)
	}
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
