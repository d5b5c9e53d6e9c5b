package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	stageKey     contextKey = "stage"
	projectKey   contextKey = "project"
	requestIDKey contextKey = "request_id"
)

type projectRef struct {
	user    string
	project string
}

// WithJobID annotates context with the job identifier (the job script pid).
func WithJobID(ctx context.Context, id int) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (int, bool) {
	if v, ok := ctx.Value(jobIDKey).(int); ok {
		return v, true
	}
	return 0, false
}

// WithStage annotates context with the pipeline stage id.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage id if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithProject annotates context with the user and project a job belongs to.
func WithProject(ctx context.Context, user, project string) context.Context {
	if user == "" && project == "" {
		return ctx
	}
	return context.WithValue(ctx, projectKey, projectRef{user: user, project: project})
}

// ProjectFromContext returns the user and project if present.
func ProjectFromContext(ctx context.Context) (string, string, bool) {
	if v, ok := ctx.Value(projectKey).(projectRef); ok {
		return v.user, v.project, true
	}
	return "", "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
