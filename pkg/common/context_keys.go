package common

type contextKey string

const (
	TraceIdKey        contextKey = "trace_id"
	ClientIdentityKey contextKey = "client_identity"
)
