package pbft

import "errors"

var (
	// ErrInvalidInput is returned when a request names no known replica or carries no record
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoReplicas is returned when an engine is built without replicas
	ErrNoReplicas = errors.New("at least one replica is required")

	// ErrDuplicateReplica is returned when a replica name is registered twice
	ErrDuplicateReplica = errors.New("duplicate replica")

	// ErrUnknownReplica is returned when a replica name is not registered
	ErrUnknownReplica = errors.New("unknown replica")

	// ErrNotPrimary is returned when a non-primary receives a request and primaries are enforced
	ErrNotPrimary = errors.New("node is not the primary for the current view")

	// ErrNotNextPrimary is returned when a view change is initiated by anyone but the next primary
	ErrNotNextPrimary = errors.New("only next primary can initiate view change")

	// ErrStaleView is returned when a view change does not advance the view
	ErrStaleView = errors.New("new view must be greater than the current view")

	// ErrReplicaFaulty is returned when a silent replica is asked to act
	ErrReplicaFaulty = errors.New("replica is faulty")
)
