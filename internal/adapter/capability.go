// Package adapter is the Adapter Registry (C5): it holds every judge
// adapter registered with it at process start, dispatches by URL or
// by declared capability, and enforces the "adapters are process-global
// singletons, configuration is never cached on them" rule from spec §4.3.
package adapter

import "context"

// Capability names one operation group an adapter may declare support for
// (spec §4.3). Callers must not invoke an operation whose capability the
// adapter did not declare — FindAdapterByCapability is how callers find out
// which adapters qualify instead of type-asserting blindly.
type Capability string

const (
	CapFetchProblem   Capability = "FetchProblem"
	CapUploadData     Capability = "UploadData"
	CapSubmitSolution Capability = "SubmitSolution"
	CapManageTraining Capability = "ManageTraining"
	CapJudgeStatus    Capability = "JudgeStatus"
	CapBatchFetch     Capability = "BatchFetch"
	CapProvideSolution Capability = "ProvideSolution"
)

// HealthState is one of the three values HealthCheck may report.
type HealthState string

const (
	HealthReady       HealthState = "ready"
	HealthDegraded    HealthState = "degraded"
	HealthUnhealthy   HealthState = "unhealthy"
	HealthUninitialized HealthState = "uninitialized"
)

// HealthStatus is the shape HealthCheck() returns (spec §4.3).
type HealthStatus struct {
	Healthy bool
	Status  HealthState
	Message string
	Metrics map[string]int64
}

// InitContext is passed to Initialize. It never includes a user id —
// adapters are initialized once at process start, before any user's task
// has run; per-call user scoping happens through the auth/config the
// caller passes into each operation instead (spec §4.3).
type InitContext struct {
	Ctx context.Context
}

// DefaultPriority is used by adapters that don't need to out-rank or
// defer to another adapter claiming the same URL (spec §4.3: "0-100,
// default 50").
const DefaultPriority = 50
