// Package container contains the pure status rules for container jobs.
// Guards are pure functions that evaluate preconditions without side effects.
package container

import (
	"fmt"

	"github.com/vbonduro/containerlog/internal/domain"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrTransitionNotAllowed, r.Reason)
}

// TransitionContext provides context for start/finish guards.
type TransitionContext struct {
	ContainerNumber string
	Status          domain.Status // empty is treated as NotStarted
}

// CanStart evaluates whether work on a container can start.
// Rules:
// - Status must be NotStarted (or absent)
func CanStart(ctx TransitionContext) GuardResult {
	status := ctx.Status
	if status == "" {
		status = domain.StatusNotStarted
	}
	if status != domain.StatusNotStarted {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only start containers that are not started (container %s is %s)", ctx.ContainerNumber, status),
		}
	}

	return GuardResult{Allowed: true}
}

// CanFinish evaluates whether work on a container can finish.
// Rules:
// - Status must be InProgress
func CanFinish(ctx TransitionContext) GuardResult {
	if ctx.Status != domain.StatusInProgress {
		status := ctx.Status
		if status == "" {
			status = domain.StatusNotStarted
		}
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only finish containers in progress (container %s is %s)", ctx.ContainerNumber, status),
		}
	}

	return GuardResult{Allowed: true}
}

// ForRecord builds the guard context for r.
func ForRecord(r *domain.ContainerRecord) TransitionContext {
	return TransitionContext{ContainerNumber: r.ContainerNumber, Status: r.Status}
}
