// Package policy decides who may do what. Decisions are made from the
// actor's role and their relationship to the job, never from transport
// details.
package policy

import (
	"fmt"

	"gighub/internal/domain"
)

// Actor identifies the authenticated caller.
type Actor struct {
	ID   string
	Role string
}

// ForbiddenError describes a denied action.
type ForbiddenError struct {
	Action string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// RequireRole denies actors whose role is not in roles.
func RequireRole(actor Actor, roles ...string) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return ForbiddenError{Action: "requires role " + joinRoles(roles)}
}

// RequireClientOwner denies everyone but the client who posted the job.
func RequireClientOwner(actor Actor, job domain.Job) error {
	if actor.Role == domain.RoleClient && actor.ID == job.ClientID {
		return nil
	}
	return ForbiddenError{Action: "only the job's client may do this"}
}

// RequireAssignedFreelancer denies everyone but the freelancer the job is
// assigned to.
func RequireAssignedFreelancer(actor Actor, job domain.Job) error {
	if actor.Role == domain.RoleFreelancer && job.FreelancerID != nil && actor.ID == *job.FreelancerID {
		return nil
	}
	return ForbiddenError{Action: "only the assigned freelancer may do this"}
}

// RequireJobAccess covers reads: the owning client, the assigned
// freelancer, and admins may see a job.
func RequireJobAccess(actor Actor, job domain.Job) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if RequireClientOwner(actor, job) == nil {
		return nil
	}
	if RequireAssignedFreelancer(actor, job) == nil {
		return nil
	}
	return ForbiddenError{Action: "no access to this job"}
}

func joinRoles(roles []string) string {
	out := ""
	for i, r := range roles {
		if i > 0 {
			out += " or "
		}
		out += r
	}
	return out
}
