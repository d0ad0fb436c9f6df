package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gighub/internal/domain"
	"gighub/internal/engine/policy"
	"gighub/internal/events"
	"gighub/internal/lifecycle"
	"gighub/internal/repo"
)

type CreateJobInput struct {
	Title       string
	Description string
	Category    string
	PriceMinor  int64
}

// CreateJob posts a new job for the calling client. Jobs start pending
// and become visible to freelancers only after admin approval and a
// verified deposit.
func (e Engine) CreateJob(ctx context.Context, actor policy.Actor, in CreateJobInput) (domain.Job, error) {
	if err := policy.RequireRole(actor, domain.RoleClient); err != nil {
		return domain.Job{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if in.Title == "" {
		return domain.Job{}, ValidationError{Msg: "title is required"}
	}
	if in.Description == "" {
		return domain.Job{}, ValidationError{Msg: "description is required"}
	}
	if in.Category == "" {
		return domain.Job{}, ValidationError{Msg: "category is required"}
	}
	if in.PriceMinor <= 0 {
		return domain.Job{}, ValidationError{Msg: "price must be positive"}
	}

	now := e.now()
	j := domain.Job{
		ID:            uuid.NewString(),
		ClientID:      actor.ID,
		Title:         in.Title,
		Description:   in.Description,
		Category:      in.Category,
		PriceMinor:    in.PriceMinor,
		Status:        string(lifecycle.StatusPending),
		PaymentStatus: domain.PaymentStatusNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.CreateJobTx(ctx, tx, j); err != nil {
		return domain.Job{}, fmt.Errorf("create job: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "job.created", "job", j.ID, actor.ID, events.EventPayload{"title": j.Title}); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

// ApproveJob moves a pending job to approved. Admin only.
func (e Engine) ApproveJob(ctx context.Context, actor policy.Actor, jobID string) (domain.Job, error) {
	if err := policy.RequireRole(actor, domain.RoleAdmin); err != nil {
		return domain.Job{}, err
	}
	return e.applyJobEvent(ctx, actor, jobID, lifecycle.EventApproveJob, "job.approved", nil)
}

// ApproveWork records the client's acceptance of the submitted work.
func (e Engine) ApproveWork(ctx context.Context, actor policy.Actor, jobID string) (domain.Job, error) {
	return e.applyJobEvent(ctx, actor, jobID, lifecycle.EventApproveWork, "job.approved_by_client", func(j domain.Job) error {
		return policy.RequireClientOwner(actor, j)
	})
}

// applyJobEvent loads the job, runs the guard, fires ev through the
// lifecycle table and persists the result.
func (e Engine) applyJobEvent(ctx context.Context, actor policy.Actor, jobID string, ev lifecycle.Event, evtType string, guard func(domain.Job) error) (domain.Job, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	j, err := e.Repo.GetJobTx(ctx, tx, jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	if guard != nil {
		if err := guard(j); err != nil {
			return domain.Job{}, err
		}
	}
	next, err := lifecycle.Next(lifecycle.Status(j.Status), ev)
	if err != nil {
		return domain.Job{}, err
	}
	j.Status = string(next)
	j.UpdatedAt = e.now()
	if err := e.Repo.UpdateJobTx(ctx, tx, j); err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, evtType, "job", j.ID, actor.ID, events.EventPayload{"status": j.Status}); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

// GetJob returns a job with its deliverables and revisions, visible to
// the owning client, the assigned freelancer, and admins.
func (e Engine) GetJob(ctx context.Context, actor policy.Actor, jobID string) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	if err := policy.RequireJobAccess(actor, j); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

// ListAvailableJobs shows freelancers the open pool: deposit paid, no one
// assigned yet.
func (e Engine) ListAvailableJobs(ctx context.Context, actor policy.Actor, category string, p repo.Page) ([]domain.Job, int, repo.Page, error) {
	if err := policy.RequireRole(actor, domain.RoleFreelancer); err != nil {
		return nil, 0, p, err
	}
	p = normalizePage(p)
	jobs, total, err := e.Repo.ListJobs(ctx, repo.JobFilters{
		Status:         string(lifecycle.StatusDepositPaid),
		Category:       category,
		OnlyUnassigned: true,
	}, p)
	return jobs, total, p, err
}

// ListMyJobs lists the calling freelancer's assignments.
func (e Engine) ListMyJobs(ctx context.Context, actor policy.Actor, status string, p repo.Page) ([]domain.Job, int, repo.Page, error) {
	if err := policy.RequireRole(actor, domain.RoleFreelancer); err != nil {
		return nil, 0, p, err
	}
	if status != "" && !lifecycle.ValidStatus(lifecycle.Status(status)) {
		return nil, 0, p, ValidationError{Msg: "unknown status " + status}
	}
	p = normalizePage(p)
	jobs, total, err := e.Repo.ListJobs(ctx, repo.JobFilters{FreelancerID: actor.ID, Status: status}, p)
	return jobs, total, p, err
}

// ListClientJobs lists the calling client's own jobs.
func (e Engine) ListClientJobs(ctx context.Context, actor policy.Actor, status string, p repo.Page) ([]domain.Job, int, repo.Page, error) {
	if err := policy.RequireRole(actor, domain.RoleClient); err != nil {
		return nil, 0, p, err
	}
	if status != "" && !lifecycle.ValidStatus(lifecycle.Status(status)) {
		return nil, 0, p, ValidationError{Msg: "unknown status " + status}
	}
	p = normalizePage(p)
	jobs, total, err := e.Repo.ListJobs(ctx, repo.JobFilters{ClientID: actor.ID, Status: status}, p)
	return jobs, total, p, err
}

// ClaimJob assigns an open job to the calling freelancer. The write is
// conditional on the job still being unassigned, so of any number of
// concurrent claimers exactly one wins; the rest get a conflict.
func (e Engine) ClaimJob(ctx context.Context, actor policy.Actor, jobID string) (domain.Job, error) {
	if err := policy.RequireRole(actor, domain.RoleFreelancer); err != nil {
		return domain.Job{}, err
	}
	next, err := lifecycle.Next(lifecycle.StatusDepositPaid, lifecycle.EventClaim)
	if err != nil {
		return domain.Job{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	claimed, err := e.Repo.ClaimJobTx(ctx, tx, jobID, actor.ID, string(next), e.now())
	if err != nil {
		return domain.Job{}, err
	}
	if !claimed {
		j, err := e.Repo.GetJobTx(ctx, tx, jobID)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Job{}, fmt.Errorf("job %s: %w", jobID, repo.ErrNotFound)
		}
		if err != nil {
			return domain.Job{}, err
		}
		if j.FreelancerID != nil {
			return domain.Job{}, ConflictError{Msg: "job is already assigned"}
		}
		return domain.Job{}, ConflictError{Msg: "job is not available for claiming"}
	}

	j, err := e.Repo.GetJobTx(ctx, tx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "job.claimed", "job", j.ID, actor.ID, nil); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

// RequestRevision opens a revision round on submitted work. Bounded by
// the configured revision cap.
func (e Engine) RequestRevision(ctx context.Context, actor policy.Actor, jobID, description string) (domain.Job, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.Job{}, ValidationError{Msg: "revision description is required"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	j, err := e.Repo.GetJobTx(ctx, tx, jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	if err := policy.RequireClientOwner(actor, j); err != nil {
		return domain.Job{}, err
	}
	used, err := e.Repo.CountRevisionsTx(ctx, tx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if used >= e.maxRevisions() {
		return domain.Job{}, ConflictError{Msg: fmt.Sprintf("revision limit of %d reached", e.maxRevisions())}
	}
	next, err := lifecycle.Next(lifecycle.Status(j.Status), lifecycle.EventRequestRevision)
	if err != nil {
		return domain.Job{}, err
	}

	now := e.now()
	rev := domain.Revision{
		ID:          uuid.NewString(),
		JobID:       j.ID,
		Status:      domain.RevisionRequested,
		Description: description,
		RequestedAt: now,
	}
	if err := e.Repo.InsertRevisionTx(ctx, tx, rev); err != nil {
		return domain.Job{}, err
	}
	j.Status = string(next)
	j.UpdatedAt = now
	if err := e.Repo.UpdateJobTx(ctx, tx, j); err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "job.revision_requested", "job", j.ID, actor.ID, events.EventPayload{"revision_id": rev.ID}); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return e.Repo.GetJob(ctx, jobID)
}

// StartRevision lets the assigned freelancer acknowledge a requested
// revision before working on it.
func (e Engine) StartRevision(ctx context.Context, actor policy.Actor, jobID, revisionID string) (domain.Job, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	j, err := e.Repo.GetJobTx(ctx, tx, jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	if err := policy.RequireAssignedFreelancer(actor, j); err != nil {
		return domain.Job{}, err
	}
	rev, err := e.Repo.GetRevisionTx(ctx, tx, jobID, revisionID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("revision %s: %w", revisionID, err)
	}
	if rev.Status != domain.RevisionRequested {
		return domain.Job{}, ConflictError{Msg: "revision is not awaiting a start"}
	}
	next, err := lifecycle.Next(lifecycle.Status(j.Status), lifecycle.EventStartRevision)
	if err != nil {
		return domain.Job{}, err
	}

	now := e.now()
	rev.Status = domain.RevisionInProgress
	rev.StartedAt = strPtr(now)
	if err := e.Repo.UpdateRevisionTx(ctx, tx, rev); err != nil {
		return domain.Job{}, err
	}
	j.Status = string(next)
	j.UpdatedAt = now
	if err := e.Repo.UpdateJobTx(ctx, tx, j); err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "job.revision_started", "job", j.ID, actor.ID, events.EventPayload{"revision_id": rev.ID}); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return e.Repo.GetJob(ctx, jobID)
}

// ListRevisions returns a job's revisions plus how many rounds remain.
func (e Engine) ListRevisions(ctx context.Context, actor policy.Actor, jobID string) ([]domain.Revision, int, error) {
	j, err := e.Repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, 0, fmt.Errorf("job %s: %w", jobID, err)
	}
	if err := policy.RequireJobAccess(actor, j); err != nil {
		return nil, 0, err
	}
	remaining := e.maxRevisions() - len(j.Revisions)
	if remaining < 0 {
		remaining = 0
	}
	return j.Revisions, remaining, nil
}

// ContributorStats returns the calling freelancer's dashboard counters.
func (e Engine) ContributorStats(ctx context.Context, actor policy.Actor) (domain.ContributorStats, error) {
	if err := policy.RequireRole(actor, domain.RoleFreelancer); err != nil {
		return domain.ContributorStats{}, err
	}
	return e.Repo.ContributorStats(ctx, actor.ID)
}
