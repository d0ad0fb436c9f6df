package engine

import (
	"context"
	"fmt"
	"sync"

	"gighub/internal/blob"
	"gighub/internal/domain"
	"gighub/internal/engine/policy"
	"gighub/internal/events"
	"gighub/internal/lifecycle"
	"gighub/internal/repo"
)

// SubmissionInput is what a freelancer hands in. RevisionID discriminates
// the two kinds: empty means the initial delivery, otherwise the files
// answer that revision request.
type SubmissionInput struct {
	Files      []blob.Staged
	Note       string
	RevisionID string
}

// SubmitWork uploads the deliverables and advances the job. Uploads run
// concurrently; any failure aborts before anything is persisted, so the
// stored deliverable list is always complete or untouched.
func (e Engine) SubmitWork(ctx context.Context, actor policy.Actor, jobID string, in SubmissionInput) (domain.Job, error) {
	if len(in.Files) == 0 {
		return domain.Job{}, ValidationError{Msg: "at least one file is required"}
	}

	// Preflight before paying for uploads. The mutation transaction
	// re-checks everything.
	j, err := e.Repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	if err := policy.RequireAssignedFreelancer(actor, j); err != nil {
		return domain.Job{}, err
	}
	// Resolve the revision before looking at the status. An unknown id
	// is not-found no matter what state the job is in.
	ev := lifecycle.EventSubmitInitial
	if in.RevisionID != "" {
		ev = lifecycle.EventSubmitRevision
		if err := findOpenRevision(j, in.RevisionID); err != nil {
			return domain.Job{}, err
		}
	}
	if !lifecycle.CanTransition(lifecycle.Status(j.Status), ev) {
		return domain.Job{}, lifecycle.TransitionError{From: lifecycle.Status(j.Status), Event: ev}
	}

	deliverables, err := e.uploadAll(ctx, jobID, in.Files)
	if err != nil {
		return domain.Job{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	j, err = e.Repo.GetJobTx(ctx, tx, jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	if err := policy.RequireAssignedFreelancer(actor, j); err != nil {
		return domain.Job{}, err
	}
	var rev domain.Revision
	if in.RevisionID != "" {
		rev, err = e.Repo.GetRevisionTx(ctx, tx, j.ID, in.RevisionID)
		if err != nil {
			return domain.Job{}, fmt.Errorf("revision %s: %w", in.RevisionID, err)
		}
		if rev.Status == domain.RevisionCompleted {
			return domain.Job{}, ConflictError{Msg: "revision is already completed"}
		}
	}
	next, err := lifecycle.Next(lifecycle.Status(j.Status), ev)
	if err != nil {
		return domain.Job{}, err
	}

	now := e.now()
	if in.RevisionID == "" {
		if err := e.Repo.ReplaceJobDeliverablesTx(ctx, tx, j.ID, deliverables); err != nil {
			return domain.Job{}, err
		}
		if in.Note != "" {
			j.FreelancerNote = strPtr(in.Note)
		}
		j.CompletedAt = strPtr(now)
	} else {
		if err := e.Repo.ReplaceRevisionDeliverablesTx(ctx, tx, j.ID, rev.ID, deliverables); err != nil {
			return domain.Job{}, err
		}
		rev.Status = domain.RevisionCompleted
		rev.CompletedAt = strPtr(now)
		if in.Note != "" {
			rev.FreelancerNote = strPtr(in.Note)
		}
		if err := e.Repo.UpdateRevisionTx(ctx, tx, rev); err != nil {
			return domain.Job{}, err
		}
	}

	j.Status = string(next)
	j.UpdatedAt = now
	if err := e.Repo.UpdateJobTx(ctx, tx, j); err != nil {
		return domain.Job{}, err
	}
	evtType := "job.submitted"
	payload := events.EventPayload{"files": len(deliverables)}
	if in.RevisionID != "" {
		evtType = "job.revision_submitted"
		payload["revision_id"] = in.RevisionID
	}
	if err := e.Events.Append(ctx, tx, evtType, "job", j.ID, actor.ID, payload); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return e.Repo.GetJob(ctx, jobID)
}

// findOpenRevision checks that revisionID names a revision of j that can
// still accept a submission. An unknown id is not-found, never a silent
// fallback to an initial submission.
func findOpenRevision(j domain.Job, revisionID string) error {
	for _, rev := range j.Revisions {
		if rev.ID != revisionID {
			continue
		}
		if rev.Status == domain.RevisionCompleted {
			return ConflictError{Msg: "revision is already completed"}
		}
		return nil
	}
	return fmt.Errorf("revision %s: %w", revisionID, repo.ErrNotFound)
}

// uploadAll stores every file concurrently and returns the deliverable
// records in input order.
func (e Engine) uploadAll(ctx context.Context, container string, files []blob.Staged) ([]domain.Deliverable, error) {
	now := e.now()
	deliverables := make([]domain.Deliverable, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f blob.Staged) {
			defer wg.Done()
			obj, err := e.Blobs.Upload(ctx, container, f)
			if err != nil {
				errs[i] = err
				return
			}
			deliverables[i] = domain.Deliverable{
				ID:          obj.ID,
				Name:        obj.Name,
				ContentType: obj.ContentType,
				SizeBytes:   obj.SizeBytes,
				ViewURL:     obj.ViewURL,
				DownloadURL: obj.DownloadURL,
				UploadedAt:  now,
			}
		}(i, f)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return deliverables, nil
}
