package repo

import (
	"context"
	"database/sql"

	"gighub/internal/domain"
)

const revisionColumns = `id, job_id, status, description, freelancer_note, requested_at, started_at, completed_at`

func scanRevision(row interface{ Scan(...any) error }) (domain.Revision, error) {
	var rev domain.Revision
	var note, startedAt, completedAt sql.NullString
	err := row.Scan(&rev.ID, &rev.JobID, &rev.Status, &rev.Description, &note, &rev.RequestedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return rev, ErrNotFound
	}
	if err != nil {
		return rev, err
	}
	rev.FreelancerNote = fromNull(note)
	rev.StartedAt = fromNull(startedAt)
	rev.CompletedAt = fromNull(completedAt)
	return rev, nil
}

func (r Repo) InsertRevisionTx(ctx context.Context, tx *sql.Tx, rev domain.Revision) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO revisions(`+revisionColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		rev.ID, rev.JobID, rev.Status, rev.Description, toNull(rev.FreelancerNote),
		rev.RequestedAt, toNull(rev.StartedAt), toNull(rev.CompletedAt))
	return err
}

func (r Repo) UpdateRevisionTx(ctx context.Context, tx *sql.Tx, rev domain.Revision) error {
	res, err := tx.ExecContext(ctx, `UPDATE revisions SET status=?, description=?, freelancer_note=?, started_at=?, completed_at=?
WHERE id=? AND job_id=?`,
		rev.Status, rev.Description, toNull(rev.FreelancerNote), toNull(rev.StartedAt), toNull(rev.CompletedAt),
		rev.ID, rev.JobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRevisionTx looks a revision up by its id scoped to one job. A revision
// id belonging to another job reads as not found.
func (r Repo) GetRevisionTx(ctx context.Context, tx *sql.Tx, jobID, revisionID string) (domain.Revision, error) {
	rev, err := scanRevision(tx.QueryRowContext(ctx,
		`SELECT `+revisionColumns+` FROM revisions WHERE id=? AND job_id=?`, revisionID, jobID))
	if err != nil {
		return rev, err
	}
	rev.Deliverables, err = r.listDeliverablesTx(ctx, tx, jobID, rev.ID)
	return rev, err
}

func (r Repo) ListRevisionsTx(ctx context.Context, tx *sql.Tx, jobID string) ([]domain.Revision, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+revisionColumns+` FROM revisions WHERE job_id=? ORDER BY requested_at ASC, id ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var revs []domain.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range revs {
		if revs[i].Deliverables, err = r.listDeliverablesTx(ctx, tx, jobID, revs[i].ID); err != nil {
			return nil, err
		}
	}
	return revs, nil
}

func (r Repo) CountRevisionsTx(ctx context.Context, tx *sql.Tx, jobID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM revisions WHERE job_id=?`, jobID).Scan(&n)
	return n, err
}

// ReplaceJobDeliverablesTx swaps the job's initial deliverable set in one
// statement pair so a failed submission never leaves a partial list.
func (r Repo) ReplaceJobDeliverablesTx(ctx context.Context, tx *sql.Tx, jobID string, ds []domain.Deliverable) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM deliverables WHERE job_id=? AND revision_id IS NULL`, jobID); err != nil {
		return err
	}
	return r.insertDeliverablesTx(ctx, tx, jobID, "", ds)
}

func (r Repo) ReplaceRevisionDeliverablesTx(ctx context.Context, tx *sql.Tx, jobID, revisionID string, ds []domain.Deliverable) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM deliverables WHERE job_id=? AND revision_id=?`, jobID, revisionID); err != nil {
		return err
	}
	return r.insertDeliverablesTx(ctx, tx, jobID, revisionID, ds)
}

func (r Repo) insertDeliverablesTx(ctx context.Context, tx *sql.Tx, jobID, revisionID string, ds []domain.Deliverable) error {
	for _, d := range ds {
		var revID any
		if revisionID != "" {
			revID = revisionID
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO deliverables(id, job_id, revision_id, name, content_type, size_bytes, view_url, download_url, uploaded_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
			d.ID, jobID, revID, d.Name, nullableString(d.ContentType), d.SizeBytes, d.ViewURL, d.DownloadURL, d.UploadedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) listDeliverablesTx(ctx context.Context, tx *sql.Tx, jobID, revisionID string) ([]domain.Deliverable, error) {
	query := `SELECT id, name, content_type, size_bytes, view_url, download_url, uploaded_at FROM deliverables WHERE job_id=?`
	args := []any{jobID}
	if revisionID == "" {
		query += ` AND revision_id IS NULL`
	} else {
		query += ` AND revision_id=?`
		args = append(args, revisionID)
	}
	query += ` ORDER BY uploaded_at ASC, id ASC`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ds []domain.Deliverable
	for rows.Next() {
		var d domain.Deliverable
		var contentType sql.NullString
		if err := rows.Scan(&d.ID, &d.Name, &contentType, &d.SizeBytes, &d.ViewURL, &d.DownloadURL, &d.UploadedAt); err != nil {
			return nil, err
		}
		if contentType.Valid {
			d.ContentType = contentType.String
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
