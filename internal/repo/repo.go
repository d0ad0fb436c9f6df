// Package repo is the SQL persistence layer. All statements are written
// by hand against the sqlite schema in internal/migrate/sql.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gighub/internal/domain"
)

var ErrNotFound = errors.New("not found")

type Repo struct {
	DB *sql.DB
}

func New(db *sql.DB) Repo {
	return Repo{DB: db}
}

// Page is a normalized offset pagination request.
type Page struct {
	Page  int
	Limit int
}

func (p Page) offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages is ceil(total/limit).
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// JobFilters narrows job listings. Zero values mean no constraint.
type JobFilters struct {
	Status         string
	Category       string
	ClientID       string
	FreelancerID   string
	OnlyUnassigned bool
}

func (f JobFilters) where() (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.ClientID != "" {
		conds = append(conds, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.FreelancerID != "" {
		conds = append(conds, "freelancer_id = ?")
		args = append(args, f.FreelancerID)
	}
	if f.OnlyUnassigned {
		conds = append(conds, "freelancer_id IS NULL")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const jobColumns = `id, client_id, freelancer_id, title, description, category, price_minor,
status, payment_status, deposit_order_id, final_order_id, deposit_payment_id, final_payment_id,
freelancer_note, assigned_at, completed_at, deposit_paid_at, final_paid_at, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (domain.Job, error) {
	var j domain.Job
	var freelancerID, depositOrder, finalOrder, depositPayment, finalPayment sql.NullString
	var note, assignedAt, completedAt, depositPaidAt, finalPaidAt sql.NullString
	err := row.Scan(&j.ID, &j.ClientID, &freelancerID, &j.Title, &j.Description, &j.Category, &j.PriceMinor,
		&j.Status, &j.PaymentStatus, &depositOrder, &finalOrder, &depositPayment, &finalPayment,
		&note, &assignedAt, &completedAt, &depositPaidAt, &finalPaidAt, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	if err != nil {
		return j, err
	}
	j.FreelancerID = fromNull(freelancerID)
	j.DepositOrderID = fromNull(depositOrder)
	j.FinalOrderID = fromNull(finalOrder)
	j.DepositPaymentID = fromNull(depositPayment)
	j.FinalPaymentID = fromNull(finalPayment)
	j.FreelancerNote = fromNull(note)
	j.AssignedAt = fromNull(assignedAt)
	j.CompletedAt = fromNull(completedAt)
	j.DepositPaidAt = fromNull(depositPaidAt)
	j.FinalPaidAt = fromNull(finalPaidAt)
	return j, nil
}

func (r Repo) CreateJobTx(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO jobs(`+jobColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.ClientID, toNull(j.FreelancerID), j.Title, j.Description, j.Category, j.PriceMinor,
		j.Status, j.PaymentStatus, toNull(j.DepositOrderID), toNull(j.FinalOrderID),
		toNull(j.DepositPaymentID), toNull(j.FinalPaymentID), toNull(j.FreelancerNote),
		toNull(j.AssignedAt), toNull(j.CompletedAt), toNull(j.DepositPaidAt), toNull(j.FinalPaidAt),
		j.CreatedAt, j.UpdatedAt)
	return err
}

// UpdateJobTx rewrites every mutable column from j.
func (r Repo) UpdateJobTx(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	res, err := tx.ExecContext(ctx, `UPDATE jobs SET freelancer_id=?, title=?, description=?, category=?, price_minor=?,
status=?, payment_status=?, deposit_order_id=?, final_order_id=?, deposit_payment_id=?, final_payment_id=?,
freelancer_note=?, assigned_at=?, completed_at=?, deposit_paid_at=?, final_paid_at=?, updated_at=?
WHERE id=?`,
		toNull(j.FreelancerID), j.Title, j.Description, j.Category, j.PriceMinor,
		j.Status, j.PaymentStatus, toNull(j.DepositOrderID), toNull(j.FinalOrderID),
		toNull(j.DepositPaymentID), toNull(j.FinalPaymentID), toNull(j.FreelancerNote),
		toNull(j.AssignedAt), toNull(j.CompletedAt), toNull(j.DepositPaidAt), toNull(j.FinalPaidAt),
		j.UpdatedAt, j.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetJob(ctx context.Context, id string) (domain.Job, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()
	j, err := r.GetJobTx(ctx, tx, id)
	if err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

// GetJobTx loads a job with its deliverables and revisions.
func (r Repo) GetJobTx(ctx context.Context, tx *sql.Tx, id string) (domain.Job, error) {
	j, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id))
	if err != nil {
		return j, err
	}
	if j.Deliverables, err = r.listDeliverablesTx(ctx, tx, j.ID, ""); err != nil {
		return j, err
	}
	if j.Revisions, err = r.ListRevisionsTx(ctx, tx, j.ID); err != nil {
		return j, err
	}
	return j, nil
}

// ListJobs returns one page of bare jobs (no deliverables or revisions)
// newest first, plus the total row count for the filter.
func (r Repo) ListJobs(ctx context.Context, f JobFilters, p Page) ([]domain.Job, int, error) {
	where, args := f.where()

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.DB.QueryContext(ctx, query, append(args, p.Limit, p.offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

// ClaimJobTx assigns the job to freelancerID only if it is still open.
// The conditional write makes concurrent claims race safely: exactly one
// caller sees true.
func (r Repo) ClaimJobTx(ctx context.Context, tx *sql.Tx, jobID, freelancerID, newStatus, now string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE jobs SET freelancer_id=?, status=?, assigned_at=?, updated_at=?
WHERE id=? AND freelancer_id IS NULL AND status=?`,
		freelancerID, newStatus, now, now, jobID, "deposit_paid")
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PaymentLeg names which half of the price an order covers.
type PaymentLeg string

const (
	LegDeposit PaymentLeg = "deposit"
	LegFinal   PaymentLeg = "final"
)

// GetJobByOrderIDTx resolves a processor order id to its job. The column
// the order was stored in decides the leg.
func (r Repo) GetJobByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID string) (domain.Job, PaymentLeg, error) {
	j, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE deposit_order_id=?`, orderID))
	if err == nil {
		return j, LegDeposit, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Job{}, "", err
	}
	j, err = scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE final_order_id=?`, orderID))
	if err != nil {
		return domain.Job{}, "", err
	}
	return j, LegFinal, nil
}

// ContributorStats aggregates the dashboard counters for one freelancer.
func (r Repo) ContributorStats(ctx context.Context, freelancerID string) (domain.ContributorStats, error) {
	var s domain.ContributorStats
	err := r.DB.QueryRowContext(ctx, `SELECT
COUNT(*) FILTER (WHERE freelancer_id = ?1 AND status IN ('in_progress','revision_requested','revision_in_progress')),
COUNT(*) FILTER (WHERE freelancer_id = ?1 AND status IN ('completed','revision_completed','approved_by_client','final_paid')),
COUNT(*) FILTER (WHERE freelancer_id = ?1 AND status IN ('revision_requested','revision_in_progress')),
COUNT(*) FILTER (WHERE freelancer_id IS NULL AND status = 'deposit_paid'),
COALESCE(SUM(price_minor) FILTER (WHERE freelancer_id = ?1 AND status = 'final_paid'), 0)
FROM jobs`, freelancerID).
		Scan(&s.ActiveJobs, &s.CompletedJobs, &s.OpenRevisionRequests, &s.AvailableJobs, &s.TotalEarningsMinor)
	if err != nil {
		return domain.ContributorStats{}, fmt.Errorf("contributor stats: %w", err)
	}
	return s, nil
}

func toNull(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func fromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
