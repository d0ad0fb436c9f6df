package server

import (
	"gighub/internal/domain"
	"gighub/internal/engine"
	"gighub/internal/repo"
)

// Every success response wraps its payload in {success, data} and list
// responses add a pagination block; failures are {success, message}.

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func paginationFor(p repo.Page, total int) pagination {
	return pagination{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: repo.TotalPages(total, p.Limit),
	}
}

type deliverableDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	SizeBytes   int64  `json:"sizeBytes"`
	ViewURL     string `json:"viewUrl"`
	DownloadURL string `json:"downloadUrl"`
	UploadedAt  string `json:"uploadedAt"`
}

type revisionDTO struct {
	ID             string           `json:"id"`
	JobID          string           `json:"jobId"`
	Status         string           `json:"status"`
	Description    string           `json:"description"`
	FreelancerNote *string          `json:"freelancerNote,omitempty"`
	Deliverables   []deliverableDTO `json:"deliverables"`
	RequestedAt    string           `json:"requestedAt"`
	StartedAt      *string          `json:"startedAt,omitempty"`
	CompletedAt    *string          `json:"completedAt,omitempty"`
}

type jobDTO struct {
	ID               string           `json:"id"`
	ClientID         string           `json:"clientId"`
	FreelancerID     *string          `json:"freelancerId,omitempty"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Category         string           `json:"category"`
	PriceMinor       int64            `json:"priceMinor"`
	Status           string           `json:"status"`
	PaymentStatus    string           `json:"paymentStatus"`
	DepositOrderID   *string          `json:"depositOrderId,omitempty"`
	FinalOrderID     *string          `json:"finalOrderId,omitempty"`
	DepositPaymentID *string          `json:"depositPaymentId,omitempty"`
	FinalPaymentID   *string          `json:"finalPaymentId,omitempty"`
	FreelancerNote   *string          `json:"freelancerNote,omitempty"`
	Deliverables     []deliverableDTO `json:"deliverables"`
	Revisions        []revisionDTO    `json:"revisions"`
	AssignedAt       *string          `json:"assignedAt,omitempty"`
	CompletedAt      *string          `json:"completedAt,omitempty"`
	DepositPaidAt    *string          `json:"depositPaidAt,omitempty"`
	FinalPaidAt      *string          `json:"finalPaidAt,omitempty"`
	CreatedAt        string           `json:"createdAt"`
	UpdatedAt        string           `json:"updatedAt"`
}

type userDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type orderDTO struct {
	OrderID     string `json:"orderId"`
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
}

type statsDTO struct {
	ActiveJobs           int   `json:"activeJobs"`
	CompletedJobs        int   `json:"completedJobs"`
	OpenRevisionRequests int   `json:"openRevisionRequests"`
	AvailableJobs        int   `json:"availableJobs"`
	TotalEarningsMinor   int64 `json:"totalEarningsMinor"`
}

func deliverableResponse(d domain.Deliverable) deliverableDTO {
	return deliverableDTO{
		ID:          d.ID,
		Name:        d.Name,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		ViewURL:     d.ViewURL,
		DownloadURL: d.DownloadURL,
		UploadedAt:  d.UploadedAt,
	}
}

func deliverablesResponse(ds []domain.Deliverable) []deliverableDTO {
	out := make([]deliverableDTO, 0, len(ds))
	for _, d := range ds {
		out = append(out, deliverableResponse(d))
	}
	return out
}

func revisionResponse(rev domain.Revision) revisionDTO {
	return revisionDTO{
		ID:             rev.ID,
		JobID:          rev.JobID,
		Status:         rev.Status,
		Description:    rev.Description,
		FreelancerNote: rev.FreelancerNote,
		Deliverables:   deliverablesResponse(rev.Deliverables),
		RequestedAt:    rev.RequestedAt,
		StartedAt:      rev.StartedAt,
		CompletedAt:    rev.CompletedAt,
	}
}

func jobResponse(j domain.Job) jobDTO {
	revisions := make([]revisionDTO, 0, len(j.Revisions))
	for _, rev := range j.Revisions {
		revisions = append(revisions, revisionResponse(rev))
	}
	return jobDTO{
		ID:               j.ID,
		ClientID:         j.ClientID,
		FreelancerID:     j.FreelancerID,
		Title:            j.Title,
		Description:      j.Description,
		Category:         j.Category,
		PriceMinor:       j.PriceMinor,
		Status:           j.Status,
		PaymentStatus:    j.PaymentStatus,
		DepositOrderID:   j.DepositOrderID,
		FinalOrderID:     j.FinalOrderID,
		DepositPaymentID: j.DepositPaymentID,
		FinalPaymentID:   j.FinalPaymentID,
		FreelancerNote:   j.FreelancerNote,
		Deliverables:     deliverablesResponse(j.Deliverables),
		Revisions:        revisions,
		AssignedAt:       j.AssignedAt,
		CompletedAt:      j.CompletedAt,
		DepositPaidAt:    j.DepositPaidAt,
		FinalPaidAt:      j.FinalPaidAt,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

func jobsResponse(jobs []domain.Job) []jobDTO {
	out := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobResponse(j))
	}
	return out
}

func userResponse(u domain.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func usersResponse(users []domain.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u))
	}
	return out
}

func orderResponse(o engine.PaymentOrder) orderDTO {
	return orderDTO{
		OrderID:     o.OrderID,
		AmountMinor: o.AmountMinor,
		Currency:    o.Currency,
		Receipt:     o.Receipt,
	}
}

func statsResponse(s domain.ContributorStats) statsDTO {
	return statsDTO{
		ActiveJobs:           s.ActiveJobs,
		CompletedJobs:        s.CompletedJobs,
		OpenRevisionRequests: s.OpenRevisionRequests,
		AvailableJobs:        s.AvailableJobs,
		TotalEarningsMinor:   s.TotalEarningsMinor,
	}
}
