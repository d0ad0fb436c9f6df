package domain

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role" enum:"client,freelancer,admin"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// ValidRole reports whether role is one of the known user roles.
func ValidRole(role string) bool {
	switch role {
	case RoleClient, RoleFreelancer, RoleAdmin:
		return true
	}
	return false
}

type Job struct {
	ID               string        `json:"id"`
	ClientID         string        `json:"client_id"`
	FreelancerID     *string       `json:"freelancer_id,omitempty"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Category         string        `json:"category"`
	PriceMinor       int64         `json:"price_minor"`
	Status           string        `json:"status" enum:"pending,approved,deposit_paid,in_progress,completed,revision_requested,revision_in_progress,revision_completed,approved_by_client,final_paid"`
	PaymentStatus    string        `json:"payment_status" enum:"none,deposit_paid,fully_paid"`
	DepositOrderID   *string       `json:"deposit_order_id,omitempty"`
	FinalOrderID     *string       `json:"final_order_id,omitempty"`
	DepositPaymentID *string       `json:"deposit_payment_id,omitempty"`
	FinalPaymentID   *string       `json:"final_payment_id,omitempty"`
	FreelancerNote   *string       `json:"freelancer_note,omitempty"`
	Deliverables     []Deliverable `json:"deliverables,omitempty"`
	Revisions        []Revision    `json:"revisions,omitempty"`
	AssignedAt       *string       `json:"assigned_at,omitempty" format:"date-time"`
	CompletedAt      *string       `json:"completed_at,omitempty" format:"date-time"`
	DepositPaidAt    *string       `json:"deposit_paid_at,omitempty" format:"date-time"`
	FinalPaidAt      *string       `json:"final_paid_at,omitempty" format:"date-time"`
	CreatedAt        string        `json:"created_at" format:"date-time"`
	UpdatedAt        string        `json:"updated_at" format:"date-time"`
}

const (
	PaymentStatusNone        = "none"
	PaymentStatusDepositPaid = "deposit_paid"
	PaymentStatusFullyPaid   = "fully_paid"
)

type Revision struct {
	ID             string        `json:"id"`
	JobID          string        `json:"job_id"`
	Status         string        `json:"status" enum:"requested,in_progress,completed"`
	Description    string        `json:"description"`
	FreelancerNote *string       `json:"freelancer_note,omitempty"`
	Deliverables   []Deliverable `json:"deliverables,omitempty"`
	RequestedAt    string        `json:"requested_at" format:"date-time"`
	StartedAt      *string       `json:"started_at,omitempty" format:"date-time"`
	CompletedAt    *string       `json:"completed_at,omitempty" format:"date-time"`
}

const (
	RevisionRequested  = "requested"
	RevisionInProgress = "in_progress"
	RevisionCompleted  = "completed"
)

type Deliverable struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	ViewURL     string `json:"view_url"`
	DownloadURL string `json:"download_url"`
	UploadedAt  string `json:"uploaded_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// ContributorStats is the freelancer dashboard summary.
type ContributorStats struct {
	ActiveJobs           int   `json:"active_jobs"`
	CompletedJobs        int   `json:"completed_jobs"`
	OpenRevisionRequests int   `json:"open_revision_requests"`
	AvailableJobs        int   `json:"available_jobs"`
	TotalEarningsMinor   int64 `json:"total_earnings_minor"`
}
