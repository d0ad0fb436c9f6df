package gighubsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Gighub HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Job represents the API job model.
type Job struct {
	ID             string        `json:"id"`
	ClientID       string        `json:"clientId"`
	FreelancerID   *string       `json:"freelancerId,omitempty"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Category       string        `json:"category"`
	PriceMinor     int64         `json:"priceMinor"`
	Status         string        `json:"status"`
	PaymentStatus  string        `json:"paymentStatus"`
	FreelancerNote *string       `json:"freelancerNote,omitempty"`
	Deliverables   []Deliverable `json:"deliverables"`
	Revisions      []Revision    `json:"revisions"`
	CreatedAt      string        `json:"createdAt"`
	UpdatedAt      string        `json:"updatedAt"`
}

// Deliverable is an uploaded work file.
type Deliverable struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	SizeBytes   int64  `json:"sizeBytes"`
	ViewURL     string `json:"viewUrl"`
	DownloadURL string `json:"downloadUrl"`
	UploadedAt  string `json:"uploadedAt"`
}

// Revision is one round of requested changes.
type Revision struct {
	ID           string        `json:"id"`
	JobID        string        `json:"jobId"`
	Status       string        `json:"status"`
	Description  string        `json:"description"`
	Deliverables []Deliverable `json:"deliverables"`
	RequestedAt  string        `json:"requestedAt"`
}

// Order is a payment order awaiting checkout.
type Order struct {
	OrderID     string `json:"orderId"`
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
}

// ContributorStats is the freelancer dashboard summary.
type ContributorStats struct {
	ActiveJobs           int   `json:"activeJobs"`
	CompletedJobs        int   `json:"completedJobs"`
	OpenRevisionRequests int   `json:"openRevisionRequests"`
	AvailableJobs        int   `json:"availableJobs"`
	TotalEarningsMinor   int64 `json:"totalEarningsMinor"`
}

// Pagination describes a list response page.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
}

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination"`
}

// CreateJob posts a new job for admin approval.
func (c *Client) CreateJob(ctx context.Context, title, description, category string, priceMinor int64) (Job, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
		"category":    category,
		"priceMinor":  priceMinor,
	}
	var job Job
	_, err := c.do(ctx, http.MethodPost, "jobs", body, &job)
	return job, err
}

// Job fetches a single job.
func (c *Client) Job(ctx context.Context, id string) (Job, error) {
	var job Job
	_, err := c.do(ctx, http.MethodGet, "jobs/"+url.PathEscape(id), nil, &job)
	return job, err
}

// AvailableJobs lists claimable jobs, optionally filtered by category.
func (c *Client) AvailableJobs(ctx context.Context, category string, page, limit int) ([]Job, Pagination, error) {
	endpoint := "jobs/available" + listQuery(page, limit, "category", category)
	return c.jobList(ctx, endpoint)
}

// MyJobs lists jobs assigned to the caller.
func (c *Client) MyJobs(ctx context.Context, status string, page, limit int) ([]Job, Pagination, error) {
	endpoint := "jobs/mine" + listQuery(page, limit, "status", status)
	return c.jobList(ctx, endpoint)
}

// ClientJobs lists jobs posted by the caller.
func (c *Client) ClientJobs(ctx context.Context, status string, page, limit int) ([]Job, Pagination, error) {
	endpoint := "jobs/client" + listQuery(page, limit, "status", status)
	return c.jobList(ctx, endpoint)
}

// ApproveJob moves a pending job to approved. Admin only.
func (c *Client) ApproveJob(ctx context.Context, id string) (Job, error) {
	var job Job
	_, err := c.do(ctx, http.MethodPost, "jobs/"+url.PathEscape(id)+"/approve", nil, &job)
	return job, err
}

// ClaimJob assigns an available job to the caller.
func (c *Client) ClaimJob(ctx context.Context, id string) (Job, error) {
	var job Job
	_, err := c.do(ctx, http.MethodPost, "jobs/"+url.PathEscape(id)+"/claim", nil, &job)
	return job, err
}

// ApproveWork accepts the submitted work, unlocking the final payment.
func (c *Client) ApproveWork(ctx context.Context, id string) (Job, error) {
	var job Job
	_, err := c.do(ctx, http.MethodPost, "jobs/"+url.PathEscape(id)+"/approve-work", nil, &job)
	return job, err
}

// RequestRevision opens a revision round on submitted work.
func (c *Client) RequestRevision(ctx context.Context, jobID, description string) (Job, error) {
	body := map[string]any{"description": description}
	var job Job
	_, err := c.do(ctx, http.MethodPost, "jobs/"+url.PathEscape(jobID)+"/revisions", body, &job)
	return job, err
}

// StartRevision marks a requested revision as in progress.
func (c *Client) StartRevision(ctx context.Context, jobID, revisionID string) (Job, error) {
	endpoint := fmt.Sprintf("jobs/%s/revisions/%s/start", url.PathEscape(jobID), url.PathEscape(revisionID))
	var job Job
	_, err := c.do(ctx, http.MethodPost, endpoint, nil, &job)
	return job, err
}

// Revisions lists a job's revision rounds and how many remain.
func (c *Client) Revisions(ctx context.Context, jobID string) ([]Revision, int, error) {
	var data struct {
		Revisions          []Revision `json:"revisions"`
		RevisionsRemaining int        `json:"revisionsRemaining"`
	}
	_, err := c.do(ctx, http.MethodGet, "jobs/"+url.PathEscape(jobID)+"/revisions", nil, &data)
	return data.Revisions, data.RevisionsRemaining, err
}

// SubmissionFile is one file in a work submission.
type SubmissionFile struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// SubmitWork uploads deliverables for the initial submission, or for the
// revision named by revisionID.
func (c *Client) SubmitWork(ctx context.Context, jobID, note, revisionID string, files []SubmissionFile) (Job, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.Name)
		if err != nil {
			return Job{}, err
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return Job{}, err
		}
	}
	if note != "" {
		if err := w.WriteField("note", note); err != nil {
			return Job{}, err
		}
	}
	if revisionID != "" {
		if err := w.WriteField("revisionId", revisionID); err != nil {
			return Job{}, err
		}
	}
	if err := w.Close(); err != nil {
		return Job{}, err
	}

	endpoint := c.base() + "/api/v1/jobs/" + url.PathEscape(jobID) + "/submit"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return Job{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(req)

	var job Job
	_, err = c.roundTrip(req, &job)
	return job, err
}

// CreateDepositOrder opens the upfront payment order for a job.
func (c *Client) CreateDepositOrder(ctx context.Context, jobID string) (Order, error) {
	var order Order
	_, err := c.do(ctx, http.MethodPost, "payments/deposit-order", map[string]any{"jobId": jobID}, &order)
	return order, err
}

// CreateFinalOrder opens the remaining payment order for a job.
func (c *Client) CreateFinalOrder(ctx context.Context, jobID string) (Order, error) {
	var order Order
	_, err := c.do(ctx, http.MethodPost, "payments/final-order", map[string]any{"jobId": jobID}, &order)
	return order, err
}

// VerifyPayment settles a paid order using the processor's signature.
func (c *Client) VerifyPayment(ctx context.Context, orderID, paymentID, signature string) (Job, error) {
	body := map[string]any{
		"orderId":   orderID,
		"paymentId": paymentID,
		"signature": signature,
	}
	var job Job
	_, err := c.do(ctx, http.MethodPost, "payments/verify", body, &job)
	return job, err
}

// ContributorStats returns the caller's freelancer dashboard counters.
func (c *Client) ContributorStats(ctx context.Context) (ContributorStats, error) {
	var stats ContributorStats
	_, err := c.do(ctx, http.MethodGet, "contributor/stats", nil, &stats)
	return stats, err
}

func (c *Client) jobList(ctx context.Context, endpoint string) ([]Job, Pagination, error) {
	var jobs []Job
	env, err := c.do(ctx, http.MethodGet, endpoint, nil, &jobs)
	if err != nil {
		return nil, Pagination{}, err
	}
	var p Pagination
	if env.Pagination != nil {
		p = *env.Pagination
	}
	return jobs, p, nil
}

func listQuery(page, limit int, key, value string) string {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if value != "" {
		q.Set(key, value)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) (envelope, error) {
	reqURL := c.base() + "/api/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return envelope{}, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return c.roundTrip(req, out)
}

func (c *Client) authorize(req *http.Request) {
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
}

func (c *Client) roundTrip(req *http.Request, out any) (envelope, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return envelope{}, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return envelope{}, err
	}
	if resp.StatusCode >= 300 || !env.Success {
		return env, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		return env, json.Unmarshal(env.Data, out)
	}
	return env, nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
