package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"gighub/internal/blob"
	"gighub/internal/config"
	"gighub/internal/db"
	"gighub/internal/domain"
	"gighub/internal/engine"
	"gighub/internal/migrate"
	"gighub/internal/payments"
	"gighub/internal/repo"
)

const (
	testJWTSecret = "server-test-jwt"
	testKeySecret = "server-test-key"
	basePath      = "/api/v1"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	Client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := blob.NewDiskStore(workspace+"/uploads", "/uploads")
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	e := engine.New(conn, config.Default(), &payments.Fake{Secret: testKeySecret}, store)

	h, err := New(Config{
		Engine:      e,
		BasePath:    basePath,
		Auth:        AuthConfig{JWTSecret: testJWTSecret, AllowAPIKeys: true},
		UploadsRoot: workspace + "/uploads",
		UploadsBase: "/uploads",
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: h}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (ts *testServer) newUser(t *testing.T, role string) (domain.User, string) {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	u := domain.User{
		ID: id, Name: role + " user", Email: id + "@example.test",
		Role: role, Active: true, CreatedAt: now, UpdatedAt: now,
	}
	if err := ts.Engine.Repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := SignToken(testJWTSecret, id, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return u, token
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil && err != io.EOF {
		t.Fatalf("decode %s %s: %v", method, url, err)
	}
	return res.StatusCode, decoded
}

func doMultipart(t *testing.T, client *http.Client, url, token string, fields map[string]string, files map[string]string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.Copy(fw, strings.NewReader(content)); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer res.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil && err != io.EOF {
		t.Fatalf("decode: %v", err)
	}
	return res.StatusCode, decoded
}

func dataField(t *testing.T, body map[string]any, key string) any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("no data object in %v", body)
	}
	return data[key]
}

func TestHealthNeedsNoAuth(t *testing.T) {
	ts := newTestServer(t)
	status, body := doJSON(t, ts.Client, http.MethodGet, ts.URL+"/healthz", "", nil)
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("health: %d %v", status, body)
	}
}

func TestMissingCredentials(t *testing.T) {
	ts := newTestServer(t)
	status, body := doJSON(t, ts.Client, http.MethodGet, ts.URL+basePath+"/jobs/available", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d", status)
	}
	if body["success"] != false || body["message"] == "" {
		t.Fatalf("error envelope: %v", body)
	}
}

func TestDeactivatedUserRejected(t *testing.T) {
	ts := newTestServer(t)
	admin, adminToken := ts.newUser(t, domain.RoleAdmin)
	_ = admin
	victim, victimToken := ts.newUser(t, domain.RoleClient)

	status, _ := doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/admin/users/"+victim.ID+"/deactivate", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("deactivate: %d", status)
	}
	status, body := doJSON(t, ts.Client, http.MethodGet, ts.URL+basePath+"/jobs/client", victimToken, nil)
	if status != http.StatusForbidden || body["success"] != false {
		t.Fatalf("deactivated caller: %d %v", status, body)
	}
}

func TestFullLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.newUser(t, domain.RoleAdmin)
	_, clientToken := ts.newUser(t, domain.RoleClient)
	_, freelancerToken := ts.newUser(t, domain.RoleFreelancer)

	status, body := doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/jobs", clientToken, map[string]any{
		"title": "Landing page", "description": "Five sections", "category": "web", "priceMinor": 20001,
	})
	if status != http.StatusOK {
		t.Fatalf("create job: %d %v", status, body)
	}
	jobID := dataField(t, body, "id").(string)
	if dataField(t, body, "status") != "pending" {
		t.Fatalf("new job: %v", body)
	}

	status, body = doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/jobs/"+jobID+"/approve", adminToken, nil)
	if status != http.StatusOK || dataField(t, body, "status") != "approved" {
		t.Fatalf("approve: %d %v", status, body)
	}

	status, body = doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/payments/deposit-order", clientToken, map[string]any{"jobId": jobID})
	if status != http.StatusOK {
		t.Fatalf("deposit order: %d %v", status, body)
	}
	orderID := dataField(t, body, "orderId").(string)
	if amt := dataField(t, body, "amountMinor").(float64); int64(amt) != 10001 {
		t.Fatalf("deposit amount = %v, want 10001", amt)
	}

	status, body = doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/payments/verify", clientToken, map[string]any{
		"orderId": orderID, "paymentId": "pay_d", "signature": payments.Sign(testKeySecret, orderID, "pay_d"),
	})
	if status != http.StatusOK || dataField(t, body, "status") != "deposit_paid" {
		t.Fatalf("verify deposit: %d %v", status, body)
	}

	status, body = doJSON(t, ts.Client, http.MethodGet, ts.URL+basePath+"/jobs/available", freelancerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("available: %d %v", status, body)
	}
	if pg, ok := body["pagination"].(map[string]any); !ok || pg["total"].(float64) != 1 {
		t.Fatalf("pagination: %v", body)
	}

	status, body = doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/jobs/"+jobID+"/claim", freelancerToken, nil)
	if status != http.StatusOK || dataField(t, body, "status") != "in_progress" {
		t.Fatalf("claim: %d %v", status, body)
	}

	status, body = doMultipart(t, ts.Client, ts.URL+basePath+"/jobs/"+jobID+"/submit", freelancerToken,
		map[string]string{"note": "done"}, map[string]string{"index.html": "<html/>", "style.css": "body{}"})
	if status != http.StatusOK || dataField(t, body, "status") != "completed" {
		t.Fatalf("submit: %d %v", status, body)
	}
	if ds := dataField(t, body, "deliverables").([]any); len(ds) != 2 {
		t.Fatalf("deliverables: %v", ds)
	}

	status, body = doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/jobs/"+jobID+"/revisions", clientToken, map[string]any{"description": "bigger hero"})
	if status != http.StatusOK || dataField(t, body, "status") != "revision_requested" {
		t.Fatalf("request revision: %d %v", status, body)
	}
	revID := dataField(t, body, "revisions").([]any)[0].(map[string]any)["id"].(string)

	status, body = doJSON(t, ts.Client, http.MethodGet, ts.URL+basePath+"/jobs/"+jobID+"/revisions", freelancerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list revisions: %d %v", status, body)
	}
	if rem := dataField(t, body, "revisionsRemaining").(float64); rem != 1 {
		t.Fatalf("revisionsRemaining = %v, want 1", rem)
	}

	status, body = doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/jobs/"+jobID+"/revisions/"+revID+"/start", freelancerToken, nil)
	if status != http.StatusOK || dataField(t, body, "status") != "revision_in_progress" {
		t.Fatalf("start revision: %d %v", status, body)
	}

	status, body = doMultipart(t, ts.Client, ts.URL+basePath+"/jobs/"+jobID+"/submit", freelancerToken,
		map[string]string{"note": "hero enlarged", "revisionId": revID}, map[string]string{"index-v2.html": "<html v2/>"})
	if status != http.StatusOK || dataField(t, body, "status") != "revision_completed" {
		t.Fatalf("submit revision: %d %v", status, body)
	}

	status, body = doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/jobs/"+jobID+"/approve-work", clientToken, nil)
	if status != http.StatusOK || dataField(t, body, "status") != "approved_by_client" {
		t.Fatalf("approve work: %d %v", status, body)
	}

	status, body = doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/payments/final-order", clientToken, map[string]any{"jobId": jobID})
	if status != http.StatusOK {
		t.Fatalf("final order: %d %v", status, body)
	}
	finalOrder := dataField(t, body, "orderId").(string)
	status, body = doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/payments/verify", clientToken, map[string]any{
		"orderId": finalOrder, "paymentId": "pay_f", "signature": payments.Sign(testKeySecret, finalOrder, "pay_f"),
	})
	if status != http.StatusOK || dataField(t, body, "status") != "final_paid" {
		t.Fatalf("verify final: %d %v", status, body)
	}
	if dataField(t, body, "paymentStatus") != "fully_paid" {
		t.Fatalf("payment status: %v", body)
	}
}

func TestClaimConflictOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.newUser(t, domain.RoleAdmin)
	_, clientToken := ts.newUser(t, domain.RoleClient)
	_, first := ts.newUser(t, domain.RoleFreelancer)
	_, second := ts.newUser(t, domain.RoleFreelancer)

	_, body := doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/jobs", clientToken, map[string]any{
		"title": "T", "description": "D", "category": "c", "priceMinor": 1000,
	})
	jobID := dataField(t, body, "id").(string)
	doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/jobs/"+jobID+"/approve", adminToken, nil)
	_, body = doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/payments/deposit-order", clientToken, map[string]any{"jobId": jobID})
	orderID := dataField(t, body, "orderId").(string)
	doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/payments/verify", clientToken, map[string]any{
		"orderId": orderID, "paymentId": "p", "signature": payments.Sign(testKeySecret, orderID, "p"),
	})

	if status, _ := doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/jobs/"+jobID+"/claim", first, nil); status != http.StatusOK {
		t.Fatalf("first claim: %d", status)
	}
	status, errBody := doJSON(t, ts.Client, http.MethodPost, ts.URL+basePath+"/jobs/"+jobID+"/claim", second, nil)
	if status != http.StatusConflict || errBody["success"] != false {
		t.Fatalf("second claim: %d %v", status, errBody)
	}
}

func TestRoleEnforcement(t *testing.T) {
	ts := newTestServer(t)
	_, clientToken := ts.newUser(t, domain.RoleClient)
	_, freelancerToken := ts.newUser(t, domain.RoleFreelancer)

	status, body := doJSON(t, ts.Client, http.MethodGet, ts.URL+basePath+"/admin/users", freelancerToken, nil)
	if status != http.StatusForbidden || body["success"] != false {
		t.Fatalf("freelancer on admin route: %d %v", status, body)
	}
	status, _ = doJSON(t, ts.Client, http.MethodGet, ts.URL+basePath+"/jobs/available", clientToken, nil)
	if status != http.StatusForbidden {
		t.Fatalf("client on contributor route: %d", status)
	}
	status, body = doJSON(t, ts.Client, http.MethodGet, ts.URL+basePath+"/jobs/"+uuid.NewString(), clientToken, nil)
	if status != http.StatusNotFound || body["success"] != false {
		t.Fatalf("missing job: %d %v", status, body)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer(t)
	admin, _ := ts.newUser(t, domain.RoleAdmin)

	raw := "gk_" + uuid.NewString()
	err := ts.Engine.Repo.InsertAPIKey(context.Background(), domain.APIKey{
		ID: uuid.NewString(), UserID: admin.ID, Name: "ci",
		KeyHash: repo.HashAPIKey(raw), CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+basePath+"/admin/users", nil)
	req.Header.Set("X-Api-Key", raw)
	res, err := ts.Client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key auth: %d", res.StatusCode)
	}
}

func TestUserSearchOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.newUser(t, domain.RoleAdmin)
	target, _ := ts.newUser(t, domain.RoleFreelancer)

	url := fmt.Sprintf("%s%s/admin/users?search=%s", ts.URL, basePath, target.ID)
	status, body := doJSON(t, ts.Client, http.MethodGet, url, adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("search: %d %v", status, body)
	}
	if pg := body["pagination"].(map[string]any); pg["total"].(float64) != 1 {
		t.Fatalf("id search total: %v", body)
	}
}
