package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"gighub/internal/blob"
	"gighub/internal/config"
	"gighub/internal/db"
	"gighub/internal/domain"
	"gighub/internal/engine"
	"gighub/internal/migrate"
	"gighub/internal/payments"
	"gighub/internal/server"
	gighubsdk "gighub/sdk/go"
)

// Smoke check: runs the API in-process and walks one job from posting
// to the final payment through the SDK.
func main() {
	workspace, err := os.MkdirTemp("", "gighub-check")
	must(err)
	defer os.RemoveAll(workspace)

	_, err = db.EnsureWorkspace(workspace)
	must(err)
	conn, err := db.Open(db.Config{Workspace: workspace})
	must(err)
	defer conn.Close()
	must(migrate.Migrate(conn))

	store, err := blob.NewDiskStore(workspace+"/uploads", "/uploads")
	must(err)
	keySecret := "check-key-secret"
	fake := &payments.Fake{Secret: keySecret}
	e := engine.New(conn, config.Default(), fake, store)

	ctx := context.Background()
	clientID := seedUser(ctx, e, "Check Client", domain.RoleClient)
	freelancerID := seedUser(ctx, e, "Check Freelancer", domain.RoleFreelancer)
	adminID := seedUser(ctx, e, "Check Admin", domain.RoleAdmin)

	jwtSecret := "check-jwt-secret"
	h, err := server.New(server.Config{
		Engine: e,
		Auth:   server.AuthConfig{JWTSecret: jwtSecret},
	})
	must(err)
	ts := httptest.NewServer(h)
	defer ts.Close()

	client := sdkFor(ts.URL, jwtSecret, clientID)
	freelancer := sdkFor(ts.URL, jwtSecret, freelancerID)
	admin := sdkFor(ts.URL, jwtSecret, adminID)

	job, err := client.CreateJob(ctx, "Logo refresh", "New logo and brand sheet", "design", 25000)
	must(err)
	job, err = admin.ApproveJob(ctx, job.ID)
	must(err)

	order, err := client.CreateDepositOrder(ctx, job.ID)
	must(err)
	job, err = client.VerifyPayment(ctx, order.OrderID, "pay_check_1", payments.Sign(keySecret, order.OrderID, "pay_check_1"))
	must(err)

	job, err = freelancer.ClaimJob(ctx, job.ID)
	must(err)
	job, err = freelancer.SubmitWork(ctx, job.ID, "first pass", "", []gighubsdk.SubmissionFile{
		{Name: "logo.svg", ContentType: "image/svg+xml", Reader: strings.NewReader("<svg/>")},
	})
	must(err)

	job, err = client.ApproveWork(ctx, job.ID)
	must(err)
	order, err = client.CreateFinalOrder(ctx, job.ID)
	must(err)
	job, err = client.VerifyPayment(ctx, order.OrderID, "pay_check_2", payments.Sign(keySecret, order.OrderID, "pay_check_2"))
	must(err)

	fmt.Printf("job=%s status=%s payment=%s deliverables=%d\n",
		job.ID, job.Status, job.PaymentStatus, len(job.Deliverables))
	if job.Status != "final_paid" || job.PaymentStatus != "fully_paid" {
		fmt.Println("FAIL: unexpected terminal state")
		os.Exit(1)
	}
	fmt.Println("OK")
}

func seedUser(ctx context.Context, e engine.Engine, name, role string) string {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	err := e.Repo.CreateUser(ctx, domain.User{
		ID:        id,
		Name:      name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	must(err)
	return id
}

func sdkFor(baseURL, jwtSecret, userID string) *gighubsdk.Client {
	token, err := server.SignToken(jwtSecret, userID, time.Hour)
	must(err)
	c := gighubsdk.New(baseURL)
	c.BearerToken = token
	return c
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
