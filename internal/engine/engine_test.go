package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"gighub/internal/blob"
	"gighub/internal/config"
	"gighub/internal/db"
	"gighub/internal/domain"
	"gighub/internal/engine/policy"
	"gighub/internal/lifecycle"
	"gighub/internal/migrate"
	"gighub/internal/payments"
	"gighub/internal/repo"
)

const testSecret = "test-key-secret"

type testEnv struct {
	Engine Engine
	Ctx    context.Context
	Fake   *payments.Fake
}

func newTestEnv(t *testing.T) *testEnv {
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
	fake := &payments.Fake{Secret: testSecret}
	e := New(conn, config.Default(), fake, store)

	// Advancing clock keeps created_at ordering deterministic.
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	var mu sync.Mutex
	e.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	e.Events.Now = e.Now
	return &testEnv{Engine: e, Ctx: context.Background(), Fake: fake}
}

func (env *testEnv) newUser(t *testing.T, role string) policy.Actor {
	t.Helper()
	id := uuid.NewString()
	now := env.Engine.now()
	err := env.Engine.Repo.CreateUser(env.Ctx, domain.User{
		ID: id, Name: role + " user", Email: id + "@example.test",
		Role: role, Active: true, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create %s user: %v", role, err)
	}
	return policy.Actor{ID: id, Role: role}
}

func (env *testEnv) newJob(t *testing.T, client policy.Actor, priceMinor int64) domain.Job {
	t.Helper()
	j, err := env.Engine.CreateJob(env.Ctx, client, CreateJobInput{
		Title:       "Logo design",
		Description: "A fresh logo",
		Category:    "design",
		PriceMinor:  priceMinor,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return j
}

// payDeposit walks a pending job through approval and deposit settlement.
func (env *testEnv) payDeposit(t *testing.T, admin, client policy.Actor, jobID string) domain.Job {
	t.Helper()
	if _, err := env.Engine.ApproveJob(env.Ctx, admin, jobID); err != nil {
		t.Fatalf("approve job: %v", err)
	}
	order, err := env.Engine.CreateDepositOrder(env.Ctx, client, jobID)
	if err != nil {
		t.Fatalf("deposit order: %v", err)
	}
	j, err := env.Engine.VerifyPayment(env.Ctx, client, order.OrderID, "pay_dep_1", payments.Sign(testSecret, order.OrderID, "pay_dep_1"))
	if err != nil {
		t.Fatalf("verify deposit: %v", err)
	}
	return j
}

func stagedFile(name, content string) blob.Staged {
	return blob.Staged{Name: name, ContentType: "text/plain", Size: int64(len(content)), Reader: strings.NewReader(content)}
}

func TestJobLifecycleHappyPath(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	client := env.newUser(t, domain.RoleClient)
	freelancer := env.newUser(t, domain.RoleFreelancer)

	j := env.newJob(t, client, 1001)
	if j.Status != string(lifecycle.StatusPending) {
		t.Fatalf("new job status %s", j.Status)
	}

	if _, err := env.Engine.ApproveJob(env.Ctx, admin, j.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	order, err := env.Engine.CreateDepositOrder(env.Ctx, client, j.ID)
	if err != nil {
		t.Fatalf("deposit order: %v", err)
	}
	if order.AmountMinor != 501 {
		t.Fatalf("deposit amount = %d, want 501", order.AmountMinor)
	}
	j, err = env.Engine.VerifyPayment(env.Ctx, client, order.OrderID, "pay_1", payments.Sign(testSecret, order.OrderID, "pay_1"))
	if err != nil {
		t.Fatalf("verify deposit: %v", err)
	}
	if j.Status != string(lifecycle.StatusDepositPaid) || j.PaymentStatus != domain.PaymentStatusDepositPaid {
		t.Fatalf("after deposit: status=%s payment=%s", j.Status, j.PaymentStatus)
	}
	if j.DepositPaidAt == nil || j.DepositPaymentID == nil {
		t.Fatal("deposit settlement fields not set")
	}

	j, err = env.Engine.ClaimJob(env.Ctx, freelancer, j.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if j.Status != string(lifecycle.StatusInProgress) || j.FreelancerID == nil || *j.FreelancerID != freelancer.ID {
		t.Fatalf("after claim: status=%s freelancer=%v", j.Status, j.FreelancerID)
	}

	j, err = env.Engine.SubmitWork(env.Ctx, freelancer, j.ID, SubmissionInput{
		Files: []blob.Staged{stagedFile("logo.svg", "<svg/>"), stagedFile("readme.txt", "notes")},
		Note:  "first pass",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if j.Status != string(lifecycle.StatusCompleted) || len(j.Deliverables) != 2 {
		t.Fatalf("after submit: status=%s deliverables=%d", j.Status, len(j.Deliverables))
	}

	j, err = env.Engine.RequestRevision(env.Ctx, client, j.ID, "make it bluer")
	if err != nil {
		t.Fatalf("request revision: %v", err)
	}
	if j.Status != string(lifecycle.StatusRevisionRequested) || len(j.Revisions) != 1 {
		t.Fatalf("after request: status=%s revisions=%d", j.Status, len(j.Revisions))
	}
	revID := j.Revisions[0].ID

	j, err = env.Engine.StartRevision(env.Ctx, freelancer, j.ID, revID)
	if err != nil {
		t.Fatalf("start revision: %v", err)
	}
	if j.Status != string(lifecycle.StatusRevisionInProgress) {
		t.Fatalf("after start: status=%s", j.Status)
	}

	j, err = env.Engine.SubmitWork(env.Ctx, freelancer, j.ID, SubmissionInput{
		Files:      []blob.Staged{stagedFile("logo-v2.svg", "<svg blue/>")},
		Note:       "bluer now",
		RevisionID: revID,
	})
	if err != nil {
		t.Fatalf("submit revision: %v", err)
	}
	if j.Status != string(lifecycle.StatusRevisionCompleted) {
		t.Fatalf("after revision submit: status=%s", j.Status)
	}
	if j.Revisions[0].Status != domain.RevisionCompleted || len(j.Revisions[0].Deliverables) != 1 {
		t.Fatalf("revision record: %+v", j.Revisions[0])
	}

	j, err = env.Engine.ApproveWork(env.Ctx, client, j.ID)
	if err != nil {
		t.Fatalf("approve work: %v", err)
	}
	if j.Status != string(lifecycle.StatusApprovedByClient) {
		t.Fatalf("after approval: status=%s", j.Status)
	}

	final, err := env.Engine.CreateFinalOrder(env.Ctx, client, j.ID)
	if err != nil {
		t.Fatalf("final order: %v", err)
	}
	if final.AmountMinor != 501 {
		t.Fatalf("final amount = %d, want 501", final.AmountMinor)
	}
	j, err = env.Engine.VerifyPayment(env.Ctx, client, final.OrderID, "pay_2", payments.Sign(testSecret, final.OrderID, "pay_2"))
	if err != nil {
		t.Fatalf("verify final: %v", err)
	}
	if j.Status != string(lifecycle.StatusFinalPaid) || j.PaymentStatus != domain.PaymentStatusFullyPaid {
		t.Fatalf("after final: status=%s payment=%s", j.Status, j.PaymentStatus)
	}
}

func TestSplitAmount(t *testing.T) {
	cases := []struct{ price, want int64 }{
		{1000, 500},
		{1001, 501},
		{1, 1},
		{2, 1},
		{999999, 500000},
	}
	for _, c := range cases {
		if got := payments.SplitAmount(c.price); got != c.want {
			t.Fatalf("SplitAmount(%d) = %d, want %d", c.price, got, c.want)
		}
	}
}

func TestClaimRace(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	client := env.newUser(t, domain.RoleClient)
	j := env.newJob(t, client, 1000)
	env.payDeposit(t, admin, client, j.ID)

	const claimers = 8
	actors := make([]policy.Actor, claimers)
	for i := range actors {
		actors[i] = env.newUser(t, domain.RoleFreelancer)
	}

	var wg sync.WaitGroup
	results := make([]error, claimers)
	for i := range actors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.Engine.ClaimJob(env.Ctx, actors[i], j.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		var ce ConflictError
		if !errors.As(err, &ce) {
			t.Fatalf("loser got %v, want conflict", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d claims won, want exactly 1", wins)
	}
}

func TestClaimUnavailable(t *testing.T) {
	env := newTestEnv(t)
	client := env.newUser(t, domain.RoleClient)
	freelancer := env.newUser(t, domain.RoleFreelancer)

	j := env.newJob(t, client, 1000)
	_, err := env.Engine.ClaimJob(env.Ctx, freelancer, j.ID)
	var ce ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("claiming a pending job: %v, want conflict", err)
	}

	_, err = env.Engine.ClaimJob(env.Ctx, freelancer, uuid.NewString())
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("claiming a missing job: %v, want not found", err)
	}
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	client := env.newUser(t, domain.RoleClient)
	j := env.newJob(t, client, 1000)
	if _, err := env.Engine.ApproveJob(env.Ctx, admin, j.ID); err != nil {
		t.Fatal(err)
	}
	order, err := env.Engine.CreateDepositOrder(env.Ctx, client, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	sig := payments.Sign(testSecret, order.OrderID, "pay_1")
	first, err := env.Engine.VerifyPayment(env.Ctx, client, order.OrderID, "pay_1", sig)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	again, err := env.Engine.VerifyPayment(env.Ctx, client, order.OrderID, "pay_1", sig)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if again.Status != first.Status || again.PaymentStatus != first.PaymentStatus {
		t.Fatalf("re-verify changed the job: %+v vs %+v", again, first)
	}
	if *again.DepositPaymentID != "pay_1" || *again.DepositPaidAt != *first.DepositPaidAt {
		t.Fatal("re-verify touched settlement fields")
	}
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	client := env.newUser(t, domain.RoleClient)
	j := env.newJob(t, client, 1000)
	if _, err := env.Engine.ApproveJob(env.Ctx, admin, j.ID); err != nil {
		t.Fatal(err)
	}
	order, err := env.Engine.CreateDepositOrder(env.Ctx, client, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.VerifyPayment(env.Ctx, client, order.OrderID, "pay_1", "bogus")
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("bad signature: %v, want validation error", err)
	}
	got, err := env.Engine.Repo.GetJob(env.Ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != string(lifecycle.StatusApproved) {
		t.Fatalf("job moved on a bad signature: %s", got.Status)
	}
}

// advanceOnCreate runs a callback before delegating order creation, so a
// test can move the job along while the processor call is in flight.
type advanceOnCreate struct {
	payments.Processor
	advance func()
}

func (p advanceOnCreate) CreateOrder(ctx context.Context, in payments.CreateOrderInput) (payments.Order, error) {
	p.advance()
	return p.Processor.CreateOrder(ctx, in)
}

func TestCreateOrderAfterJobAdvanced(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	client := env.newUser(t, domain.RoleClient)
	j := env.newJob(t, client, 2000)
	if _, err := env.Engine.ApproveJob(env.Ctx, admin, j.ID); err != nil {
		t.Fatal(err)
	}

	// Settle the deposit through a plain engine after the hooked one has
	// passed its payability check but before it stores the order id.
	plain := env.Engine
	hooked := env.Engine
	hooked.Payments = advanceOnCreate{Processor: env.Fake, advance: func() {
		order, err := plain.CreateDepositOrder(env.Ctx, client, j.ID)
		if err != nil {
			t.Fatalf("deposit order: %v", err)
		}
		if _, err := plain.VerifyPayment(env.Ctx, client, order.OrderID, "pay_first", payments.Sign(testSecret, order.OrderID, "pay_first")); err != nil {
			t.Fatalf("verify deposit: %v", err)
		}
	}}

	_, err := hooked.CreateDepositOrder(env.Ctx, client, j.ID)
	var ce ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("order on an advanced job: %v, want conflict", err)
	}
	got, err := env.Engine.Repo.GetJob(env.Ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != string(lifecycle.StatusDepositPaid) {
		t.Fatalf("status %s, want deposit_paid", got.Status)
	}
	if got.DepositOrderID == nil || *got.DepositOrderID != "order_fake_0001" {
		t.Fatalf("deposit order id overwritten: %v", got.DepositOrderID)
	}
}

func TestSubmitWorkUnknownRevision(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	client := env.newUser(t, domain.RoleClient)
	freelancer := env.newUser(t, domain.RoleFreelancer)
	j := env.newJob(t, client, 1000)
	env.payDeposit(t, admin, client, j.ID)
	if _, err := env.Engine.ClaimJob(env.Ctx, freelancer, j.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitWork(env.Ctx, freelancer, j.ID, SubmissionInput{
		Files: []blob.Staged{stagedFile("a.txt", "a")},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RequestRevision(env.Ctx, client, j.ID, "tweak"); err != nil {
		t.Fatal(err)
	}

	_, err := env.Engine.SubmitWork(env.Ctx, freelancer, j.ID, SubmissionInput{
		Files:      []blob.Staged{stagedFile("b.txt", "b")},
		RevisionID: uuid.NewString(),
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown revision id: %v, want not found", err)
	}
	got, err := env.Engine.Repo.GetJob(env.Ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != string(lifecycle.StatusRevisionRequested) {
		t.Fatalf("job moved on unknown revision: %s", got.Status)
	}

	// Same answer while the job is still in progress. The id lookup wins
	// over the status check, so it is not-found rather than a conflict.
	j2 := env.newJob(t, client, 1000)
	env.payDeposit(t, admin, client, j2.ID)
	if _, err := env.Engine.ClaimJob(env.Ctx, freelancer, j2.ID); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.SubmitWork(env.Ctx, freelancer, j2.ID, SubmissionInput{
		Files:      []blob.Staged{stagedFile("c.txt", "c")},
		RevisionID: uuid.NewString(),
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown revision id on in-progress job: %v, want not found", err)
	}
}

func TestRevisionLimit(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	client := env.newUser(t, domain.RoleClient)
	freelancer := env.newUser(t, domain.RoleFreelancer)
	j := env.newJob(t, client, 1000)
	env.payDeposit(t, admin, client, j.ID)
	if _, err := env.Engine.ClaimJob(env.Ctx, freelancer, j.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitWork(env.Ctx, freelancer, j.ID, SubmissionInput{
		Files: []blob.Staged{stagedFile("a.txt", "a")},
	}); err != nil {
		t.Fatal(err)
	}

	for round := 1; round <= 2; round++ {
		got, err := env.Engine.RequestRevision(env.Ctx, client, j.ID, "round")
		if err != nil {
			t.Fatalf("revision %d: %v", round, err)
		}
		revID := got.Revisions[len(got.Revisions)-1].ID
		if _, err := env.Engine.SubmitWork(env.Ctx, freelancer, j.ID, SubmissionInput{
			Files:      []blob.Staged{stagedFile("r.txt", "r")},
			RevisionID: revID,
		}); err != nil {
			t.Fatalf("submit revision %d: %v", round, err)
		}
	}

	_, err := env.Engine.RequestRevision(env.Ctx, client, j.ID, "one too many")
	var ce ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("third revision: %v, want conflict", err)
	}

	_, remaining, err := env.Engine.ListRevisions(env.Ctx, client, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Fatalf("revisions remaining = %d, want 0", remaining)
	}
}

func TestSubmitWorkPolicy(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	client := env.newUser(t, domain.RoleClient)
	assigned := env.newUser(t, domain.RoleFreelancer)
	other := env.newUser(t, domain.RoleFreelancer)
	j := env.newJob(t, client, 1000)
	env.payDeposit(t, admin, client, j.ID)
	if _, err := env.Engine.ClaimJob(env.Ctx, assigned, j.ID); err != nil {
		t.Fatal(err)
	}

	_, err := env.Engine.SubmitWork(env.Ctx, other, j.ID, SubmissionInput{
		Files: []blob.Staged{stagedFile("a.txt", "a")},
	})
	var fe policy.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("foreign freelancer submit: %v, want forbidden", err)
	}

	_, err = env.Engine.SubmitWork(env.Ctx, assigned, j.ID, SubmissionInput{})
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("empty submission: %v, want validation error", err)
	}
}

func TestAdminGuards(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	client := env.newUser(t, domain.RoleClient)

	_, err := env.Engine.DeactivateUser(env.Ctx, admin, admin.ID)
	var fe policy.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("self-deactivation: %v, want forbidden", err)
	}

	_, err = env.Engine.UpdateUserRole(env.Ctx, admin, admin.ID, domain.RoleClient)
	var ce ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("demoting last admin: %v, want conflict", err)
	}

	second := env.newUser(t, domain.RoleAdmin)
	if _, err := env.Engine.DeactivateUser(env.Ctx, admin, second.ID); err != nil {
		t.Fatalf("deactivating a spare admin: %v", err)
	}
	// second is inactive again, admin is once more the last one standing.
	_, err = env.Engine.DeactivateUser(env.Ctx, second, admin.ID)
	if !errors.As(err, &ce) {
		t.Fatalf("deactivating last active admin: %v, want conflict", err)
	}

	u, err := env.Engine.ReactivateUser(env.Ctx, admin, second.ID)
	if err != nil || !u.Active {
		t.Fatalf("reactivate: %v active=%v", err, u.Active)
	}
	if _, err := env.Engine.UpdateUserRole(env.Ctx, admin, client.ID, "superuser"); err == nil {
		t.Fatal("unknown role accepted")
	}
}

func TestListAvailableJobsPagination(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	client := env.newUser(t, domain.RoleClient)
	freelancer := env.newUser(t, domain.RoleFreelancer)
	for i := 0; i < 25; i++ {
		j := env.newJob(t, client, 1000)
		env.payDeposit(t, admin, client, j.ID)
	}

	jobs, total, page, err := env.Engine.ListAvailableJobs(env.Ctx, freelancer, "", repo.Page{Page: 2, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 25 || len(jobs) != 10 {
		t.Fatalf("page 2: total=%d len=%d", total, len(jobs))
	}
	if got := repo.TotalPages(total, page.Limit); got != 3 {
		t.Fatalf("totalPages = %d, want 3", got)
	}

	jobs, total, _, err = env.Engine.ListAvailableJobs(env.Ctx, freelancer, "", repo.Page{Page: 4, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 25 || len(jobs) != 0 {
		t.Fatalf("out-of-range page: total=%d len=%d", total, len(jobs))
	}

	// Defaults apply when the caller sends nothing.
	jobs, _, page, err = env.Engine.ListAvailableJobs(env.Ctx, freelancer, "", repo.Page{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Page != 1 || page.Limit != 10 || len(jobs) != 10 {
		t.Fatalf("defaults: page=%+v len=%d", page, len(jobs))
	}
}

func TestUserSearch(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	target, err := env.Engine.CreateUser(env.Ctx, admin, CreateUserInput{
		Name: "Asha Verma", Email: "asha@example.test", Role: domain.RoleClient,
	})
	if err != nil {
		t.Fatal(err)
	}

	users, total, _, err := env.Engine.ListUsers(env.Ctx, admin, "", "ASHA", repo.Page{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || users[0].ID != target.ID {
		t.Fatalf("name search: total=%d", total)
	}

	users, total, _, err = env.Engine.ListUsers(env.Ctx, admin, "", target.ID, repo.Page{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || users[0].ID != target.ID {
		t.Fatalf("id search: total=%d", total)
	}

	_, total, _, err = env.Engine.ListUsers(env.Ctx, admin, domain.RoleFreelancer, "", repo.Page{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Fatalf("role filter: total=%d", total)
	}
}

func TestContributorStats(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, domain.RoleAdmin)
	client := env.newUser(t, domain.RoleClient)
	freelancer := env.newUser(t, domain.RoleFreelancer)

	open := env.newJob(t, client, 1000)
	env.payDeposit(t, admin, client, open.ID)

	active := env.newJob(t, client, 2000)
	env.payDeposit(t, admin, client, active.ID)
	if _, err := env.Engine.ClaimJob(env.Ctx, freelancer, active.ID); err != nil {
		t.Fatal(err)
	}

	paid := env.newJob(t, client, 3000)
	env.payDeposit(t, admin, client, paid.ID)
	if _, err := env.Engine.ClaimJob(env.Ctx, freelancer, paid.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitWork(env.Ctx, freelancer, paid.ID, SubmissionInput{
		Files: []blob.Staged{stagedFile("a.txt", "a")},
	}); err != nil {
		t.Fatal(err)
	}
	final, err := env.Engine.CreateFinalOrder(env.Ctx, client, paid.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.VerifyPayment(env.Ctx, client, final.OrderID, "pay_f", payments.Sign(testSecret, final.OrderID, "pay_f")); err != nil {
		t.Fatal(err)
	}

	stats, err := env.Engine.ContributorStats(env.Ctx, freelancer)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ActiveJobs != 1 || stats.CompletedJobs != 1 || stats.AvailableJobs != 1 {
		t.Fatalf("stats: %+v", stats)
	}
	if stats.TotalEarningsMinor != 3000 {
		t.Fatalf("earnings = %d, want 3000", stats.TotalEarningsMinor)
	}
}
