package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gighub/internal/engine"
	"gighub/internal/repo"
)

type jobBody struct {
	Success bool   `json:"success"`
	Data    jobDTO `json:"data"`
}

type jobListBody struct {
	Success    bool       `json:"success"`
	Data       []jobDTO   `json:"data"`
	Pagination pagination `json:"pagination"`
}

type revisionsBody struct {
	Success bool `json:"success"`
	Data    struct {
		Revisions          []revisionDTO `json:"revisions"`
		RevisionsRemaining int           `json:"revisionsRemaining"`
	} `json:"data"`
}

type statsBody struct {
	Success bool     `json:"success"`
	Data    statsDTO `json:"data"`
}

type JobPathInput struct {
	JobID string `path:"jobID"`
}

type listInput struct {
	Page  int `query:"page"`
	Limit int `query:"limit"`
}

func registerJobs(api huma.API, base string, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-job",
		Method:      http.MethodPost,
		Path:        base + "/jobs",
		Summary:     "Post a new job",
	}, func(ctx context.Context, input *struct {
		Body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Category    string `json:"category"`
			PriceMinor  int64  `json:"priceMinor"`
		}
	}) (*struct{ Body jobBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		j, err := e.CreateJob(ctx, actor, engine.CreateJobInput{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Category:    input.Body.Category,
			PriceMinor:  input.Body.PriceMinor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body jobBody }{Body: jobBody{Success: true, Data: jobResponse(j)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-available-jobs",
		Method:      http.MethodGet,
		Path:        base + "/jobs/available",
		Summary:     "Jobs open for claiming",
	}, func(ctx context.Context, input *struct {
		listInput
		Category string `query:"category"`
	}) (*struct{ Body jobListBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		jobs, total, page, err := e.ListAvailableJobs(ctx, actor, input.Category, repo.Page{Page: input.Page, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body jobListBody }{Body: jobListBody{
			Success: true, Data: jobsResponse(jobs), Pagination: paginationFor(page, total),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-jobs",
		Method:      http.MethodGet,
		Path:        base + "/jobs/mine",
		Summary:     "The calling freelancer's assignments",
	}, func(ctx context.Context, input *struct {
		listInput
		Status string `query:"status"`
	}) (*struct{ Body jobListBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		jobs, total, page, err := e.ListMyJobs(ctx, actor, input.Status, repo.Page{Page: input.Page, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body jobListBody }{Body: jobListBody{
			Success: true, Data: jobsResponse(jobs), Pagination: paginationFor(page, total),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-client-jobs",
		Method:      http.MethodGet,
		Path:        base + "/jobs/client",
		Summary:     "The calling client's jobs",
	}, func(ctx context.Context, input *struct {
		listInput
		Status string `query:"status"`
	}) (*struct{ Body jobListBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		jobs, total, page, err := e.ListClientJobs(ctx, actor, input.Status, repo.Page{Page: input.Page, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body jobListBody }{Body: jobListBody{
			Success: true, Data: jobsResponse(jobs), Pagination: paginationFor(page, total),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        base + "/jobs/{jobID}",
		Summary:     "Fetch one job",
	}, func(ctx context.Context, input *JobPathInput) (*struct{ Body jobBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		j, err := e.GetJob(ctx, actor, input.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body jobBody }{Body: jobBody{Success: true, Data: jobResponse(j)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-job",
		Method:      http.MethodPost,
		Path:        base + "/jobs/{jobID}/approve",
		Summary:     "Admin approval of a pending job",
	}, func(ctx context.Context, input *JobPathInput) (*struct{ Body jobBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		j, err := e.ApproveJob(ctx, actor, input.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body jobBody }{Body: jobBody{Success: true, Data: jobResponse(j)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "claim-job",
		Method:      http.MethodPost,
		Path:        base + "/jobs/{jobID}/claim",
		Summary:     "Claim an open job",
	}, func(ctx context.Context, input *JobPathInput) (*struct{ Body jobBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		j, err := e.ClaimJob(ctx, actor, input.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body jobBody }{Body: jobBody{Success: true, Data: jobResponse(j)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-work",
		Method:      http.MethodPost,
		Path:        base + "/jobs/{jobID}/approve-work",
		Summary:     "Client acceptance of submitted work",
	}, func(ctx context.Context, input *JobPathInput) (*struct{ Body jobBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		j, err := e.ApproveWork(ctx, actor, input.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body jobBody }{Body: jobBody{Success: true, Data: jobResponse(j)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-revisions",
		Method:      http.MethodGet,
		Path:        base + "/jobs/{jobID}/revisions",
		Summary:     "A job's revision rounds",
	}, func(ctx context.Context, input *JobPathInput) (*struct{ Body revisionsBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		revs, remaining, err := e.ListRevisions(ctx, actor, input.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct{ Body revisionsBody }{}
		out.Body.Success = true
		out.Body.Data.Revisions = make([]revisionDTO, 0, len(revs))
		for _, rev := range revs {
			out.Body.Data.Revisions = append(out.Body.Data.Revisions, revisionResponse(rev))
		}
		out.Body.Data.RevisionsRemaining = remaining
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-revision",
		Method:      http.MethodPost,
		Path:        base + "/jobs/{jobID}/revisions",
		Summary:     "Client request for a revision round",
	}, func(ctx context.Context, input *struct {
		JobPathInput
		Body struct {
			Description string `json:"description"`
		}
	}) (*struct{ Body jobBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		j, err := e.RequestRevision(ctx, actor, input.JobID, input.Body.Description)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body jobBody }{Body: jobBody{Success: true, Data: jobResponse(j)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-revision",
		Method:      http.MethodPost,
		Path:        base + "/jobs/{jobID}/revisions/{revisionID}/start",
		Summary:     "Freelancer acknowledgement of a revision request",
	}, func(ctx context.Context, input *struct {
		JobPathInput
		RevisionID string `path:"revisionID"`
	}) (*struct{ Body jobBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		j, err := e.StartRevision(ctx, actor, input.JobID, input.RevisionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body jobBody }{Body: jobBody{Success: true, Data: jobResponse(j)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "contributor-stats",
		Method:      http.MethodGet,
		Path:        base + "/contributor/stats",
		Summary:     "Freelancer dashboard counters",
	}, func(ctx context.Context, _ *struct{}) (*struct{ Body statsBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		stats, err := e.ContributorStats(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body statsBody }{Body: statsBody{Success: true, Data: statsResponse(stats)}}, nil
	})
}
