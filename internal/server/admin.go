package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gighub/internal/engine"
	"gighub/internal/repo"
)

type userBody struct {
	Success bool    `json:"success"`
	Data    userDTO `json:"data"`
}

type userListBody struct {
	Success    bool       `json:"success"`
	Data       []userDTO  `json:"data"`
	Pagination pagination `json:"pagination"`
}

type userPathInput struct {
	UserID string `path:"userID"`
}

func registerAdmin(api huma.API, base string, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        base + "/admin/users",
		Summary:     "Browse and search accounts",
	}, func(ctx context.Context, input *struct {
		listInput
		Role   string `query:"role"`
		Search string `query:"search"`
	}) (*struct{ Body userListBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		users, total, page, err := e.ListUsers(ctx, actor, input.Role, input.Search, repo.Page{Page: input.Page, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body userListBody }{Body: userListBody{
			Success: true, Data: usersResponse(users), Pagination: paginationFor(page, total),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-user",
		Method:      http.MethodPost,
		Path:        base + "/admin/users",
		Summary:     "Register an account",
	}, func(ctx context.Context, input *struct {
		Body struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Role  string `json:"role"`
		}
	}) (*struct{ Body userBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		u, err := e.CreateUser(ctx, actor, engine.CreateUserInput{
			Name:  input.Body.Name,
			Email: input.Body.Email,
			Role:  input.Body.Role,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body userBody }{Body: userBody{Success: true, Data: userResponse(u)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        base + "/admin/users/{userID}",
		Summary:     "Fetch one account",
	}, func(ctx context.Context, input *userPathInput) (*struct{ Body userBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		u, err := e.GetUser(ctx, actor, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body userBody }{Body: userBody{Success: true, Data: userResponse(u)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user-role",
		Method:      http.MethodPatch,
		Path:        base + "/admin/users/{userID}/role",
		Summary:     "Change an account's role",
	}, func(ctx context.Context, input *struct {
		userPathInput
		Body struct {
			Role string `json:"role"`
		}
	}) (*struct{ Body userBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		u, err := e.UpdateUserRole(ctx, actor, input.UserID, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body userBody }{Body: userBody{Success: true, Data: userResponse(u)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deactivate-user",
		Method:      http.MethodPost,
		Path:        base + "/admin/users/{userID}/deactivate",
		Summary:     "Disable an account",
	}, func(ctx context.Context, input *userPathInput) (*struct{ Body userBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		u, err := e.DeactivateUser(ctx, actor, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body userBody }{Body: userBody{Success: true, Data: userResponse(u)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reactivate-user",
		Method:      http.MethodPost,
		Path:        base + "/admin/users/{userID}/reactivate",
		Summary:     "Re-enable an account",
	}, func(ctx context.Context, input *userPathInput) (*struct{ Body userBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		u, err := e.ReactivateUser(ctx, actor, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body userBody }{Body: userBody{Success: true, Data: userResponse(u)}}, nil
	})
}
