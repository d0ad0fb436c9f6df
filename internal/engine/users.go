package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gighub/internal/domain"
	"gighub/internal/engine/policy"
	"gighub/internal/events"
	"gighub/internal/repo"
)

type CreateUserInput struct {
	Name  string
	Email string
	Role  string
}

// CreateUser registers an account. Exposed to admins and the CLI; there
// is no self-service signup flow here.
func (e Engine) CreateUser(ctx context.Context, actor policy.Actor, in CreateUserInput) (domain.User, error) {
	if err := policy.RequireRole(actor, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return domain.User{}, ValidationError{Msg: "name is required"}
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return domain.User{}, ValidationError{Msg: "a valid email is required"}
	}
	if !domain.ValidRole(in.Role) {
		return domain.User{}, ValidationError{Msg: "unknown role " + in.Role}
	}
	if _, err := e.Repo.GetUserByEmail(ctx, in.Email); err == nil {
		return domain.User{}, ConflictError{Msg: "email is already registered"}
	}

	now := e.now()
	u := domain.User{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Role:      in.Role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.CreateUser(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// ListUsers pages through accounts for the admin console. Search matches
// name and email case-insensitively, and the exact id when the term has
// id length.
func (e Engine) ListUsers(ctx context.Context, actor policy.Actor, role, search string, p repo.Page) ([]domain.User, int, repo.Page, error) {
	if err := policy.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, 0, p, err
	}
	if role != "" && !domain.ValidRole(role) {
		return nil, 0, p, ValidationError{Msg: "unknown role " + role}
	}
	p = normalizePage(p)
	users, total, err := e.Repo.ListUsers(ctx, repo.UserFilters{Role: role, Search: search}, p)
	return users, total, p, err
}

func (e Engine) GetUser(ctx context.Context, actor policy.Actor, id string) (domain.User, error) {
	if err := policy.RequireRole(actor, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

// UpdateUserRole changes an account's role. Demoting the last active
// admin is refused; the system never runs without one.
func (e Engine) UpdateUserRole(ctx context.Context, actor policy.Actor, id, role string) (domain.User, error) {
	if err := policy.RequireRole(actor, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	if !domain.ValidRole(role) {
		return domain.User{}, ValidationError{Msg: "unknown role " + role}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	u, err := e.Repo.GetUserTx(ctx, tx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	if u.Role == domain.RoleAdmin && role != domain.RoleAdmin && u.Active {
		n, err := e.Repo.CountActiveAdminsTx(ctx, tx)
		if err != nil {
			return domain.User{}, err
		}
		if n <= 1 {
			return domain.User{}, ConflictError{Msg: "cannot demote the last active admin"}
		}
	}
	now := e.now()
	if err := e.Repo.UpdateUserRoleTx(ctx, tx, id, role, now); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "user.role_changed", "user", id, actor.ID, events.EventPayload{"role": role}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	u.Role = role
	u.UpdatedAt = now
	return u, nil
}

// DeactivateUser disables an account. Admins cannot deactivate
// themselves, and the last active admin cannot be deactivated by anyone.
func (e Engine) DeactivateUser(ctx context.Context, actor policy.Actor, id string) (domain.User, error) {
	if err := policy.RequireRole(actor, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	if id == actor.ID {
		return domain.User{}, policy.ForbiddenError{Action: "admins cannot deactivate their own account"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	u, err := e.Repo.GetUserTx(ctx, tx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	if u.Role == domain.RoleAdmin && u.Active {
		n, err := e.Repo.CountActiveAdminsTx(ctx, tx)
		if err != nil {
			return domain.User{}, err
		}
		if n <= 1 {
			return domain.User{}, ConflictError{Msg: "cannot deactivate the last active admin"}
		}
	}
	now := e.now()
	if err := e.Repo.SetUserActiveTx(ctx, tx, id, false, now); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "user.deactivated", "user", id, actor.ID, nil); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	u.Active = false
	u.UpdatedAt = now
	return u, nil
}

// ReactivateUser re-enables a disabled account.
func (e Engine) ReactivateUser(ctx context.Context, actor policy.Actor, id string) (domain.User, error) {
	if err := policy.RequireRole(actor, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	u, err := e.Repo.GetUserTx(ctx, tx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	now := e.now()
	if err := e.Repo.SetUserActiveTx(ctx, tx, id, true, now); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "user.reactivated", "user", id, actor.ID, nil); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	u.Active = true
	u.UpdatedAt = now
	return u, nil
}
