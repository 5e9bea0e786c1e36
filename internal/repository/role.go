package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/openclaw/interview-server-go/internal/errors"
	"github.com/openclaw/interview-server-go/internal/model"
)

type RoleRepository interface {
	Create(ctx context.Context, params model.CreateRoleParams) (*model.RoleSettings, error)
	FindByRole(ctx context.Context, role string) (*model.RoleSettings, error)
	List(ctx context.Context) ([]model.RoleSettings, error)
	Update(ctx context.Context, role string, params model.UpdateRoleParams) (*model.RoleSettings, error)
}

type roleRepo struct {
	db *sqlx.DB
}

func NewRoleRepository(db *sqlx.DB) RoleRepository {
	return &roleRepo{db: db}
}

func (r *roleRepo) Create(ctx context.Context, params model.CreateRoleParams) (*model.RoleSettings, error) {
	var role model.RoleSettings
	err := r.db.GetContext(ctx, &role, `
		INSERT INTO role_settings (role, custom_questions, job_description)
		VALUES ($1, $2, $3)
		RETURNING role, custom_questions, job_description, created_at, updated_at
	`, params.Role, params.CustomQuestions, params.JobDescription)
	if IsUniqueViolation(err) {
		return nil, apperrors.AlreadyExists("Role").WithCause(err)
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepo) FindByRole(ctx context.Context, role string) (*model.RoleSettings, error) {
	var settings model.RoleSettings
	err := r.db.GetContext(ctx, &settings, `
		SELECT role, custom_questions, job_description, created_at, updated_at
		FROM role_settings WHERE role = $1
	`, role)
	return HandleNotFound(&settings, err)
}

func (r *roleRepo) List(ctx context.Context) ([]model.RoleSettings, error) {
	roles := []model.RoleSettings{}
	err := r.db.SelectContext(ctx, &roles, `
		SELECT role, custom_questions, job_description, created_at, updated_at
		FROM role_settings
		ORDER BY role ASC
	`)
	return roles, err
}

// Update returns nil without error when the role does not exist.
func (r *roleRepo) Update(ctx context.Context, role string, params model.UpdateRoleParams) (*model.RoleSettings, error) {
	var settings model.RoleSettings
	err := r.db.GetContext(ctx, &settings, `
		UPDATE role_settings SET
			custom_questions = $2,
			job_description = $3,
			updated_at = NOW()
		WHERE role = $1
		RETURNING role, custom_questions, job_description, created_at, updated_at
	`, role, params.CustomQuestions, params.JobDescription)
	return HandleNotFound(&settings, err)
}
