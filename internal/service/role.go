package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/interview-server-go/internal/errors"
	"github.com/openclaw/interview-server-go/internal/model"
	"github.com/openclaw/interview-server-go/internal/repository"
)

type RoleService struct {
	repo repository.RoleRepository
}

func NewRoleService(repo repository.RoleRepository) *RoleService {
	return &RoleService{repo: repo}
}

func (s *RoleService) Create(ctx context.Context, params model.CreateRoleParams) (*model.RoleSettings, error) {
	params.Role = strings.TrimSpace(params.Role)
	if params.Role == "" {
		return nil, apperrors.MissingRequired("role")
	}
	if strings.Contains(params.Role, "/") {
		return nil, apperrors.InvalidInput("role", "must not contain '/'")
	}

	role, err := s.repo.Create(ctx, params)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Database(err)
	}

	log.Info().Str("role", role.Role).Msg("role created")
	return role, nil
}

func (s *RoleService) List(ctx context.Context) ([]model.RoleSettings, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return roles, nil
}

func (s *RoleService) Get(ctx context.Context, role string) (*model.RoleSettings, error) {
	settings, err := s.repo.FindByRole(ctx, role)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if settings == nil {
		return nil, apperrors.NotFound("Role")
	}
	return settings, nil
}

func (s *RoleService) Update(ctx context.Context, role string, params model.UpdateRoleParams) (*model.RoleSettings, error) {
	settings, err := s.repo.Update(ctx, role, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if settings == nil {
		return nil, apperrors.NotFound("Role")
	}

	log.Info().Str("role", role).Msg("role updated")
	return settings, nil
}
