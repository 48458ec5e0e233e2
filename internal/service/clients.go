package service

import (
	"context"
	"strings"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Clients
// ============================================================

func (s *CRM) ListClients(ctx context.Context) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "CRM.ListClients")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListClients(ctx, actor)
}

func (s *CRM) CreateClient(ctx context.Context, in *domain.ClientInput) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "CRM.CreateClient")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if in.Status == "" {
		in.Status = domain.ClientStatusActive
	}
	if !domain.ValidClientStatus(in.Status) {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be ativo or inativo"}
	}
	if in.ProfileType == "" {
		in.ProfileType = domain.ProfileRegular
	}
	if !domain.ValidProfileType(in.ProfileType) {
		return nil, &domain.ErrValidation{Field: "profile_type", Message: "must be regular, occasional or vip"}
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}

	row := map[string]any{
		"name":         strings.TrimSpace(in.Name),
		"phone":        in.Phone,
		"status":       in.Status,
		"tags":         in.Tags,
		"profile_type": in.ProfileType,
		"created_by":   actor,
	}
	if in.Email != nil {
		row["email"] = *in.Email
	}
	if in.BirthDate != nil {
		row["birth_date"] = *in.BirthDate
	}

	client, err := s.store.InsertClient(ctx, row)
	if err != nil {
		return nil, translateUnique("clients", "", err)
	}

	s.logger.Info("client created", zap.String("client_id", client.ID), zap.String("actor", actor))
	return client, nil
}

func (s *CRM) UpdateClient(ctx context.Context, id string, patch *domain.ClientPatch) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "CRM.UpdateClient")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil && !domain.ValidClientStatus(*patch.Status) {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be ativo or inativo"}
	}
	if patch.ProfileType != nil && !domain.ValidProfileType(*patch.ProfileType) {
		return nil, &domain.ErrValidation{Field: "profile_type", Message: "must be regular, occasional or vip"}
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "cannot be empty"}
	}

	row := patch.Row()
	if len(row) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}

	client, err := s.store.UpdateClient(ctx, id, actor, row)
	if err != nil {
		return nil, translateUnique("clients", "", err)
	}
	return client, nil
}

func (s *CRM) DeleteClient(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "CRM.DeleteClient")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}

	if err := s.store.DeleteClient(ctx, id, actor); err != nil {
		return err
	}
	s.logger.Info("client deleted", zap.String("client_id", id), zap.String("actor", actor))
	return nil
}
