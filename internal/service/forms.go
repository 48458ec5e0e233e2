package service

import (
	"context"
	"strings"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Forms
// ============================================================

func (s *CRM) GetForms(ctx context.Context) ([]domain.Form, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetForms")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListForms(ctx, actor)
}

func (s *CRM) GetFormByID(ctx context.Context, id string) (*domain.Form, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetFormByID")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.GetForm(ctx, id, actor)
}

func (s *CRM) CreateForm(ctx context.Context, in *domain.FormInput) (*domain.Form, error) {
	ctx, span := tracer.Start(ctx, "CRM.CreateForm")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Title) == "" {
		return nil, &domain.ErrValidation{Field: "title", Message: "required"}
	}
	if in.Status == "" {
		in.Status = domain.FormStatusActive
	}
	if !domain.ValidFormStatus(in.Status) {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be ativo or inativo"}
	}
	if in.Fields == nil {
		in.Fields = []domain.FormField{}
	}
	in.ApplyVisualDefaults()

	row := map[string]any{
		"title":            strings.TrimSpace(in.Title),
		"description":      in.Description,
		"fields":           in.Fields,
		"status":           in.Status,
		"question_count":   len(in.Fields),
		"logo_url":         in.LogoURL,
		"background_color": in.BackgroundColor,
		"primary_color":    in.PrimaryColor,
		"text_color":       in.TextColor,
		"font_family":      in.FontFamily,
		"button_text":      in.ButtonText,
		"created_by":       actor,
	}

	form, err := s.store.InsertForm(ctx, row)
	if err != nil {
		return nil, translateUnique("forms", "", err)
	}

	s.logger.Info("form created",
		zap.String("form_id", form.ID),
		zap.Int("questions", form.QuestionCount),
	)
	return form, nil
}

func (s *CRM) UpdateForm(ctx context.Context, id string, patch *domain.FormPatch) (*domain.Form, error) {
	ctx, span := tracer.Start(ctx, "CRM.UpdateForm")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, &domain.ErrValidation{Field: "title", Message: "cannot be empty"}
	}
	if patch.Status != nil && !domain.ValidFormStatus(*patch.Status) {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be ativo or inativo"}
	}

	row := patch.Row()
	if len(row) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}

	form, err := s.store.UpdateForm(ctx, id, actor, row)
	if err != nil {
		return nil, translateUnique("forms", "", err)
	}
	return form, nil
}

func (s *CRM) DeleteForm(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "CRM.DeleteForm")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	return s.store.DeleteForm(ctx, id, actor)
}

// GetFormResponses lists responses of a form owned by the caller.
func (s *CRM) GetFormResponses(ctx context.Context, formID string) ([]domain.FormResponse, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetFormResponses")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetForm(ctx, formID, actor); err != nil {
		return nil, err
	}
	return s.store.ListFormResponses(ctx, formID)
}
