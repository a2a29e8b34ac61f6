package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/models"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
)

type programRepository interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Program, error)
	List(ctx context.Context, filter models.ProgramFilter) ([]models.ProgramDetail, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, program *models.Program) error
	UpdateWithTx(ctx context.Context, tx *sqlx.Tx, program *models.Program) error
	ReplaceMentorsWithTx(ctx context.Context, tx *sqlx.Tx, programID string, mentorIDs []string) error
	MentorsFor(ctx context.Context, programIDs []string) (map[string][]models.MentorSummary, error)
	IsMentor(ctx context.Context, programID, mentorID string) (bool, error)
	ProgramIDsForMentor(ctx context.Context, mentorID string) ([]string, error)
	BackfillLegacyMentors(ctx context.Context) (int64, error)
}

type studentProgramReader interface {
	ProgramIDsForStudent(ctx context.Context, studentID string) ([]string, error)
}

type programCache interface {
	Lookup(ctx context.Context, key string, dest *[]models.ProgramDetail) bool
	Store(ctx context.Context, key string, programs []models.ProgramDetail)
	Flush(ctx context.Context) error
}

// ProgramService manages the program registry and its mentor assignments.
type ProgramService struct {
	repo        programRepository
	enrollments studentProgramReader
	tx          txProvider
	cache       programCache
	effects     sideEffects
	validator   *validator.Validate
	logger      *zap.Logger
}

// ProgramServiceConfig carries optional collaborators.
type ProgramServiceConfig struct {
	Cache programCache
	Audit auditRecorder
}

// NewProgramService constructs ProgramService.
func NewProgramService(repo programRepository, enrollments studentProgramReader, tx txProvider, cfg ProgramServiceConfig, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{
		repo:        repo,
		enrollments: enrollments,
		tx:          tx,
		cache:       cfg.Cache,
		effects:     newSideEffects(cfg.Audit, nil, logger),
		validator:   validate,
		logger:      logger,
	}
}

// List returns the catalogue visible to the caller. Students only see open
// programs with seats left; mentors only their assigned programs. The bool
// reports a cache hit.
func (s *ProgramService) List(ctx context.Context, caller *models.JWTClaims, query dto.ProgramListQuery) ([]models.ProgramDetail, bool, error) {
	if err := requireCaller(caller); err != nil {
		return nil, false, err
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, false, validationError(err, "invalid program status")
	}
	filter := models.ProgramFilter{Status: models.ProgramStatus(query.Status)}
	switch caller.Role {
	case models.RoleStudent:
		filter.Status = models.ProgramStatusOpen
	case models.RoleMentor:
		ids, err := s.repo.ProgramIDsForMentor(ctx, caller.UserID)
		if err != nil {
			return nil, false, internalError(err, "failed to load mentor programs")
		}
		filter.IDs, filter.IDsSet = ids, true
	}

	key := CatalogKey(caller, filter.Status)
	var cached []models.ProgramDetail
	if s.cache != nil && s.cache.Lookup(ctx, key, &cached) {
		return cached, true, nil
	}

	programs, err := s.load(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if caller.Role == models.RoleStudent {
		programs = withSeats(programs)
	}
	if s.cache != nil {
		s.cache.Store(ctx, key, programs)
	}
	return programs, false, nil
}

// ListMine returns enrolled programs for students, assigned programs for
// mentors and the full catalogue for admins.
func (s *ProgramService) ListMine(ctx context.Context, caller *models.JWTClaims) ([]models.ProgramDetail, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	filter := models.ProgramFilter{}
	switch caller.Role {
	case models.RoleStudent:
		ids, err := s.enrollments.ProgramIDsForStudent(ctx, caller.UserID)
		if err != nil {
			return nil, internalError(err, "failed to load enrolled programs")
		}
		filter.IDs, filter.IDsSet = ids, true
	case models.RoleMentor:
		ids, err := s.repo.ProgramIDsForMentor(ctx, caller.UserID)
		if err != nil {
			return nil, internalError(err, "failed to load mentor programs")
		}
		filter.IDs, filter.IDsSet = ids, true
	}
	return s.load(ctx, filter)
}

// Get returns one program. Students only see open programs; mentors only assigned ones.
func (s *ProgramService) Get(ctx context.Context, caller *models.JWTClaims, id string) (*models.ProgramDetail, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "programId is required")
	}
	programs, err := s.load(ctx, models.ProgramFilter{IDs: []string{id}, IDsSet: true})
	if err != nil {
		return nil, err
	}
	if len(programs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
	}
	program := programs[0]
	switch caller.Role {
	case models.RoleStudent:
		if program.Status != models.ProgramStatusOpen {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
	case models.RoleMentor:
		if err := authorizeProgramStaff(ctx, s.repo, caller, id); err != nil {
			return nil, err
		}
	}
	return &program, nil
}

// Create inserts a program and its mentor assignments atomically. Admin only.
func (s *ProgramService) Create(ctx context.Context, caller *models.JWTClaims, req dto.ProgramRequest) (_ *models.ProgramDetail, err error) {
	if !caller.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can create programs")
	}
	program, err := s.buildProgram(req)
	if err != nil {
		return nil, err
	}
	program.CreatedBy = &caller.UserID
	if program.Status == "" {
		program.Status = models.ProgramStatusDraft
	}
	mentorIDs := uniqueIDs(req.MentorIDs)

	ctx, span := tracer.Start(ctx, "program.create")
	defer func() { finishSpan(span, err) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.CreateWithTx(ctx, tx, program); err != nil {
		return nil, internalError(err, "failed to create program")
	}
	if len(mentorIDs) > 0 {
		if err = s.repo.ReplaceMentorsWithTx(ctx, tx, program.ID, mentorIDs); err != nil {
			return nil, internalError(err, "failed to assign mentors")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit program")
	}

	s.invalidate(ctx)
	s.effects.record(ctx, auditEntry(caller, models.AuditProgramCreate, "program", program.ID, map[string]interface{}{
		"title": program.Title, "status": program.Status, "mentor_ids": mentorIDs,
	}))
	s.logger.Info("program created", zap.String("program_id", program.ID))
	return s.detail(ctx, program.ID)
}

// Update replaces the editable fields of a program. Mentor assignments are
// fully replaced when MentorIDs is present and otherwise carried over,
// moving any legacy assignment into the assignment table. Admin only.
func (s *ProgramService) Update(ctx context.Context, caller *models.JWTClaims, req dto.ProgramRequest) (_ *models.ProgramDetail, err error) {
	if !caller.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can update programs")
	}
	if req.ProgramID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "programId is required")
	}
	changes, err := s.buildProgram(req)
	if err != nil {
		return nil, err
	}

	mentorIDs := uniqueIDs(req.MentorIDs)
	if req.MentorIDs == nil {
		current, err := s.repo.MentorsFor(ctx, []string{req.ProgramID})
		if err != nil {
			return nil, internalError(err, "failed to load program mentors")
		}
		for _, m := range current[req.ProgramID] {
			mentorIDs = append(mentorIDs, m.ID)
		}
	}

	ctx, span := tracer.Start(ctx, "program.update")
	defer func() { finishSpan(span, err) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	program, err := s.repo.FindByIDForUpdate(ctx, tx, req.ProgramID)
	if err != nil {
		return nil, lookupError(err, "program")
	}
	program.Title = changes.Title
	program.Description = changes.Description
	program.StartDate = changes.StartDate
	program.EndDate = changes.EndDate
	program.MaxStudents = changes.MaxStudents
	if changes.Status != "" {
		program.Status = changes.Status
	}
	if err = s.repo.UpdateWithTx(ctx, tx, program); err != nil {
		return nil, lookupError(err, "program")
	}
	if err = s.repo.ReplaceMentorsWithTx(ctx, tx, program.ID, mentorIDs); err != nil {
		return nil, internalError(err, "failed to replace mentors")
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit program")
	}

	s.invalidate(ctx)
	s.effects.record(ctx, auditEntry(caller, models.AuditProgramUpdate, "program", program.ID, map[string]interface{}{
		"title": program.Title, "status": program.Status, "mentor_ids": mentorIDs,
	}))
	return s.detail(ctx, program.ID)
}

// Backfill moves legacy single-mentor assignments into the assignment table.
func (s *ProgramService) Backfill(ctx context.Context) (int64, error) {
	created, err := s.repo.BackfillLegacyMentors(ctx)
	if err != nil {
		return 0, internalError(err, "failed to backfill mentors")
	}
	s.invalidate(ctx)
	s.logger.Info("legacy mentors backfilled", zap.Int64("created", created))
	return created, nil
}

// Invalidate drops every cached catalogue entry.
func (s *ProgramService) Invalidate(ctx context.Context) {
	s.invalidate(ctx)
}

func (s *ProgramService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Warn("program cache invalidation failed", zap.Error(err))
	}
}

func (s *ProgramService) detail(ctx context.Context, id string) (*models.ProgramDetail, error) {
	programs, err := s.load(ctx, models.ProgramFilter{IDs: []string{id}, IDsSet: true})
	if err != nil {
		return nil, err
	}
	if len(programs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
	}
	return &programs[0], nil
}

// load lists programs and attaches mentors and fullness.
func (s *ProgramService) load(ctx context.Context, filter models.ProgramFilter) ([]models.ProgramDetail, error) {
	programs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list programs")
	}
	if len(programs) == 0 {
		return []models.ProgramDetail{}, nil
	}
	ids := make([]string, len(programs))
	for i := range programs {
		ids[i] = programs[i].ID
	}
	mentors, err := s.repo.MentorsFor(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load program mentors")
	}
	for i := range programs {
		p := &programs[i]
		p.Mentors = dedupeMentors(mentors[p.ID])
		limit := p.Limit()
		p.IsFull = limit > 0 && p.EnrollmentsCount >= limit
	}
	return programs, nil
}

func (s *ProgramService) buildProgram(req dto.ProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid program payload")
	}
	title := sanitizeText(req.Title)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	program := &models.Program{
		Title:       title,
		Description: optionalText(req.Description),
		Status:      models.ProgramStatus(req.Status),
	}
	var err error
	if program.StartDate, err = parseDate(req.StartDate); err != nil {
		return nil, err
	}
	if program.EndDate, err = parseDate(req.EndDate); err != nil {
		return nil, err
	}
	if program.StartDate != nil && program.EndDate != nil && program.EndDate.Before(*program.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}
	if req.MaxStudents != nil && *req.MaxStudents > 0 {
		limit := *req.MaxStudents
		program.MaxStudents = &limit
	}
	return program, nil
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q", raw))
	}
	return &t, nil
}

// withSeats drops programs that are full.
func withSeats(programs []models.ProgramDetail) []models.ProgramDetail {
	out := make([]models.ProgramDetail, 0, len(programs))
	for _, p := range programs {
		if !p.IsFull {
			out = append(out, p)
		}
	}
	return out
}

func dedupeMentors(in []models.MentorSummary) []models.MentorSummary {
	out := make([]models.MentorSummary, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, m := range in {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
