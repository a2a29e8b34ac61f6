package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/internal/repository"
)

type applicationRepoFake struct {
	mu      sync.Mutex
	apps    map[string]*models.Application
	seq     int
	updates int
}

func newApplicationRepoFake(apps ...models.Application) *applicationRepoFake {
	f := &applicationRepoFake{apps: map[string]*models.Application{}}
	for i := range apps {
		app := apps[i]
		f.apps[app.ID] = &app
	}
	return f
}

func (f *applicationRepoFake) get(id string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *app
	return &cp, nil
}

func (f *applicationRepoFake) FindByID(_ context.Context, id string) (*models.Application, error) {
	return f.get(id)
}

func (f *applicationRepoFake) FindByIDForUpdate(_ context.Context, _ *sqlx.Tx, id string) (*models.Application, error) {
	return f.get(id)
}

func (f *applicationRepoFake) Exists(_ context.Context, programID, studentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, app := range f.apps {
		if app.ProgramID == programID && app.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *applicationRepoFake) Create(_ context.Context, app *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.apps {
		if existing.ProgramID == app.ProgramID && existing.StudentID == app.StudentID {
			return fmt.Errorf("create application (applications_program_student_key): %w", repository.ErrUniqueViolation)
		}
	}
	f.seq++
	app.ID = fmt.Sprintf("app-%d", f.seq)
	cp := *app
	f.apps[app.ID] = &cp
	return nil
}

func (f *applicationRepoFake) List(_ context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ApplicationDetail{}
	if filter.ProgramIDs != nil && len(filter.ProgramIDs) == 0 {
		return out, nil
	}
	for _, app := range f.apps {
		if filter.ProgramIDs != nil && !containsString(filter.ProgramIDs, app.ProgramID) {
			continue
		}
		if filter.ProgramID != "" && app.ProgramID != filter.ProgramID {
			continue
		}
		if filter.StudentID != "" && app.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		out = append(out, models.ApplicationDetail{Application: *app})
	}
	return out, nil
}

func (f *applicationRepoFake) UpdateReviewWithTx(_ context.Context, _ *sqlx.Tx, app *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	cp := *app
	f.apps[app.ID] = &cp
	return nil
}

func (f *applicationRepoFake) Withdraw(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok || app.Status != models.ApplicationStatusPending {
		return false, nil
	}
	app.Status = models.ApplicationStatusWithdrawn
	app.UpdatedAt = at
	return true, nil
}

type enrollmentRepoFake struct {
	mu          sync.Mutex
	enrollments map[string]*models.Enrollment
	seq         int
	names       map[string]string
}

func newEnrollmentRepoFake(enrollments ...models.Enrollment) *enrollmentRepoFake {
	f := &enrollmentRepoFake{enrollments: map[string]*models.Enrollment{}, names: map[string]string{}}
	for i := range enrollments {
		e := enrollments[i]
		f.enrollments[e.ID] = &e
	}
	return f
}

func (f *enrollmentRepoFake) exists(programID, studentID string) bool {
	for _, e := range f.enrollments {
		if e.ProgramID == programID && e.StudentID == studentID {
			return true
		}
	}
	return false
}

func (f *enrollmentRepoFake) count(programID string) int {
	n := 0
	for _, e := range f.enrollments {
		if e.ProgramID == programID {
			n++
		}
	}
	return n
}

func (f *enrollmentRepoFake) Exists(_ context.Context, programID, studentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists(programID, studentID), nil
}

func (f *enrollmentRepoFake) ExistsWithTx(ctx context.Context, _ *sqlx.Tx, programID, studentID string) (bool, error) {
	return f.Exists(ctx, programID, studentID)
}

func (f *enrollmentRepoFake) Count(_ context.Context, programID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count(programID), nil
}

func (f *enrollmentRepoFake) CountWithTx(ctx context.Context, _ *sqlx.Tx, programID string) (int, error) {
	return f.Count(ctx, programID)
}

func (f *enrollmentRepoFake) CreateWithTx(_ context.Context, _ *sqlx.Tx, enrollment *models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exists(enrollment.ProgramID, enrollment.StudentID) {
		return fmt.Errorf("create enrollment (enrollments_program_student_key): %w", repository.ErrUniqueViolation)
	}
	f.seq++
	enrollment.ID = fmt.Sprintf("enr-%d", f.seq)
	cp := *enrollment
	f.enrollments[enrollment.ID] = &cp
	return nil
}

func (f *enrollmentRepoFake) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (f *enrollmentRepoFake) FindByProgramAndStudent(_ context.Context, programID, studentID string) (*models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.enrollments {
		if e.ProgramID == programID && e.StudentID == studentID {
			return &models.EnrollmentDetail{Enrollment: *e, StudentName: f.names[studentID]}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *enrollmentRepoFake) List(_ context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.EnrollmentDetail{}
	if filter.ProgramIDs != nil && len(filter.ProgramIDs) == 0 {
		return out, nil
	}
	for _, e := range f.enrollments {
		if filter.ProgramIDs != nil && !containsString(filter.ProgramIDs, e.ProgramID) {
			continue
		}
		if filter.ProgramID != "" && e.ProgramID != filter.ProgramID {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e, StudentName: f.names[e.StudentID], StudentEmail: e.StudentID + "@example.com"})
	}
	return out, nil
}

func (f *enrollmentRepoFake) UpdateStatus(_ context.Context, id string, status models.EnrollmentStatus, completedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	e.CompletedAt = completedAt
	return nil
}

func (f *enrollmentRepoFake) ProgramIDsForStudent(_ context.Context, studentID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []string{}
	for _, e := range f.enrollments {
		if e.StudentID == studentID && e.Status != models.EnrollmentStatusDropped {
			ids = append(ids, e.ProgramID)
		}
	}
	return ids, nil
}

type programReaderFake struct {
	mentorSet
	programs map[string]models.Program
}

func newProgramReaderFake(mentors mentorSet, programs ...models.Program) *programReaderFake {
	f := &programReaderFake{mentorSet: mentors, programs: map[string]models.Program{}}
	if f.mentorSet == nil {
		f.mentorSet = mentorSet{}
	}
	for _, p := range programs {
		f.programs[p.ID] = p
	}
	return f
}

func (f *programReaderFake) FindByID(_ context.Context, id string) (*models.Program, error) {
	p, ok := f.programs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (f *programReaderFake) FindByIDForUpdate(ctx context.Context, _ *sqlx.Tx, id string) (*models.Program, error) {
	return f.FindByID(ctx, id)
}

type catalogStub struct {
	calls int
}

func (c *catalogStub) Invalidate(context.Context) { c.calls++ }

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func openProgram(id string, max *int) models.Program {
	return models.Program{ID: id, Title: "Program " + id, Status: models.ProgramStatusOpen, MaxStudents: max}
}

func pendingApplication(id, programID, studentID string) models.Application {
	return models.Application{ID: id, ProgramID: programID, StudentID: studentID, Status: models.ApplicationStatusPending}
}
