package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/proedge/enrollment-api/internal/dto"
	"github.com/proedge/enrollment-api/internal/models"
	"github.com/proedge/enrollment-api/internal/repository"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
)

type identityUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

type counterAllocator interface {
	Next(ctx context.Context, name string, start int64) (int64, error)
}

// IdentityService resolves the account behind an admission request. Email is
// the identity key: a known email merges the submitted profile into the
// existing account, an unknown one provisions a fresh student account.
type IdentityService struct {
	users    identityUserRepository
	counters counterAllocator
	logger   *zap.Logger
}

// NewIdentityService constructs an IdentityService instance.
func NewIdentityService(users identityUserRepository, counters counterAllocator, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{users: users, counters: counters, logger: logger}
}

// Resolve finds or creates the user for an admission request. Concurrent
// submissions for the same new email race on the unique constraint; the
// loser of the race retries as a merge.
func (s *IdentityService) Resolve(ctx context.Context, req dto.AdmissionRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return s.merge(ctx, user, req)
	case errors.Is(err, sql.ErrNoRows):
		user, err = s.provision(ctx, email, req)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		s.logger.Info("lost identity race, merging instead", zap.String("email", email))
		user, err = s.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-fetch user after duplicate")
		}
		return s.merge(ctx, user, req)
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up user")
	}
}

func (s *IdentityService) provision(ctx context.Context, email string, req dto.AdmissionRequest) (*models.User, error) {
	seq, err := s.counters.Next(ctx, repository.CounterStudentID, 1001)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate student id")
	}
	studentID := fmt.Sprintf("S%d", seq)

	// The contact number doubles as the initial password until the student
	// sets their own.
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Contact), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		StudentID:    &studentID,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Contact:      strings.TrimSpace(req.Contact),
		Role:         models.RoleStudent,
		Status:       models.UserStatusInactive,
	}
	applyProfile(user, req)

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	s.logger.Info("provisioned student account",
		zap.String("user_id", user.ID),
		zap.String("student_id", studentID))
	return user, nil
}

func (s *IdentityService) merge(ctx context.Context, user *models.User, req dto.AdmissionRequest) (*models.User, error) {
	if name := strings.TrimSpace(req.FullName); name != "" {
		user.FullName = name
	}
	if contact := strings.TrimSpace(req.Contact); contact != "" {
		user.Contact = contact
	}
	if user.StudentID == nil || *user.StudentID == "" {
		seq, err := s.counters.Next(ctx, repository.CounterStudentID, 1001)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate student id")
		}
		studentID := fmt.Sprintf("S%d", seq)
		user.StudentID = &studentID
	}
	applyProfile(user, req)

	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// applyProfile copies submitted profile and fee fields onto the user,
// leaving existing values untouched when the request omits a field.
func applyProfile(user *models.User, req dto.AdmissionRequest) {
	setString(&user.DOB, req.DOB)
	setString(&user.Gender, req.Gender)
	setString(&user.Address, req.Address)
	setString(&user.ParentName, req.ParentName)
	setString(&user.ParentContact, req.ParentContact)
	setString(&user.CurrentSchool, req.CurrentSchool)
	setString(&user.ClassYear, req.ClassYear)
	setString(&user.EducationLevel, req.EducationLevel)
	setString(&user.Board, req.Board)
	setString(&user.BatchTiming, req.BatchTiming)
	setInt(&user.TotalFees, req.TotalFees)
	setInt(&user.OriginalFees, req.OriginalFees)
	setInt(&user.Installment1Amount, req.Installment1Amount)
	setString(&user.Installment1Date, req.Installment1Date)
	setInt(&user.Installment2Amount, req.Installment2Amount)
	setString(&user.Installment2Date, req.Installment2Date)
	setInt(&user.Installment3Amount, req.Installment3Amount)
	setString(&user.Installment3Date, req.Installment3Date)
	if req.PaymentMode != "" {
		mode := req.PaymentMode
		user.PaymentMode = &mode
	}
	if req.PaymentOption != "" {
		option := req.PaymentOption
		user.PaymentOption = &option
	}
	if req.ReferralCode != "" {
		code := strings.ToUpper(strings.TrimSpace(req.ReferralCode))
		user.ReferralCode = &code
	}
}

func setString(dst **string, src *string) {
	if src != nil {
		*dst = src
	}
}

func setInt(dst **int64, src *int64) {
	if src != nil {
		*dst = src
	}
}
