// Package ledger records store credit issued to buyers. Entries are append
// only and keyed by (pre-order, reason) so a refund is credited at most once.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/designdrop-backend/pkg/db"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service defines the store credit operations.
type Service interface {
	IssueStoreCredit(ctx context.Context, tx *gorm.DB, input IssueCreditInput) (*models.StoreCreditEntry, bool, error)
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.StoreCreditEntry, error)
}

// IssueCreditInput captures the immutable data a credit entry requires.
type IssueCreditInput struct {
	UserID     uuid.UUID          `json:"user_id"`
	PreOrderID *uuid.UUID         `json:"pre_order_id,omitempty"`
	DesignID   *uuid.UUID         `json:"design_id,omitempty"`
	Reason     enums.CreditReason `json:"reason"`
	Amount     decimal.Decimal    `json:"amount"`
	Note       string             `json:"note,omitempty"`
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// IssueStoreCredit appends a credit entry. When the entry is tied to a pre-order
// and one already exists for the same reason, the existing entry is returned
// and the bool result is false.
func (s *service) IssueStoreCredit(ctx context.Context, tx *gorm.DB, input IssueCreditInput) (*models.StoreCreditEntry, bool, error) {
	if err := validateCredit(input); err != nil {
		return nil, false, err
	}
	repo := s.repo.WithTx(tx)

	if input.PreOrderID != nil {
		existing, err := repo.FindByOrderReason(ctx, *input.PreOrderID, input.Reason)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	entry := &models.StoreCreditEntry{
		UserID:     input.UserID,
		PreOrderID: input.PreOrderID,
		DesignID:   input.DesignID,
		Reason:     input.Reason,
		Amount:     input.Amount.Round(2),
	}
	if note := strings.TrimSpace(input.Note); note != "" {
		entry.Note = &note
	}

	if err := repo.Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "store credit already issued for order")
		}
		return nil, false, err
	}
	return entry, true, nil
}

func validateCredit(input IssueCreditInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid credit reason %q", input.Reason))
	}
	if input.Reason == enums.CreditReasonAdjustment {
		if input.Amount.IsZero() {
			return pkgerrors.New(pkgerrors.CodeValidation, "adjustment amount must be non-zero")
		}
		return nil
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	if input.PreOrderID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund credit requires a pre-order")
	}
	return nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	if userID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	total, err := s.repo.SumByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum store credit")
	}
	return total.Round(2), nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.StoreCreditEntry, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID, limit)
}
