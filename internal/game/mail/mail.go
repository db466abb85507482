// Package mail implements the claimable reward mailbox and direct currency
// gifts. Rewards sit unclaimed until the recipient collects them; claiming
// applies the payload through the normal ledger and balance rules.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/critterdex/critterdex/internal/game/ledger"
	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
)

// Sentinel errors.
var (
	ErrInvalidPayload    = errors.New("mail: invalid payload")
	ErrSelfGift          = errors.New("mail: cannot gift yourself")
	ErrInsufficientFunds = errors.New("mail: insufficient funds")
)

// ClaimResult reports what a claimed piece of mail delivered.
type ClaimResult struct {
	Mail model.Mail `json:"mail"`
	// For critter mail, the ledger outcome of the credit.
	Status model.CreditStatus `json:"status,omitempty"`
	Payout int64              `json:"payout,omitempty"`
}

// Notifier pushes delivery notices to adapters so they can prompt the
// recipient. A nil notifier disables notices.
type Notifier interface {
	NotifyMail(ctx context.Context, m model.Mail) error
}

// Service implements the mailbox.
type Service struct {
	db       *storage.DB
	ledger   *ledger.Service
	notifier Notifier
	logger   *slog.Logger
}

// New creates a mail service. notifier may be nil.
func New(db *storage.DB, led *ledger.Service, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{db: db, ledger: led, notifier: notifier, logger: logger}
}

// notifyDelivery is best-effort: the mail is already persisted and a lost
// notice only delays discovery until the next mailbox check.
func (s *Service) notifyDelivery(ctx context.Context, m model.Mail) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyMail(ctx, m); err != nil {
		s.logger.Warn("notify mail delivery", "mail_id", m.ID, "recipient_id", m.RecipientID, "error", err)
	}
}

// Send deposits a reward in a mailbox. Exactly one payload field must be set
// for the mail's kind.
func (s *Service) Send(ctx context.Context, m model.Mail) (model.Mail, error) {
	switch m.Kind {
	case model.MailMoney:
		if m.Amount <= 0 {
			return model.Mail{}, fmt.Errorf("%w: money mail needs a positive amount", ErrInvalidPayload)
		}
	case model.MailItem:
		if m.ItemID == "" {
			return model.Mail{}, fmt.Errorf("%w: item mail needs an item id", ErrInvalidPayload)
		}
	case model.MailCritter:
		if m.Critter.CritterID == 0 {
			return model.Mail{}, fmt.Errorf("%w: critter mail needs a critter", ErrInvalidPayload)
		}
	default:
		return model.Mail{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, m.Kind)
	}

	created, err := s.db.CreateMail(ctx, m)
	if err != nil {
		return model.Mail{}, err
	}
	s.notifyDelivery(ctx, created)
	s.logger.Info("mail sent", "mail_id", created.ID, "recipient_id", m.RecipientID, "kind", m.Kind)
	return created, nil
}

// List returns the recipient's unclaimed mail.
func (s *Service) List(ctx context.Context, recipientID int64) ([]model.Mail, error) {
	return s.db.ListUnclaimedMail(ctx, recipientID)
}

// Claim collects one piece of mail and applies its payload. A second claim of
// the same mail returns storage.ErrNotFound.
func (s *Service) Claim(ctx context.Context, mailID uuid.UUID, recipientID int64) (ClaimResult, error) {
	m, err := s.db.ClaimMail(ctx, mailID, recipientID)
	if err != nil {
		return ClaimResult{}, err
	}
	res := ClaimResult{Mail: m}

	switch m.Kind {
	case model.MailMoney:
		if _, err := s.db.AdjustBalance(ctx, recipientID, m.Amount); err != nil {
			return res, fmt.Errorf("mail: apply money: %w", err)
		}
	case model.MailItem:
		if err := s.db.AddItem(ctx, recipientID, m.ItemID, 1); err != nil {
			return res, fmt.Errorf("mail: apply item: %w", err)
		}
	case model.MailCritter:
		res.Status, res.Payout, err = s.ledger.Credit(ctx, recipientID, m.Critter)
		if err != nil {
			return res, fmt.Errorf("mail: apply critter: %w", err)
		}
	}

	s.logger.Info("mail claimed", "mail_id", mailID, "recipient_id", recipientID, "kind", m.Kind)
	return res, nil
}

// Gift transfers currency directly between players. The debit and the
// recipient's mailed credit keep the money conserved: a failed deposit
// refunds the sender.
func (s *Service) Gift(ctx context.Context, fromID, toID, amount int64, note string) error {
	if fromID == toID {
		return ErrSelfGift
	}
	if amount <= 0 {
		return fmt.Errorf("%w: gift needs a positive amount", ErrInvalidPayload)
	}
	if _, err := s.db.GetPlayer(ctx, toID); err != nil {
		return fmt.Errorf("mail: gift recipient: %w", err)
	}

	if _, err := s.db.AdjustBalance(ctx, fromID, -amount); err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("mail: debit gift: %w", err)
	}

	created, err := s.db.CreateMail(ctx, model.Mail{
		RecipientID: toID,
		Kind:        model.MailMoney,
		Amount:      amount,
		Note:        note,
	})
	if err != nil {
		if _, refundErr := s.db.AdjustBalance(ctx, fromID, amount); refundErr != nil {
			s.logger.Error("refund failed gift", "player_id", fromID, "amount", amount, "error", refundErr)
		}
		return fmt.Errorf("mail: deliver gift: %w", err)
	}

	s.notifyDelivery(ctx, created)
	s.logger.Info("gift sent", "from_id", fromID, "to_id", toID, "amount", amount)
	return nil
}
