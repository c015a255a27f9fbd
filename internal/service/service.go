package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/sirupsen/logrus"
)

// CardRepository persists cards and reads their ledgers
type CardRepository interface {
	FindCardByID(ctx context.Context, id int64) (*models.Card, error)
	FindCardByEmployeeAndType(ctx context.Context, employeeID int64, cardType models.CardType) (*models.Card, error)
	InsertCard(ctx context.Context, card *models.Card) (int64, error)
	UpdateCard(ctx context.Context, id int64, card *models.Card) error
	DeleteCard(ctx context.Context, id int64) error
	ListPayments(ctx context.Context, cardID int64) ([]models.Payment, error)
	ListRecharges(ctx context.Context, cardID int64) ([]models.Recharge, error)
}

// EmployeeDirectory resolves employees
type EmployeeDirectory interface {
	FindEmployeeByID(ctx context.Context, id int64) (*models.Employee, error)
}

// PasswordHasher is a one-way credential hash
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// Cipher is the reversible encryption applied to security codes at rest
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(encrypted string) (string, error)
}

// Service handles the card lifecycle
type Service struct {
	cards      CardRepository
	employees  EmployeeDirectory
	hasher     PasswordHasher
	cipher     Cipher
	log        *logrus.Logger
	cardPrefix string
	now        func() time.Time
}

// NewService initializes a new service
func NewService(cards CardRepository, employees EmployeeDirectory, hasher PasswordHasher, cipher Cipher, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{
		cards:      cards,
		employees:  employees,
		hasher:     hasher,
		cipher:     cipher,
		log:        log,
		cardPrefix: cfg.CardNumberPrefix,
		now:        time.Now,
	}
}

// CreatePhysicalCard issues a new unactivated card of the given type to an employee
func (s *Service) CreatePhysicalCard(ctx context.Context, employeeID int64, cardType models.CardType, requesterEmployeeID int64) (id int64, err error) {
	defer func() { s.observe("create_physical", err) }()

	if requesterEmployeeID != employeeID {
		return 0, fmt.Errorf("%w: employee %d cannot create cards for employee %d", ErrForbidden, requesterEmployeeID, employeeID)
	}
	if !cardType.Valid() {
		return 0, fmt.Errorf("%w: unknown card type %q", ErrUnprocessable, cardType)
	}

	employee, err := s.employees.FindEmployeeByID(ctx, employeeID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("%w: employee %d", ErrNotFound, employeeID)
	}
	if err != nil {
		return 0, err
	}

	_, err = s.cards.FindCardByEmployeeAndType(ctx, employeeID, cardType)
	if err == nil {
		return 0, fmt.Errorf("%w: employee %d already has a %s card", ErrConflict, employeeID, cardType)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return 0, err
	}

	number, securityCode, err := s.generateCredentials()
	if err != nil {
		return 0, err
	}

	card := &models.Card{
		EmployeeID:     employeeID,
		Number:         number,
		CardholderName: CardholderName(employee.FullName),
		SecurityCode:   securityCode,
		ExpirationDate: utils.GenerateExpirationDate(s.now()),
		Password:       nil,
		IsVirtual:      false,
		OriginalCardID: nil,
		IsBlocked:      false,
		Type:           cardType,
	}

	id, err = s.cards.InsertCard(ctx, card)
	if errors.Is(err, repository.ErrDuplicate) {
		return 0, fmt.Errorf("%w: employee %d already has a %s card", ErrConflict, employeeID, cardType)
	}
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{"card_id": id, "employee_id": employeeID, "type": cardType}).Info("Physical card created")
	return id, nil
}

// CreateVirtualCard derives a virtual card from an activated physical card.
// The virtual card inherits the physical card's password and ledger.
func (s *Service) CreateVirtualCard(ctx context.Context, physicalCardID int64, password string, requesterCardID int64) (id int64, err error) {
	defer func() { s.observe("create_virtual", err) }()

	if err := checkIdentity(physicalCardID, requesterCardID); err != nil {
		return 0, err
	}
	parent, err := s.findCard(ctx, physicalCardID)
	if err != nil {
		return 0, err
	}
	if parent.IsVirtual {
		return 0, fmt.Errorf("%w: card %d is virtual", ErrUnprocessable, physicalCardID)
	}
	if err := s.checkPassword(parent, password); err != nil {
		return 0, err
	}

	number, securityCode, err := s.generateCredentials()
	if err != nil {
		return 0, err
	}

	originalID := parent.ID
	virtual := &models.Card{
		EmployeeID:     parent.EmployeeID,
		Number:         number,
		CardholderName: parent.CardholderName,
		SecurityCode:   securityCode,
		ExpirationDate: utils.GenerateExpirationDate(s.now()),
		Password:       parent.Password,
		IsVirtual:      true,
		OriginalCardID: &originalID,
		IsBlocked:      false,
		Type:           parent.Type,
	}

	id, err = s.cards.InsertCard(ctx, virtual)
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{"card_id": id, "original_card_id": originalID}).Info("Virtual card created")
	return id, nil
}

// DeleteVirtualCard removes a virtual card
func (s *Service) DeleteVirtualCard(ctx context.Context, cardID int64, password string, requesterCardID int64) (err error) {
	defer func() { s.observe("delete_virtual", err) }()

	if err := checkIdentity(cardID, requesterCardID); err != nil {
		return err
	}
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return err
	}
	if !card.IsVirtual {
		return fmt.Errorf("%w: card %d is not virtual", ErrUnprocessable, cardID)
	}
	if err := s.checkPassword(card, password); err != nil {
		return err
	}

	if err := s.cards.DeleteCard(ctx, cardID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: card %d", ErrNotFound, cardID)
		}
		return err
	}

	s.log.Infof("Virtual card %d deleted", cardID)
	return nil
}

// Activate sets the password of a physical card after checking its security code
func (s *Service) Activate(ctx context.Context, cardID int64, password, securityCode string, requesterCardID int64) (err error) {
	defer func() { s.observe("activate", err) }()

	if err := checkIdentity(cardID, requesterCardID); err != nil {
		return err
	}
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return err
	}
	if card.IsVirtual {
		return fmt.Errorf("%w: virtual card %d cannot be activated", ErrUnprocessable, cardID)
	}
	if card.IsExpired(s.now()) {
		return fmt.Errorf("%w: card %d is expired", ErrUnprocessable, cardID)
	}
	if card.IsActivated() {
		return fmt.Errorf("%w: card %d is already activated", ErrConflict, cardID)
	}

	storedCode, err := s.cipher.Decrypt(card.SecurityCode)
	if err != nil {
		return fmt.Errorf("failed to decrypt security code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(securityCode), []byte(storedCode)) != 1 {
		return fmt.Errorf("%w: invalid security code", ErrUnauthorized)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrUnprocessable)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	card.Password = &hash

	if err := s.cards.UpdateCard(ctx, cardID, card); err != nil {
		return err
	}

	s.log.Infof("Card %d activated", cardID)
	return nil
}

// Block blocks an activated, unblocked card
func (s *Service) Block(ctx context.Context, cardID int64, password string, requesterCardID int64) (err error) {
	defer func() { s.observe("block", err) }()
	return s.changeBlockState(ctx, cardID, password, requesterCardID, true)
}

// Unlock unblocks a blocked card
func (s *Service) Unlock(ctx context.Context, cardID int64, password string, requesterCardID int64) (err error) {
	defer func() { s.observe("unlock", err) }()
	return s.changeBlockState(ctx, cardID, password, requesterCardID, false)
}

func (s *Service) changeBlockState(ctx context.Context, cardID int64, password string, requesterCardID int64, blocked bool) error {
	if err := checkIdentity(cardID, requesterCardID); err != nil {
		return err
	}
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return err
	}
	if card.IsExpired(s.now()) {
		return fmt.Errorf("%w: card %d is expired", ErrUnprocessable, cardID)
	}
	if err := s.checkPassword(card, password); err != nil {
		return err
	}
	if card.IsBlocked == blocked {
		if blocked {
			return fmt.Errorf("%w: card %d is already blocked", ErrConflict, cardID)
		}
		return fmt.Errorf("%w: card %d is not blocked", ErrConflict, cardID)
	}

	card.IsBlocked = blocked
	if err := s.cards.UpdateCard(ctx, cardID, card); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"card_id": cardID, "blocked": blocked}).Info("Card block state changed")
	return nil
}

// ComputeBalance returns the balance and raw ledger of a card.
// Virtual cards report the ledger of their physical card.
func (s *Service) ComputeBalance(ctx context.Context, cardID int64) (balance *models.CardBalance, err error) {
	defer func() { s.observe("balance", err) }()

	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	ledgerID := card.LedgerID()
	payments, err := s.cards.ListPayments(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	recharges, err := s.cards.ListRecharges(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	return &models.CardBalance{
		Balance:      ComputeBalance(payments, recharges),
		Transactions: payments,
		Recharges:    recharges,
	}, nil
}

// GetCard returns a card with its security code decrypted
func (s *Service) GetCard(ctx context.Context, cardID int64) (card *models.Card, err error) {
	defer func() { s.observe("get", err) }()

	card, err = s.findCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	code, err := s.cipher.Decrypt(card.SecurityCode)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt security code: %w", err)
	}
	card.SecurityCode = code
	return card, nil
}

// CardholderName formats the embossed name: first and last name, uppercased
func CardholderName(fullName string) string {
	names := strings.Fields(fullName)
	switch len(names) {
	case 0:
		return ""
	case 1:
		return strings.ToUpper(names[0])
	default:
		return strings.ToUpper(names[0] + " " + names[len(names)-1])
	}
}

func (s *Service) findCard(ctx context.Context, cardID int64) (*models.Card, error) {
	card, err := s.cards.FindCardByID(ctx, cardID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: card %d", ErrNotFound, cardID)
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (s *Service) checkPassword(card *models.Card, password string) error {
	if !card.IsActivated() {
		return fmt.Errorf("%w: card %d is not activated", ErrUnauthorized, card.ID)
	}
	if !s.hasher.Verify(password, *card.Password) {
		return fmt.Errorf("%w: invalid password", ErrUnauthorized)
	}
	return nil
}

// generateCredentials returns a new card number and an encrypted security code
func (s *Service) generateCredentials() (string, string, error) {
	number, err := utils.GenerateCardNumber(s.cardPrefix, utils.CardNumberLength)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate card number: %w", err)
	}
	cvv, err := utils.GenerateCVV()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate CVV: %w", err)
	}
	encrypted, err := s.cipher.Encrypt(cvv)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt CVV: %w", err)
	}
	return number, encrypted, nil
}

func (s *Service) observe(operation string, err error) {
	kind := ErrorKind(err)
	metrics.ObserveCardOperation(operation, kind)
	if kind == "internal" {
		s.log.WithError(err).WithField("operation", operation).Error("Card operation failed")
	}
}

func checkIdentity(cardID, requesterCardID int64) error {
	if cardID != requesterCardID {
		return fmt.Errorf("%w: card %d does not match requested card %d", ErrForbidden, requesterCardID, cardID)
	}
	return nil
}
