package scheduler

import (
	"context"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ExpiringCards lists physical cards whose expiration falls in [from, to)
type ExpiringCards interface {
	ListPhysicalCardsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Card, error)
}

// EmployeeDirectory resolves the owner of a card
type EmployeeDirectory interface {
	FindEmployeeByID(ctx context.Context, id int64) (*models.Employee, error)
}

// Notifier delivers an expiration notice to a cardholder
type Notifier interface {
	SendExpirationNotice(to, fullName, lastFour string, expiresAt time.Time) error
}

// ExpiryNotifier emails cardholders whose physical cards expire soon
type ExpiryNotifier struct {
	cards     ExpiringCards
	employees EmployeeDirectory
	notifier  Notifier
	window    time.Duration
	log       *logrus.Logger
	now       func() time.Time
}

// NewExpiryNotifier creates a notifier looking EXPIRY_NOTICE_WINDOW_DAYS ahead
func NewExpiryNotifier(cards ExpiringCards, employees EmployeeDirectory, notifier Notifier, cfg *config.Config, log *logrus.Logger) *ExpiryNotifier {
	return &ExpiryNotifier{
		cards:     cards,
		employees: employees,
		notifier:  notifier,
		window:    time.Duration(cfg.ExpiryNoticeWindowDays) * 24 * time.Hour,
		log:       log,
		now:       time.Now,
	}
}

// Run sends one notice per expiring card and returns the number sent.
// A failure for one card is logged and the run moves on.
func (n *ExpiryNotifier) Run(ctx context.Context) (int, error) {
	from := n.now()
	cards, err := n.cards.ListPhysicalCardsExpiringBetween(ctx, from, from.Add(n.window))
	if err != nil {
		n.log.Errorf("Failed to list expiring cards: %v", err)
		return 0, err
	}

	sent := 0
	for i := range cards {
		card := &cards[i]
		entry := n.log.WithFields(logrus.Fields{"card_id": card.ID, "employee_id": card.EmployeeID})

		employee, err := n.employees.FindEmployeeByID(ctx, card.EmployeeID)
		if err != nil {
			entry.Errorf("Failed to resolve card owner: %v", err)
			metrics.ObserveExpiryNotice("failed")
			continue
		}
		if employee.Email == "" {
			entry.Warn("Card owner has no email address")
			metrics.ObserveExpiryNotice("skipped")
			continue
		}

		if err := n.notifier.SendExpirationNotice(employee.Email, employee.FullName, card.LastFour(), card.ExpirationDate); err != nil {
			entry.Errorf("Failed to send expiration notice: %v", err)
			metrics.ObserveExpiryNotice("failed")
			continue
		}
		metrics.ObserveExpiryNotice("sent")
		sent++
	}

	n.log.Infof("Expiration notices sent: %d of %d", sent, len(cards))
	return sent, nil
}

// Scheduler manages the cron jobs
type Scheduler struct {
	cron     *cron.Cron
	notifier *ExpiryNotifier
	spec     string
	log      *logrus.Logger
}

// NewScheduler creates a scheduler running the expiry job on EXPIRY_NOTICE_SPEC
func NewScheduler(notifier *ExpiryNotifier, cfg *config.Config, log *logrus.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(log)
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		notifier: notifier,
		spec:     cfg.ExpiryNoticeSpec,
		log:      log,
	}
}

// Start registers the expiry job and starts the cron scheduler
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.notifier.Run(context.Background())
	})
	if err != nil {
		s.log.Errorf("Failed to schedule expiry notice job: %v", err)
		return err
	}
	s.log.Infof("Scheduled expiry notice job: %s", s.spec)
	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
