// Package services runs background work over the signed-in user's ledger.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dompet/internal/amqp"
	"dompet/internal/cache"
	"dompet/internal/core"
	dlog "dompet/internal/log"
)

// ReminderPublisher delivers bill reminders.
type ReminderPublisher interface {
	PublishBillReminder(ctx context.Context, msg *amqp.BillReminder) error
}

// BillSource lists the bills to scan.
type BillSource interface {
	ActiveBills() []core.Bill
}

type ReminderProcessorConfig struct {
	// Interval is how often bills are scanned (default: 1h).
	Interval time.Duration

	// DedupTTL is how long a sent reminder is remembered (default: 36h).
	DedupTTL time.Duration

	// MaxTracked bounds the number of remembered reminders (default: 4096).
	MaxTracked int
}

func DefaultReminderProcessorConfig() ReminderProcessorConfig {
	return ReminderProcessorConfig{
		Interval:   time.Hour,
		DedupTTL:   36 * time.Hour,
		MaxTracked: 4096,
	}
}

// ReminderProcessor periodically publishes one reminder per bill per day
// for every active bill that is due soon or overdue.
type ReminderProcessor struct {
	bills  BillSource
	pub    ReminderPublisher
	config ReminderProcessorConfig
	sent   *cache.LRUCache[bool]
	now    func() time.Time
	log    *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReminderProcessor(bills BillSource, pub ReminderPublisher, config ReminderProcessorConfig) *ReminderProcessor {
	def := DefaultReminderProcessorConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.DedupTTL <= 0 {
		config.DedupTTL = def.DedupTTL
	}
	if config.MaxTracked <= 0 {
		config.MaxTracked = def.MaxTracked
	}
	return &ReminderProcessor{
		bills:  bills,
		pub:    pub,
		config: config,
		sent:   cache.NewLRUCache[bool](config.MaxTracked, config.DedupTTL),
		now:    time.Now,
		log:    slog.Default().With(dlog.FieldComponent, dlog.ComponentReminder),
	}
}

// Sent exposes the dedup cache so it can be registered with a cache.Manager.
func (p *ReminderProcessor) Sent() cache.Cleaner { return p.sent }

// Start begins the scan loop. Returns an error if already running.
func (p *ReminderProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("reminder processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.log.InfoContext(ctx, "Reminder processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop to exit and waits for it.
func (p *ReminderProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.log.InfoContext(ctx, "Reminder processor stopped gracefully")
	case <-ctx.Done():
		p.log.WarnContext(ctx, "Reminder processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *ReminderProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ReminderProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.scan(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scan(ctx)
		}
	}
}

func (p *ReminderProcessor) scan(ctx context.Context) {
	n, err := p.ProcessDue(ctx)
	if err != nil {
		p.log.ErrorContext(ctx, "Reminder scan finished with errors", "sent", n, dlog.FieldError, err)
		return
	}
	if n > 0 {
		p.log.InfoContext(ctx, "Reminders sent", "count", n)
	}
}

// ProcessDue publishes reminders for the bills that need one now and
// returns how many were sent. A failed publish is retried on the next scan.
func (p *ReminderProcessor) ProcessDue(ctx context.Context) (int, error) {
	if p.bills == nil || p.pub == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	now := p.now()
	today := core.DateOf(now).String()
	var errs []error
	sent := 0
	for _, b := range DueBills(p.bills.ActiveBills(), now) {
		select {
		case <-p.stopCh:
			return sent, errors.Join(errs...)
		case <-ctx.Done():
			return sent, ctx.Err()
		default:
		}

		key := b.ID + "|" + today
		if !p.sent.Add(key, true) {
			continue
		}
		if err := p.pub.PublishBillReminder(ctx, amqp.NewBillReminder(b, now)); err != nil {
			p.sent.Delete(key)
			errs = append(errs, fmt.Errorf("bill %s: %w", b.ID, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// DueBills returns the active bills that are overdue or due soon as of now,
// in display order.
func DueBills(bills []core.Bill, now time.Time) []core.Bill {
	var out []core.Bill
	for _, b := range core.SortBillsForDisplay(bills, now) {
		if s := core.StatusOf(b, now); s == core.Overdue || s == core.DueSoon {
			out = append(out, b)
		}
	}
	return out
}

// LogPublisher writes reminders to the log instead of a broker.
type LogPublisher struct {
	Logger *slog.Logger
}

func (l LogPublisher) PublishBillReminder(ctx context.Context, msg *amqp.BillReminder) error {
	lg := l.Logger
	if lg == nil {
		lg = slog.Default()
	}
	lg.InfoContext(ctx, "Bill reminder",
		dlog.FieldBillID, msg.BillID,
		dlog.FieldUserID, msg.UserID,
		"name", msg.Name,
		dlog.FieldAmount, msg.Display,
		"status", msg.Status,
		"next_due", msg.NextDue.String(),
		"days_until", msg.DaysUntil)
	return nil
}
