package client

import (
	"context"
	"time"

	"wifihub/internal/logger"
	"wifihub/internal/models"
)

const (
	DefaultInitialDelay = 10 * time.Second
	DefaultInterval     = 15 * time.Second
	DefaultMaxAttempts  = 30
)

// Outcome is how a Poller run ended.
type Outcome string

const (
	OutcomePaid         Outcome = "paid"
	OutcomeFailed       Outcome = "failed"
	OutcomeSessionEnded Outcome = "session_ended"
	OutcomeUndetermined Outcome = "undetermined"
	OutcomeCancelled    Outcome = "cancelled"
)

// Message is the text shown to the user for an outcome.
func (o Outcome) Message() string {
	switch o {
	case OutcomePaid:
		return "Pembayaran berhasil! Voucher Anda telah aktif dan siap digunakan."
	case OutcomeFailed:
		return "Pembayaran gagal atau dibatalkan. Silakan coba pesan ulang jika diperlukan."
	case OutcomeUndetermined:
		return `Silakan cek status pembayaran Anda di halaman "Voucher Saya" nanti.`
	case OutcomeSessionEnded:
		return "Sesi berakhir, silakan login kembali."
	default:
		return ""
	}
}

// Gateway names are accepted next to the stored ones.
var (
	successStatuses = map[string]bool{"paid": true, "settlement": true, "capture": true}
	failureStatuses = map[string]bool{
		"failed": true, "cancel": true, "expire": true, "cancelled": true, "expired": true,
	}
)

type Fetcher interface {
	Vouchers(ctx context.Context) ([]models.VoucherView, error)
}

// Poller watches the user's vouchers after a checkout until the payment
// settles one way or the other.
type Poller struct {
	Fetcher      Fetcher
	Session      *Session
	Logger       *logger.Logger
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
	// OrderID restricts the check to one order; zero watches every voucher.
	OrderID int64
}

func NewPoller(fetcher Fetcher, session *Session, orderID int64, log *logger.Logger) *Poller {
	return &Poller{
		Fetcher:      fetcher,
		Session:      session,
		Logger:       log,
		InitialDelay: DefaultInitialDelay,
		Interval:     DefaultInterval,
		MaxAttempts:  DefaultMaxAttempts,
		OrderID:      orderID,
	}
}

func (p *Poller) Run(ctx context.Context) Outcome {
	timer := time.NewTimer(p.InitialDelay)
	defer timer.Stop()

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return OutcomeCancelled
		case <-timer.C:
		}

		if !p.Session.Active() {
			p.debug("session ended, stopping payment status check")
			return OutcomeSessionEnded
		}

		views, err := p.Fetcher.Vouchers(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCancelled
			}
			if !p.Session.Active() {
				return OutcomeSessionEnded
			}
			p.warn("payment status check failed: " + err.Error())
		} else if outcome, done := p.classify(views); done {
			return outcome
		}

		timer.Reset(p.Interval)
	}

	p.debug("payment status check ended without a final status")
	return OutcomeUndetermined
}

func (p *Poller) classify(views []models.VoucherView) (Outcome, bool) {
	for _, v := range views {
		if p.OrderID != 0 && v.OrderID != p.OrderID {
			continue
		}
		status := string(v.OrderStatus)
		if successStatuses[status] {
			return OutcomePaid, true
		}
		if failureStatuses[status] {
			return OutcomeFailed, true
		}
	}
	return "", false
}

func (p *Poller) debug(msg string) {
	if p.Logger != nil {
		p.Logger.Debug("POLLER", msg)
	}
}

func (p *Poller) warn(msg string) {
	if p.Logger != nil {
		p.Logger.Warn("POLLER", msg)
	}
}
