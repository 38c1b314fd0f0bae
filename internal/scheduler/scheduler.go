// Package scheduler запускает фоновые процессы жизненного цикла сделок:
// расчёт аукционов, контроль сроков отгрузки, разблокировку выручки и
// чистку брошенных заказов.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/artmarket-backend/internal/config"
	"github.com/ignatzorin/artmarket-backend/internal/goroutine"
	"github.com/ignatzorin/artmarket-backend/internal/service"
)

// Scheduler держит тикеры фоновых процессов. Каждый процесс крутится в
// собственной горутине с recovery: panic одного прохода не роняет сервис.
type Scheduler struct {
	cfg        *config.Config
	settlement *service.SettlementService
	shipping   *service.ShippingService
	earnings   *service.EarningsService
	orders     *service.OrderService
}

// New создаёт планировщик.
func New(cfg *config.Config, settlement *service.SettlementService, shipping *service.ShippingService, earnings *service.EarningsService, orders *service.OrderService) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		settlement: settlement,
		shipping:   shipping,
		earnings:   earnings,
		orders:     orders,
	}
}

// Start запускает все фоновые процессы. Они останавливаются по отмене ctx.
func (s *Scheduler) Start(ctx context.Context) {
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		s.runSweep(ctx, "settlement", s.cfg.SettlementInterval, s.settlement.Sweep)
	})
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		s.runSweep(ctx, "shipping", s.cfg.ShippingInterval, s.shipping.Sweep)
	})
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		s.runSweep(ctx, "earnings", s.cfg.EarningsInterval, s.earnings.ReleaseSweep)
	})
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		s.runRetention(ctx)
	})

	logrus.Info("Фоновые процессы запущены")
}

// runSweep крутит один фоновый процесс по тикеру. Первый проход
// выполняется сразу, не дожидаясь тикера.
func (s *Scheduler) runSweep(ctx context.Context, name string, interval time.Duration, sweep func(context.Context) (service.SweepReport, error)) {
	s.sweepOnce(ctx, name, sweep)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.WithField("sweep", name).Info("Фоновый процесс остановлен")
			return
		case <-ticker.C:
			s.sweepOnce(ctx, name, sweep)
		}
	}
}

func (s *Scheduler) sweepOnce(ctx context.Context, name string, sweep func(context.Context) (service.SweepReport, error)) {
	report, err := sweep(ctx)
	if err != nil {
		logrus.WithError(err).WithField("sweep", name).Error("Проход фонового процесса завершился ошибкой")
		return
	}

	if report.Processed > 0 {
		logrus.WithFields(logrus.Fields{
			"sweep":     name,
			"processed": report.Processed,
			"settled":   report.Settled,
			"no_bids":   report.NoBids,
			"failed":    report.Failed,
		}).Info("Проход фонового процесса завершён")
	}
}

func (s *Scheduler) runRetention(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.WithField("sweep", "retention").Info("Фоновый процесс остановлен")
			return
		case <-ticker.C:
			deleted, err := s.orders.PurgeAbandoned(ctx)
			if err != nil {
				logrus.WithError(err).Error("Чистка брошенных заказов завершилась ошибкой")
				continue
			}
			if deleted > 0 {
				logrus.WithField("deleted", deleted).Info("Брошенные заказы удалены")
			}
		}
	}
}
