package activation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	articledomain "github.com/smallbiznis/bsma/internal/article/domain"
	"github.com/smallbiznis/bsma/internal/clock"
	"github.com/smallbiznis/bsma/internal/config"
	obscontext "github.com/smallbiznis/bsma/internal/observability/context"
	obslogger "github.com/smallbiznis/bsma/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bsma/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobName = "activation_poll"

	resultUpdated   = "updated"
	resultUnchanged = "unchanged"
	resultFailed    = "failed"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Holder   *config.ActivationConfigHolder
	Articles articledomain.Service
	Registry Registry
	Lock     RunLock             `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Poller asks the device registry for the activation status of articles
// that have none yet and stores any payload carrying a devices entry.
type Poller struct {
	log      *zap.Logger
	clock    clock.Clock
	holder   *config.ActivationConfigHolder
	articles articledomain.Service
	registry Registry
	lock     RunLock
	metrics  *obsmetrics.Metrics
	jobs     *obsmetrics.JobMetrics
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(p Params) *Poller {
	return &Poller{
		log:      p.Log.Named("activation.poller"),
		clock:    p.Clock,
		holder:   p.Holder,
		articles: p.Articles,
		registry: p.Registry,
		lock:     p.Lock,
		metrics:  p.Metrics,
		jobs:     obsmetrics.Jobs(),
		sleep:    sleepCtx,
	}
}

// RunSummary reports what a single pass did.
type RunSummary struct {
	RunID     string
	Checked   int
	Updated   int
	Unchanged int
	Failed    int
	Skipped   int
}

// RunForever polls once per configured interval until ctx is done. The
// interval is re-read after every pass.
func (p *Poller) RunForever(ctx context.Context) {
	for {
		cfg := p.holder.Get()
		if cfg.Enabled {
			if _, err := p.RunOnce(ctx); err != nil {
				p.log.Warn("activation poll failed", zap.Error(err))
			}
		}

		interval := cfg.Interval
		if interval <= 0 {
			interval = config.DefaultActivationConfig().Interval
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunOnce walks all pending articles of the configured products in ID
// order. Registry failures are counted and skipped; only a lost context or
// a storage error aborts the pass.
func (p *Poller) RunOnce(parent context.Context) (RunSummary, error) {
	cfg := p.holder.Get()
	summary := RunSummary{RunID: ulid.Make().String()}

	ctx := obscontext.WithActor(parent, "system", "activation-poller")
	log := obslogger.WithContext(ctx, p.log).With(
		zap.String("job", jobName),
		zap.String("run_id", summary.RunID),
	)

	if len(cfg.ProductIDs) == 0 {
		p.jobs.IncJobSkipped(jobName, "no_products")
		return summary, nil
	}

	if p.lock != nil {
		token, ok, err := p.lock.TryLock(ctx, runLockKey, cfg.LockTTL)
		if err != nil {
			p.jobs.IncJobSkipped(jobName, "lock_error")
			return summary, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			p.jobs.IncJobSkipped(jobName, "locked")
			log.Debug("activation poll held by another replica")
			return summary, nil
		}
		defer func() {
			if err := p.lock.Release(context.WithoutCancel(ctx), runLockKey, token); err != nil {
				log.Warn("release run lock", zap.Error(err))
			}
		}()
	}

	start := p.clock.Now()
	p.jobs.IncJobRun(jobName)
	log.Info("activation poll started", zap.Int64s("product_ids", cfg.ProductIDs))

	err := p.walk(ctx, cfg, &summary, log)

	p.jobs.ObserveJobDuration(jobName, p.clock.Now().Sub(start))
	p.jobs.AddProcessed(jobName, resultUpdated, summary.Updated)
	p.jobs.AddProcessed(jobName, resultUnchanged, summary.Unchanged)
	p.jobs.AddProcessed(jobName, resultFailed, summary.Failed)

	fields := []zap.Field{
		zap.Int("checked", summary.Checked),
		zap.Int("updated", summary.Updated),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.jobs.IncJobTimeout(jobName)
		}
		p.jobs.IncJobError(jobName, err)
		log.Warn("activation poll aborted", append(fields, zap.Error(err))...)
		return summary, fmt.Errorf("%s: %w", jobName, err)
	}
	log.Info("activation poll finished", fields...)
	return summary, nil
}

func (p *Poller) walk(ctx context.Context, cfg config.ActivationConfig, summary *RunSummary, log *zap.Logger) error {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = config.DefaultActivationConfig().BatchSize
	}

	var afterID int64
	first := true
	for {
		candidates, err := p.articles.ListPendingActivation(ctx, cfg.ProductIDs, afterID, batch)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}

		for _, c := range candidates {
			afterID = c.ArticleID
			if c.IMEI == "" {
				summary.Skipped++
				p.jobs.IncJobSkipped(jobName, "no_identity")
				continue
			}

			if !first {
				if err := p.sleep(ctx, cfg.RequestDelay); err != nil {
					return err
				}
			}
			first = false

			summary.Checked++
			if err := p.check(ctx, c, summary, log); err != nil {
				return err
			}
		}

		if len(candidates) < batch {
			return nil
		}
	}
}

func (p *Poller) check(ctx context.Context, c articledomain.ActivationCandidate, summary *RunSummary, log *zap.Logger) error {
	itemLog := log.With(zap.Int64("article_id", c.ArticleID), zap.Int64("product_id", c.ProductID))

	payload, err := p.registry.Status(ctx, c.IMEI)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		summary.Failed++
		p.metrics.RecordActivationUpdate(ctx, resultFailed)
		itemLog.Warn("registry lookup failed", zap.Error(err))
		return nil
	}

	if _, ok := payload[articledomain.ActivationKey]; !ok {
		summary.Unchanged++
		p.metrics.RecordActivationUpdate(ctx, resultUnchanged)
		return nil
	}

	if err := p.articles.MergeExtra(ctx, c.ArticleID, payload); err != nil {
		if errors.Is(err, articledomain.ErrNotFound) {
			summary.Skipped++
			return nil
		}
		return err
	}
	summary.Updated++
	p.metrics.RecordActivationUpdate(ctx, resultUpdated)
	itemLog.Info("activation status stored")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
