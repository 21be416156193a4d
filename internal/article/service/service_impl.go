package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bsma/internal/article/domain"
	"github.com/smallbiznis/bsma/internal/clock"
	"github.com/smallbiznis/bsma/internal/config"
	"github.com/smallbiznis/bsma/internal/identity"
	macdomain "github.com/smallbiznis/bsma/internal/mac/domain"
	obslogger "github.com/smallbiznis/bsma/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bsma/internal/observability/metrics"
	operationdomain "github.com/smallbiznis/bsma/internal/operation/domain"
	productdomain "github.com/smallbiznis/bsma/internal/product/domain"
	"github.com/smallbiznis/bsma/pkg/db"
	"github.com/smallbiznis/bsma/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultMaxAttempts = 5
	retryBackoff       = 5 * time.Millisecond
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	Repo       domain.Repository
	Products   productdomain.Repository
	Macs       macdomain.Service
	Operations operationdomain.Repository
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	products    productdomain.Repository
	macs        macdomain.Service
	operations  operationdomain.Repository
	metrics     *obsmetrics.Metrics
	alloc       *obsmetrics.AllocationMetrics
	maxAttempts int
	lockTimeout time.Duration
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("article.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		products:    p.Products,
		macs:        p.Macs,
		operations:  p.Operations,
		metrics:     p.Metrics,
		alloc:       obsmetrics.Allocation(),
		maxAttempts: p.Config.Allocation.MaxAttempts,
		lockTimeout: p.Config.Allocation.LockTimeout,
	}
}

type createInput struct {
	productID int64
	serial    int64
	supplied  bool
	barcode   *string
	success   *bool
	createdBy string
}

type created struct {
	article *domain.Article
	product *productdomain.Product
	macs    []macdomain.Mac
}

// Create inserts an article with the next serial of its product and binds
// its MAC block in the same transaction. Each attempt locks the product
// row; an attempt that still loses a race on a unique key is rolled back
// and repeated with fresh MAX values, up to maxAttempts.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	in, err := parseCreate(req)
	if err != nil {
		s.alloc.IncOutcome(obsmetrics.AllocationOutcomeRejected)
		return nil, err
	}

	start := time.Now()
	productLabel := strconv.FormatInt(in.productID, 10)
	log := obslogger.WithProduct(obslogger.WithContext(ctx, s.log), in.productID)

	maxAttempts := s.maxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		s.alloc.IncAttempt(productLabel)

		res, err := s.createOnce(ctx, in)
		if err == nil {
			s.alloc.IncOutcome(obsmetrics.AllocationOutcomeCreated)
			s.alloc.ObserveDuration(time.Since(start))
			s.metrics.RecordArticleCreated(ctx, productLabel)
			log.Info("article created",
				zap.Int64("article_id", res.article.ID),
				zap.Int64("serial", res.article.Serial),
				zap.Int("attempt", attempt),
				zap.Int("mac_units", len(res.macs)),
			)
			resp := s.toResponse(res.article, res.product, res.macs)
			return &resp, nil
		}

		retry, err := s.classify(ctx, in, err)
		if !retry {
			s.alloc.IncOutcome(outcomeOf(err))
			s.alloc.ObserveDuration(time.Since(start))
			return nil, err
		}

		s.alloc.IncRetry(err)
		log.Debug("article allocation collided, retrying",
			zap.Int("attempt", attempt),
			zap.String("reason", obsmetrics.ClassifyReason(err)),
			zap.Error(err),
		)
		if attempt < maxAttempts {
			if err := sleepCtx(ctx, time.Duration(attempt)*retryBackoff); err != nil {
				return nil, err
			}
		}
	}

	s.alloc.IncOutcome(obsmetrics.AllocationOutcomeConflict)
	s.alloc.ObserveDuration(time.Since(start))
	log.Warn("article allocation gave up", zap.Int("attempts", maxAttempts))
	return nil, domain.ErrAllocationConflict
}

func (s *Service) Next(ctx context.Context, productID, createdBy string) (*domain.Response, error) {
	return s.Create(ctx, domain.CreateRequest{ProductID: productID, CreatedBy: createdBy})
}

func (s *Service) createOnce(ctx context.Context, in createInput) (*created, error) {
	var res *created
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.SetLockTimeout(tx, s.lockTimeout); err != nil {
			return err
		}

		lockStart := time.Now()
		product, err := s.products.FindByIDForUpdate(ctx, tx, in.productID)
		s.alloc.ObserveLockWait(time.Since(lockStart))
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrProductNotFound
		}

		if err := s.macs.CheckCapacity(ctx, tx, product); err != nil {
			return err
		}

		if in.barcode != nil {
			exists, err := s.repo.BarcodeExists(ctx, tx, *in.barcode)
			if err != nil {
				return err
			}
			if exists {
				return domain.ErrDuplicateBarcode
			}
		}

		serial := in.serial
		if in.supplied {
			exists, err := s.repo.SerialExists(ctx, tx, product.ID, serial)
			if err != nil {
				return err
			}
			if exists {
				return domain.ErrDuplicateSerial
			}
		} else {
			serial, err = s.repo.NextSerial(ctx, tx, product.ID)
			if err != nil {
				return err
			}
		}
		if _, ok := product.Identity(); ok && serial > identity.MaxIMEISerial {
			return identity.ErrSerialRange
		}

		now := s.clock.Now()
		article := &domain.Article{
			ID:        s.genID.Generate().Int64(),
			ProductID: product.ID,
			Serial:    serial,
			Barcode:   in.barcode,
			Success:   in.success,
			CreatedBy: in.createdBy,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Insert(ctx, tx, article); err != nil {
			return err
		}

		macs, err := s.macs.AllocateBlock(ctx, tx, product, article.ID)
		if err != nil {
			return err
		}

		if err := s.operations.Insert(ctx, tx, &operationdomain.Operation{
			ID:          s.genID.Generate().Int64(),
			ArticleID:   article.ID,
			Type:        operationdomain.TypeCreated,
			Responsible: in.createdBy,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		res = &created{article: article, product: product, macs: macs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// classify decides whether a failed attempt is a lost race worth another
// try. Unique violations on caller supplied values are reported as such
// instead of being retried.
func (s *Service) classify(ctx context.Context, in createInput, err error) (bool, error) {
	if db.IsLockTimeout(err) || db.IsSerializationFailure(err) {
		return false, fmt.Errorf("%w: %v", domain.ErrAllocationConflict, err)
	}
	if !db.IsDuplicateKeyErr(err) && !errors.Is(err, macdomain.ErrPoolChanged) {
		return false, err
	}

	if in.barcode != nil {
		exists, lookupErr := s.repo.BarcodeExists(ctx, s.db, *in.barcode)
		if lookupErr != nil {
			return false, lookupErr
		}
		if exists {
			return false, domain.ErrDuplicateBarcode
		}
	}
	if in.supplied {
		exists, lookupErr := s.repo.SerialExists(ctx, s.db, in.productID, in.serial)
		if lookupErr != nil {
			return false, lookupErr
		}
		if exists {
			return false, domain.ErrDuplicateSerial
		}
	}
	return true, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	articleID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	article, err := s.repo.FindByID(ctx, s.db, articleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, domain.ErrNotFound
	}
	return s.detail(ctx, article)
}

func (s *Service) GetByBarcode(ctx context.Context, barcode string) (*domain.Response, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, domain.ErrInvalidBarcode
	}
	article, err := s.repo.FindByBarcode(ctx, s.db, barcode)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, domain.ErrNotFound
	}
	return s.detail(ctx, article)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{Limit: req.Size(), Success: req.Success}

	if raw := strings.TrimSpace(req.ProductID); raw != "" {
		productID, err := snowflake.ParseString(raw)
		if err != nil || productID == 0 {
			return domain.ListResponse{}, domain.ErrProductNotFound
		}
		filter.ProductID = productID.Int64()
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		before, err := snowflake.ParseString(cursor.ID)
		if err != nil || before == 0 {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		filter.BeforeID = before.Int64()
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	items, pageInfo := pagination.Page(items, filter.Limit, func(a *domain.Article) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: snowflake.ID(a.ID).String()})
		if err != nil {
			return ""
		}
		return token
	})

	products := map[int64]*productdomain.Product{}
	articles := make([]domain.Response, 0, len(items))
	for _, item := range items {
		product, err := s.productOf(ctx, products, item.ProductID)
		if err != nil {
			return domain.ListResponse{}, err
		}
		articles = append(articles, s.toResponse(item, product, nil))
	}
	return domain.ListResponse{PageInfo: pageInfo, Articles: articles}, nil
}

// UpdateByBarcode sets the success flag and merges extra one level deep.
func (s *Service) UpdateByBarcode(ctx context.Context, barcode string, req domain.UpdateRequest) (*domain.Response, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, domain.ErrInvalidBarcode
	}

	var updated *domain.Article
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		article, err := s.repo.FindByBarcodeForUpdate(ctx, tx, barcode)
		if err != nil {
			return err
		}
		if article == nil {
			return domain.ErrNotFound
		}

		if req.Success != nil {
			success := *req.Success
			article.Success = &success
		}
		if req.Extra != nil {
			article.Extra = mergeExtra(article.Extra, req.Extra)
		}
		article.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateState(ctx, tx, article); err != nil {
			return err
		}
		updated = article
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, updated)
}

// Delete removes an article. Its MAC units go back to the pool and its
// operations are removed with it.
func (s *Service) Delete(ctx context.Context, id string) error {
	articleID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		article, err := s.repo.FindByIDForUpdate(ctx, tx, articleID)
		if err != nil {
			return err
		}
		if article == nil {
			return domain.ErrNotFound
		}

		released, err := s.macs.Release(ctx, tx, articleID)
		if err != nil {
			return err
		}
		if _, err := s.repo.Delete(ctx, tx, articleID); err != nil {
			return err
		}

		obslogger.WithProduct(obslogger.WithContext(ctx, s.log), article.ProductID).Info("article deleted",
			zap.Int64("article_id", articleID),
			zap.Int64("serial", article.Serial),
			zap.Int64("mac_units_released", released),
		)
		return nil
	})
}

func (s *Service) IMEI(ctx context.Context, id string) (string, error) {
	articleID, err := parseID(id)
	if err != nil {
		return "", err
	}
	article, err := s.repo.FindByID(ctx, s.db, articleID)
	if err != nil {
		return "", err
	}
	if article == nil {
		return "", domain.ErrNotFound
	}
	product, err := s.products.FindByID(ctx, s.db, article.ProductID)
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", domain.ErrProductNotFound
	}

	imei, ok, err := product.IMEI(article.Serial)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNoIdentity
	}
	return imei, nil
}

// ListPendingActivation returns the next page of articles still waiting for
// a registry status. Articles whose product has no IMEI configuration are
// returned with an empty IMEI so callers can advance past them.
func (s *Service) ListPendingActivation(ctx context.Context, productIDs []int64, afterID int64, limit int) ([]domain.ActivationCandidate, error) {
	items, err := s.repo.ListPendingActivation(ctx, s.db, productIDs, afterID, limit)
	if err != nil {
		return nil, err
	}

	products := map[int64]*productdomain.Product{}
	out := make([]domain.ActivationCandidate, 0, len(items))
	for _, item := range items {
		candidate := domain.ActivationCandidate{ArticleID: item.ID, ProductID: item.ProductID}
		product, err := s.productOf(ctx, products, item.ProductID)
		if err != nil {
			return nil, err
		}
		if product != nil {
			if imei, ok, err := product.IMEI(item.Serial); err == nil && ok {
				candidate.IMEI = imei
			}
		}
		out = append(out, candidate)
	}
	return out, nil
}

// MergeExtra writes a registry payload into the article's extra, keeping
// keys the payload does not mention.
func (s *Service) MergeExtra(ctx context.Context, articleID int64, extra map[string]any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		article, err := s.repo.FindByIDForUpdate(ctx, tx, articleID)
		if err != nil {
			return err
		}
		if article == nil {
			return domain.ErrNotFound
		}
		article.Extra = mergeExtra(article.Extra, extra)
		article.UpdatedAt = s.clock.Now()
		return s.repo.UpdateState(ctx, tx, article)
	})
}

func (s *Service) detail(ctx context.Context, article *domain.Article) (*domain.Response, error) {
	product, err := s.products.FindByID(ctx, s.db, article.ProductID)
	if err != nil {
		return nil, err
	}
	macs, err := s.macs.ListByArticle(ctx, s.db, article.ID)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(article, product, macs)
	return &resp, nil
}

func (s *Service) productOf(ctx context.Context, cache map[int64]*productdomain.Product, id int64) (*productdomain.Product, error) {
	if p, ok := cache[id]; ok {
		return p, nil
	}
	p, err := s.products.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	cache[id] = p
	return p, nil
}

func (s *Service) toResponse(a *domain.Article, product *productdomain.Product, macs []macdomain.Mac) domain.Response {
	resp := domain.Response{
		ID:            snowflake.ID(a.ID).String(),
		ProductID:     snowflake.ID(a.ProductID).String(),
		Serial:        a.Serial,
		SerialDisplay: strconv.FormatInt(a.Serial, 10),
		Barcode:       a.Barcode,
		Success:       a.Success,
		CreatedBy:     a.CreatedBy,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if len(a.Extra) > 0 {
		resp.Extra = map[string]any(a.Extra)
	}
	if product == nil {
		return resp
	}

	resp.SerialDisplay = product.SerialDisplay(a.Serial)
	if imei, ok, err := product.IMEI(a.Serial); err == nil && ok {
		resp.IMEI = imei
	}
	if r, ok := product.MacConfig(); ok && len(macs) > 0 {
		addresses, err := macdomain.Addresses(r, macs)
		if err != nil {
			s.log.Warn("mac address out of range", zap.Int64("article_id", a.ID), zap.Error(err))
		} else {
			resp.Macs = addresses
		}
	}
	return resp
}

func parseCreate(req domain.CreateRequest) (createInput, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil || productID == 0 {
		return createInput{}, domain.ErrProductNotFound
	}
	in := createInput{
		productID: productID.Int64(),
		createdBy: strings.TrimSpace(req.CreatedBy),
		success:   req.Success,
	}
	if in.createdBy == "" {
		return createInput{}, domain.ErrInvalidCreator
	}
	if req.Serial != nil {
		if *req.Serial <= 0 {
			return createInput{}, domain.ErrInvalidSerial
		}
		in.serial = *req.Serial
		in.supplied = true
	}
	if req.Barcode != nil {
		barcode := strings.TrimSpace(*req.Barcode)
		if barcode == "" {
			return createInput{}, domain.ErrInvalidBarcode
		}
		in.barcode = &barcode
	}
	return in, nil
}

func parseID(raw string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}

func mergeExtra(current datatypes.JSONMap, patch map[string]any) datatypes.JSONMap {
	merged := make(datatypes.JSONMap, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, macdomain.ErrCapacityExhausted), errors.Is(err, identity.ErrSerialRange):
		return obsmetrics.AllocationOutcomeCapacity
	case errors.Is(err, domain.ErrAllocationConflict):
		return obsmetrics.AllocationOutcomeConflict
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrDuplicateBarcode),
		errors.Is(err, domain.ErrDuplicateSerial):
		return obsmetrics.AllocationOutcomeRejected
	default:
		return obsmetrics.AllocationOutcomeError
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
