package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bsma/internal/identity"
	"github.com/smallbiznis/bsma/internal/mac/domain"
	obsmetrics "github.com/smallbiznis/bsma/internal/observability/metrics"
	productdomain "github.com/smallbiznis/bsma/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxReserve bounds a single reservation request.
const maxReserve = 4096

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Products productdomain.Repository
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	products productdomain.Repository
	metrics  *obsmetrics.Metrics
	alloc    *obsmetrics.AllocationMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("mac.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		products: p.Products,
		metrics:  p.Metrics,
		alloc:    obsmetrics.Allocation(),
	}
}

// AllocateBlock binds mac_quantity units to a new article: the lowest pooled
// offsets when enough are free, otherwise fresh offsets above the current
// highest. Capacity is checked by the caller before the article is inserted.
func (s *Service) AllocateBlock(ctx context.Context, tx *gorm.DB, product *productdomain.Product, articleID int64) ([]domain.Mac, error) {
	r, ok := product.MacConfig()
	if !ok || !r.Enabled() {
		return nil, nil
	}
	quantity := r.Quantity

	pooled, err := s.repo.FindPooled(ctx, tx, product.ID, quantity)
	if err != nil {
		return nil, err
	}
	if len(pooled) >= quantity {
		ids := make([]int64, 0, len(pooled))
		for i := range pooled {
			ids = append(ids, pooled[i].ID)
			pooled[i].ArticleID = &articleID
		}
		attached, err := s.repo.Attach(ctx, tx, ids, articleID)
		if err != nil {
			return nil, err
		}
		if attached != int64(len(ids)) {
			return nil, domain.ErrPoolChanged
		}
		s.record(ctx, product.ID, obsmetrics.MacModePool, quantity)
		return pooled, nil
	}

	base, _, err := s.repo.MaxOffset(ctx, tx, product.ID)
	if err != nil {
		return nil, err
	}
	macs := make([]domain.Mac, 0, quantity)
	for i := 1; i <= quantity; i++ {
		macs = append(macs, domain.Mac{
			ID:        s.genID.Generate().Int64(),
			ProductID: product.ID,
			Offset:    base + int64(i),
			ArticleID: &articleID,
		})
	}
	if err := s.repo.InsertBatch(ctx, tx, macs); err != nil {
		return nil, err
	}
	s.record(ctx, product.ID, obsmetrics.MacModeExtend, quantity)
	return macs, nil
}

// CheckCapacity fails with a *CapacityError when the address of the highest
// issued offset has reached the end of the product's range.
func (s *Service) CheckCapacity(ctx context.Context, tx *gorm.DB, product *productdomain.Product) error {
	r, ok := product.MacConfig()
	if !ok || !r.Enabled() {
		return nil
	}

	highest, found, err := s.repo.MaxOffset(ctx, tx, product.ID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	exhausted, err := r.Exhausted(highest)
	if err != nil {
		return err
	}
	if !exhausted {
		return nil
	}

	last, _ := r.Address(highest)
	return &domain.CapacityError{
		ProductID:   product.ID,
		ProductName: product.Name,
		LastAddress: last,
	}
}

// Release returns an article's units to the pool. The schema does the same
// through ON DELETE SET NULL; doing it explicitly keeps engines without
// enforced foreign keys consistent.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, articleID int64) (int64, error) {
	return s.repo.Release(ctx, tx, articleID)
}

func (s *Service) ListByArticle(ctx context.Context, tx *gorm.DB, articleID int64) ([]domain.Mac, error) {
	if tx == nil {
		tx = s.db
	}
	return s.repo.ListByArticle(ctx, tx, articleID)
}

// Reserve pre-creates pooled units above the current highest offset so
// later articles draw from the pool.
func (s *Service) Reserve(ctx context.Context, req domain.ReserveRequest) (*domain.ReserveResponse, error) {
	productID, err := parseID(req.ProductID)
	if err != nil {
		return nil, err
	}
	if req.Count <= 0 || req.Count > maxReserve {
		return nil, domain.ErrInvalidCount
	}

	var (
		macs  []domain.Mac
		r     identity.MacRange
		errTx error
	)
	errTx = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.products.FindByIDForUpdate(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return productdomain.ErrNotFound
		}
		var ok bool
		r, ok = product.MacConfig()
		if !ok {
			return domain.ErrMacDisabled
		}

		base, _, err := s.repo.MaxOffset(ctx, tx, productID)
		if err != nil {
			return err
		}
		// Same bound as CheckCapacity: the highest reserved unit stays
		// below the end of the range.
		top := base + int64(req.Count)
		exhausted, err := r.Exhausted(top)
		if err != nil {
			return err
		}
		if exhausted {
			last, _ := r.Address(base)
			return &domain.CapacityError{ProductID: product.ID, ProductName: product.Name, LastAddress: last}
		}

		macs = make([]domain.Mac, 0, req.Count)
		for offset := base + 1; offset <= top; offset++ {
			macs = append(macs, domain.Mac{
				ID:        s.genID.Generate().Int64(),
				ProductID: productID,
				Offset:    offset,
			})
		}
		return s.repo.InsertBatch(ctx, tx, macs)
	})
	if errTx != nil {
		return nil, errTx
	}

	addresses, err := domain.Addresses(r, macs)
	if err != nil {
		return nil, err
	}
	offsets := make([]int64, 0, len(macs))
	for _, m := range macs {
		offsets = append(offsets, m.Offset)
	}

	s.log.Info("mac units reserved",
		zap.Int64("product_id", productID),
		zap.Int("count", req.Count),
		zap.Int64("first_offset", offsets[0]),
	)
	return &domain.ReserveResponse{
		ProductID: snowflake.ID(productID).String(),
		Offsets:   offsets,
		Addresses: addresses,
	}, nil
}

func (s *Service) Usage(ctx context.Context, id string) (*domain.Usage, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	product, err := s.products.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, productdomain.ErrNotFound
	}

	total, pooled, err := s.repo.Count(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	highest, found, err := s.repo.MaxOffset(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}

	usage := &domain.Usage{Total: total, Pooled: pooled, HighestOffset: highest}
	if r, ok := product.MacConfig(); ok && found {
		usage.LastAddress, _ = r.Address(highest)
		usage.Exhausted, err = r.Exhausted(highest)
		if err != nil {
			return nil, err
		}
	}
	return usage, nil
}

func (s *Service) record(ctx context.Context, productID int64, mode string, count int) {
	s.alloc.AddMacUnits(mode, count)
	s.metrics.RecordMacUnits(ctx, strconv.FormatInt(productID, 10), mode, count)
}

func parseID(raw string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, productdomain.ErrInvalidID
	}
	return id.Int64(), nil
}
