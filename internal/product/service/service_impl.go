package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bsma/internal/clock"
	"github.com/smallbiznis/bsma/internal/identity"
	"github.com/smallbiznis/bsma/internal/product/domain"
	"github.com/smallbiznis/bsma/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListRequest{Name: strings.TrimSpace(req.Name)})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	now := s.clock.Now()
	p := &domain.Product{
		ID:          s.genID.Generate().Int64(),
		Name:        strings.TrimSpace(req.Name),
		Mark:        req.Mark,
		SerialMask:  strings.TrimSpace(req.SerialMask),
		BodyID:      strings.TrimSpace(req.BodyID),
		FAC:         strings.TrimSpace(req.FAC),
		OUI:         normalizeHex(req.OUI),
		MacStart:    normalizeHex(req.MacStart),
		MacEnd:      normalizeHex(req.MacEnd),
		MacQuantity: req.MacQuantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, s.db, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateProduct
		}
		return nil, err
	}

	s.log.Info("product created",
		zap.Int64("product_id", p.ID),
		zap.String("name", p.Name),
		zap.Int("mac_quantity", p.MacQuantity),
	)
	resp := toResponse(p)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(item)
	return &resp, nil
}

// Update edits product configuration. Fields that feed the IMEI or the MAC
// address of already issued units are frozen once articles or MAC rows
// exist; the quantity per article, the range end and the display mask stay
// editable.
func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	productID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Product
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		before := *item

		applyUpdate(item, req)
		if err := validate(item); err != nil {
			return err
		}

		if identityChanged(before, *item) {
			articles, err := s.repo.CountArticles(ctx, tx, productID)
			if err != nil {
				return err
			}
			if articles > 0 {
				return domain.ErrConfigLocked
			}
		}
		if macBaseChanged(before, *item) {
			macs, err := s.repo.CountMacs(ctx, tx, productID)
			if err != nil {
				return err
			}
			if macs > 0 {
				return domain.ErrConfigLocked
			}
		}

		item.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateProduct
			}
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(updated)
	return &resp, nil
}

// Delete removes a product that no article references. Pooled MAC rows go
// with it.
func (s *Service) Delete(ctx context.Context, id string) error {
	productID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		articles, err := s.repo.CountArticles(ctx, tx, productID)
		if err != nil {
			return err
		}
		if articles > 0 {
			return domain.ErrProductInUse
		}

		if _, err := s.repo.Delete(ctx, tx, productID); err != nil {
			if db.IsForeignKeyErr(err) {
				return domain.ErrProductInUse
			}
			return err
		}
		s.log.Info("product deleted", zap.Int64("product_id", productID))
		return nil
	})
}

func validate(p *domain.Product) error {
	if p.Name == "" {
		return domain.ErrInvalidName
	}
	if p.Mark < 0 || p.Mark > identity.MaxMark {
		return identity.ErrInvalidMark
	}
	if p.SerialMask != "" {
		if err := identity.ValidateMask(p.SerialMask); err != nil {
			return err
		}
	}
	if p.BodyID != "" || p.FAC != "" {
		if err := (identity.IMEIConfig{BodyID: p.BodyID, Mark: p.Mark, FAC: p.FAC}).Validate(); err != nil {
			return err
		}
	}

	macFields := p.OUI != "" || p.MacStart != "" || p.MacEnd != ""
	if p.MacQuantity < 0 {
		return identity.ErrInvalidQuantity
	}
	if macFields || p.MacQuantity > 0 {
		r := identity.MacRange{OUI: p.OUI, Start: p.MacStart, End: p.MacEnd, Quantity: p.MacQuantity}
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func applyUpdate(p *domain.Product, req domain.UpdateRequest) {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Mark != nil {
		p.Mark = *req.Mark
	}
	if req.SerialMask != nil {
		p.SerialMask = strings.TrimSpace(*req.SerialMask)
	}
	if req.BodyID != nil {
		p.BodyID = strings.TrimSpace(*req.BodyID)
	}
	if req.FAC != nil {
		p.FAC = strings.TrimSpace(*req.FAC)
	}
	if req.OUI != nil {
		p.OUI = normalizeHex(*req.OUI)
	}
	if req.MacStart != nil {
		p.MacStart = normalizeHex(*req.MacStart)
	}
	if req.MacEnd != nil {
		p.MacEnd = normalizeHex(*req.MacEnd)
	}
	if req.MacQuantity != nil {
		p.MacQuantity = *req.MacQuantity
	}
}

func identityChanged(before, after domain.Product) bool {
	return before.BodyID != after.BodyID || before.Mark != after.Mark || before.FAC != after.FAC
}

func macBaseChanged(before, after domain.Product) bool {
	return before.OUI != after.OUI || before.MacStart != after.MacStart
}

func parseID(raw string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}

var hexSeparators = strings.NewReplacer(":", "", "-", "", ".", "")

// normalizeHex accepts "00:1b:77" style input and stores "001B77".
func normalizeHex(value string) string {
	return strings.ToUpper(hexSeparators.Replace(strings.TrimSpace(value)))
}

func toResponse(p *domain.Product) domain.Response {
	resp := domain.Response{
		ID:          snowflake.ID(p.ID).String(),
		Name:        p.Name,
		Mark:        p.Mark,
		SerialMask:  p.SerialMask,
		BodyID:      p.BodyID,
		FAC:         p.FAC,
		OUI:         p.OUI,
		MacStart:    p.MacStart,
		MacEnd:      p.MacEnd,
		MacQuantity: p.MacQuantity,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if cfg, ok := p.Identity(); ok {
		resp.TAC = cfg.TAC()
	}
	return resp
}

