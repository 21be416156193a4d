package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bsma/internal/clock"
	obscontext "github.com/smallbiznis/bsma/internal/observability/context"
	"github.com/smallbiznis/bsma/internal/operation/domain"
	"github.com/smallbiznis/bsma/pkg/db"
	"github.com/smallbiznis/bsma/pkg/db/pagination"
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
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("operation.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Record appends an operation to an article. An empty responsible party
// falls back to the caller identity carried on the request context.
func (s *Service) Record(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	articleID, err := snowflake.ParseString(strings.TrimSpace(req.ArticleID))
	if err != nil || articleID == 0 {
		return nil, domain.ErrInvalidArticle
	}
	opType := domain.Type(req.Type)
	if !opType.Valid() {
		return nil, domain.ErrInvalidType
	}
	responsible := s.resolveResponsible(ctx, req.Responsible)
	if responsible == "" {
		return nil, domain.ErrInvalidResponsible
	}

	exists, err := s.repo.ArticleExists(ctx, s.db, articleID.Int64())
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrArticleNotFound
	}

	op := &domain.Operation{
		ID:          s.genID.Generate().Int64(),
		ArticleID:   articleID.Int64(),
		Type:        opType,
		Responsible: responsible,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, op); err != nil {
		if db.IsForeignKeyErr(err) {
			return nil, domain.ErrArticleNotFound
		}
		s.log.Warn("failed to record operation",
			zap.Int64("article_id", op.ArticleID),
			zap.String("type", opType.String()),
			zap.Error(err),
		)
		return nil, err
	}

	resp := toResponse(op)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	opID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || opID == 0 {
		return nil, domain.ErrInvalidID
	}
	op, err := s.repo.FindByID(ctx, s.db, opID.Int64())
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(op)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{Limit: req.Size()}

	if raw := strings.TrimSpace(req.ArticleID); raw != "" {
		articleID, err := snowflake.ParseString(raw)
		if err != nil || articleID == 0 {
			return domain.ListResponse{}, domain.ErrInvalidArticle
		}
		filter.ArticleID = articleID.Int64()
	}
	if req.Type != 0 {
		filter.Type = domain.Type(req.Type)
		if !filter.Type.Valid() {
			return domain.ListResponse{}, domain.ErrInvalidType
		}
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

	items, pageInfo := pagination.Page(items, filter.Limit, func(op *domain.Operation) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: snowflake.ID(op.ID).String()})
		if err != nil {
			return ""
		}
		return token
	})

	ops := make([]domain.Response, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		ops = append(ops, toResponse(item))
	}
	return domain.ListResponse{PageInfo: pageInfo, Operations: ops}, nil
}

func (s *Service) resolveResponsible(ctx context.Context, responsible string) string {
	responsible = strings.TrimSpace(responsible)
	if responsible != "" {
		return responsible
	}
	if _, actorID := obscontext.ActorFromContext(ctx); actorID != "" {
		return actorID
	}
	return ""
}

func toResponse(op *domain.Operation) domain.Response {
	return domain.Response{
		ID:          snowflake.ID(op.ID).String(),
		ArticleID:   snowflake.ID(op.ArticleID).String(),
		Type:        int(op.Type),
		TypeName:    op.Type.String(),
		Responsible: op.Responsible,
		CreatedAt:   op.CreatedAt,
	}
}
