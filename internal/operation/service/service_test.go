package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bsma/internal/clock"
	obscontext "github.com/smallbiznis/bsma/internal/observability/context"
	"github.com/smallbiznis/bsma/internal/operation/domain"
	"github.com/smallbiznis/bsma/internal/operation/repository"
	"github.com/smallbiznis/bsma/internal/testutil"
	"github.com/smallbiznis/bsma/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setup(t *testing.T) (*Service, string) {
	t.Helper()
	conn := testutil.OpenSQLite(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	productID := node.Generate().Int64()
	articleID := node.Generate()
	require.NoError(t, conn.Exec(`INSERT INTO products (id, name) VALUES (?, 'router')`, productID).Error)
	require.NoError(t, conn.Exec(
		`INSERT INTO articles (id, product_id, serial, created_by) VALUES (?, ?, 1, 'op')`,
		articleID.Int64(), productID,
	).Error)

	return &Service{
		db:    conn,
		log:   zaptest.NewLogger(t),
		genID: node,
		clock: clock.NewFakeClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		repo:  repository.Provide(),
	}, articleID.String()
}

func TestRecordOperation(t *testing.T) {
	svc, articleID := setup(t)
	ctx := context.Background()

	resp, err := svc.Record(ctx, domain.CreateRequest{ArticleID: articleID, Type: int(domain.TypeTested), Responsible: "bench-3"})
	require.NoError(t, err)
	assert.Equal(t, "tested", resp.TypeName)
	assert.Equal(t, "bench-3", resp.Responsible)

	got, err := svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.ArticleID, got.ArticleID)
}

func TestRecordFallsBackToActor(t *testing.T) {
	svc, articleID := setup(t)
	ctx := obscontext.WithActor(context.Background(), "user", "operator-9")

	resp, err := svc.Record(ctx, domain.CreateRequest{ArticleID: articleID, Type: int(domain.TypePacked)})
	require.NoError(t, err)
	assert.Equal(t, "operator-9", resp.Responsible)

	_, err = svc.Record(context.Background(), domain.CreateRequest{ArticleID: articleID, Type: int(domain.TypePacked)})
	assert.ErrorIs(t, err, domain.ErrInvalidResponsible)
}

func TestRecordValidation(t *testing.T) {
	svc, articleID := setup(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, domain.CreateRequest{ArticleID: articleID, Type: 42, Responsible: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = svc.Record(ctx, domain.CreateRequest{ArticleID: "abc", Type: 1, Responsible: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidArticle)

	_, err = svc.Record(ctx, domain.CreateRequest{ArticleID: "12345", Type: 1, Responsible: "x"})
	assert.ErrorIs(t, err, domain.ErrArticleNotFound)
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, articleID := setup(t)
	ctx := context.Background()

	for _, typ := range []domain.Type{domain.TypeProgrammed, domain.TypeTested, domain.TypeLabeled} {
		_, err := svc.Record(ctx, domain.CreateRequest{ArticleID: articleID, Type: int(typ), Responsible: "line-1"})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, domain.ListRequest{
		Pagination: pagination.Pagination{PageSize: 2},
		ArticleID:  articleID,
	})
	require.NoError(t, err)
	require.Len(t, first.Operations, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "labeled", first.Operations[0].TypeName)

	second, err := svc.List(ctx, domain.ListRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
		ArticleID:  articleID,
	})
	require.NoError(t, err)
	require.Len(t, second.Operations, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "programmed", second.Operations[0].TypeName)

	tested, err := svc.List(ctx, domain.ListRequest{Type: int(domain.TypeTested)})
	require.NoError(t, err)
	assert.Len(t, tested.Operations, 1)

	_, err = svc.List(ctx, domain.ListRequest{Pagination: pagination.Pagination{PageToken: "garbage"}})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}
