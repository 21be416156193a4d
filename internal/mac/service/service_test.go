package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bsma/internal/identity"
	"github.com/smallbiznis/bsma/internal/mac/domain"
	"github.com/smallbiznis/bsma/internal/mac/repository"
	productdomain "github.com/smallbiznis/bsma/internal/product/domain"
	productrepo "github.com/smallbiznis/bsma/internal/product/repository"
	"github.com/smallbiznis/bsma/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	svc  *Service
	db   *gorm.DB
	node *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testutil.OpenSQLite(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	return &fixture{
		svc: &Service{
			db:       conn,
			log:      zaptest.NewLogger(t),
			genID:    node,
			repo:     repository.Provide(),
			products: productrepo.Provide(),
		},
		db:   conn,
		node: node,
	}
}

func (f *fixture) product(t *testing.T, start, end string, quantity int) *productdomain.Product {
	t.Helper()
	now := time.Now().UTC()
	p := &productdomain.Product{
		ID:          f.node.Generate().Int64(),
		Name:        "router-" + start + "-" + end,
		OUI:         "001B77",
		MacStart:    start,
		MacEnd:      end,
		MacQuantity: quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, productrepo.Provide().Create(context.Background(), f.db, p))
	return p
}

func (f *fixture) article(t *testing.T, productID, serial int64) int64 {
	t.Helper()
	id := f.node.Generate().Int64()
	require.NoError(t, f.db.Exec(
		`INSERT INTO articles (id, product_id, serial, created_by) VALUES (?, ?, ?, 'op')`,
		id, productID, serial,
	).Error)
	return id
}

func (f *fixture) macs(t *testing.T, productID int64, articleID *int64, offsets ...int64) {
	t.Helper()
	rows := make([]domain.Mac, 0, len(offsets))
	for _, o := range offsets {
		rows = append(rows, domain.Mac{ID: f.node.Generate().Int64(), ProductID: productID, Offset: o, ArticleID: articleID})
	}
	require.NoError(t, repository.Provide().InsertBatch(context.Background(), f.db, rows))
}

func offsetsOf(macs []domain.Mac) []int64 {
	out := make([]int64, 0, len(macs))
	for _, m := range macs {
		out = append(out, m.Offset)
	}
	return out
}

func TestAllocateBlockPrefersPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "000010", "0000FF", 2)
	f.macs(t, p.ID, nil, 3, 1, 2)
	articleID := f.article(t, p.ID, 1)

	var got []domain.Mac
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		got, err = f.svc.AllocateBlock(ctx, tx, p, articleID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, offsetsOf(got))

	total, pooled, err := f.svc.repo.Count(ctx, f.db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(1), pooled)

	attached, err := f.svc.ListByArticle(ctx, nil, articleID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, offsetsOf(attached))
}

func TestAllocateBlockExtendsRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "000010", "0000FF", 2)
	owner := f.article(t, p.ID, 1)
	f.macs(t, p.ID, &owner, 1, 2, 3, 4, 5)
	articleID := f.article(t, p.ID, 2)

	got, err := f.svc.AllocateBlock(ctx, f.db, p, articleID)
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 7}, offsetsOf(got))

	addresses, err := domain.Addresses(identityOf(t, p), got)
	require.NoError(t, err)
	assert.Equal(t, []string{"00-1B-77-00-00-16", "00-1B-77-00-00-17"}, addresses)
}

func TestAllocateBlockExtendsWhenPoolTooSmall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "000010", "0000FF", 2)
	f.macs(t, p.ID, nil, 1)
	articleID := f.article(t, p.ID, 1)

	got, err := f.svc.AllocateBlock(ctx, f.db, p, articleID)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, offsetsOf(got))
}

func TestAllocateBlockDisabled(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "000010", "0000FF", 0)
	articleID := f.article(t, p.ID, 1)

	got, err := f.svc.AllocateBlock(context.Background(), f.db, p, articleID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCheckCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	zero := f.product(t, "000010", "000010", 1)
	require.NoError(t, f.svc.CheckCapacity(ctx, f.db, zero), "no rows yet")

	owner := f.article(t, zero.ID, 1)
	f.macs(t, zero.ID, &owner, 1)

	err := f.svc.CheckCapacity(ctx, f.db, zero)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCapacityExhausted)
	var capErr *domain.CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, zero.ID, capErr.ProductID)
	assert.Equal(t, "00-1B-77-00-00-11", capErr.LastAddress)

	roomy := f.product(t, "000010", "000014", 1)
	other := f.article(t, roomy.ID, 1)
	f.macs(t, roomy.ID, &other, 1, 2, 3)
	assert.NoError(t, f.svc.CheckCapacity(ctx, f.db, roomy))
}

func TestReleaseReturnsUnitsToPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "000010", "0000FF", 2)
	articleID := f.article(t, p.ID, 1)
	f.macs(t, p.ID, &articleID, 1, 2)

	released, err := f.svc.Release(ctx, f.db, articleID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)

	_, pooled, err := f.svc.repo.Count(ctx, f.db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pooled)
}

func TestReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "000010", "000014", 1)
	id := snowflake.ID(p.ID).String()

	resp, err := f.svc.Reserve(ctx, domain.ReserveRequest{ProductID: id, Count: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, resp.Offsets)
	assert.Equal(t, "00-1B-77-00-00-11", resp.Addresses[0])

	// offset 4 maps to mac_end, which CheckCapacity treats as exhausted
	_, err = f.svc.Reserve(ctx, domain.ReserveRequest{ProductID: id, Count: 1})
	assert.ErrorIs(t, err, domain.ErrCapacityExhausted)

	_, err = f.svc.Reserve(ctx, domain.ReserveRequest{ProductID: id, Count: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidCount)

	usage, err := f.svc.Usage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage.Total)
	assert.Equal(t, int64(3), usage.Pooled)
	assert.False(t, usage.Exhausted)
}

func TestReservedUnitsStayAllocatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "000010", "000014", 1)

	_, err := f.svc.Reserve(ctx, domain.ReserveRequest{ProductID: snowflake.ID(p.ID).String(), Count: 3})
	require.NoError(t, err)
	articleID := f.article(t, p.ID, 1)

	var got []domain.Mac
	err = f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.svc.CheckCapacity(ctx, tx, p); err != nil {
			return err
		}
		var err error
		got, err = f.svc.AllocateBlock(ctx, tx, p, articleID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, offsetsOf(got))

	_, pooled, err := f.svc.repo.Count(ctx, f.db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pooled)
}

func TestReserveWithoutMacConfig(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	p := &productdomain.Product{ID: f.node.Generate().Int64(), Name: "cable", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, productrepo.Provide().Create(context.Background(), f.db, p))

	_, err := f.svc.Reserve(context.Background(), domain.ReserveRequest{ProductID: snowflake.ID(p.ID).String(), Count: 1})
	assert.ErrorIs(t, err, domain.ErrMacDisabled)
}

func identityOf(t *testing.T, p *productdomain.Product) identity.MacRange {
	t.Helper()
	r, ok := p.MacConfig()
	require.True(t, ok)
	return r
}
