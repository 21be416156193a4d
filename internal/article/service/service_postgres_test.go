//go:build postgres

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	macdomain "github.com/smallbiznis/bsma/internal/mac/domain"
	"github.com/smallbiznis/bsma/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: BSMA_TEST_POSTGRES_DSN="host=... user=... dbname=..." go test -tags postgres ./internal/article/service/

const pgWorkers = 16

func createConcurrently(t *testing.T, f *fixture, productID string) []int64 {
	t.Helper()
	serials := make([]int64, pgWorkers)
	errs := make([]error, pgWorkers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < pgWorkers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			resp, err := f.svc.Next(context.Background(), productID, fmt.Sprintf("operator-%d", i))
			errs[i] = err
			if err == nil {
				serials[i] = resp.Serial
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Slice(serials, func(i, j int) bool { return serials[i] < serials[j] })
	return serials
}

func denseSerials(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestPostgresConcurrentCreatesUnderRowLock(t *testing.T) {
	f := newFixtureOn(t, testutil.OpenPostgres(t, pgWorkers))
	f.svc.lockTimeout = 5 * time.Second
	p := f.product(t, "gateway", withMacs("000010", "0000FF", 2))

	assert.Equal(t, denseSerials(pgWorkers), createConcurrently(t, f, idOf(p.ID)))

	distinct := countRows(t, f.db, `SELECT COUNT(DISTINCT "offset") FROM macs WHERE product_id = ? AND article_id IS NOT NULL`, p.ID)
	assert.Equal(t, int64(2*pgWorkers), distinct)
}

func TestPostgresConcurrentCreatesDrainPool(t *testing.T) {
	f := newFixtureOn(t, testutil.OpenPostgres(t, pgWorkers))
	f.svc.lockTimeout = 5 * time.Second
	p := f.product(t, "gateway", withMacs("000010", "0000FF", 1))

	_, err := f.svc.macs.Reserve(context.Background(), macdomain.ReserveRequest{ProductID: idOf(p.ID), Count: pgWorkers / 2})
	require.NoError(t, err)

	assert.Equal(t, denseSerials(pgWorkers), createConcurrently(t, f, idOf(p.ID)))

	pooled := countRows(t, f.db, `SELECT COUNT(*) FROM macs WHERE product_id = ? AND article_id IS NULL`, p.ID)
	assert.Equal(t, int64(0), pooled)
	total := countRows(t, f.db, `SELECT COUNT(*) FROM macs WHERE product_id = ?`, p.ID)
	assert.Equal(t, int64(pgWorkers), total)
}
