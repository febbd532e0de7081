package repo_test

import (
	"context"
	"testing"

	"github.com/foliavcs/folia/delta"
	"github.com/foliavcs/folia/entity"
	"github.com/foliavcs/folia/metrics"
	"github.com/foliavcs/folia/repo"
	"github.com/foliavcs/folia/storage"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := <-ch
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestMetricsRecordCommitsAndResets(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	adapter := storage.NewMemoryAdapter()
	r, err := repo.Create(ctx, adapter, testConfig(), repo.WithMetrics(m))
	require.NoError(t, err)

	d := delta.New()
	require.NoError(t, d.Add(createChange("p", map[string]entity.Value{"name": "Test"})))
	_, err = r.Commit(ctx, d, "create p")
	require.NoError(t, err)

	require.NoError(t, r.Reset(ctx, -1))

	assert1 := counterValue(t, m.CommitsTotal.WithLabelValues("ok"))
	require.Equal(t, float64(1), assert1)
	require.Equal(t, float64(1), counterValue(t, m.ResetsTotal))
}
