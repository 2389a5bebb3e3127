package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odfbrute/internal/odfcrypt"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	assert.NotNil(t, r.CandidatesTotal)
	assert.NotNil(t, r.TrialsTotal)
	assert.NotNil(t, r.RejectionsTotal)
	assert.NotNil(t, r.FoundTotal)
	assert.Len(t, r.trials, len(odfcrypt.Modes))
	assert.Len(t, r.rejections, len(odfcrypt.Stages))
}

func TestObserveTrial(t *testing.T) {
	r := NewRegistry()
	r.ObserveTrial(odfcrypt.PreHashed, odfcrypt.StageUnpad)
	r.ObserveTrial(odfcrypt.Raw, odfcrypt.StageUnpad)
	r.ObserveTrial(odfcrypt.Raw, odfcrypt.StageInflate)
	r.ObserveTrial(odfcrypt.Raw, odfcrypt.StageDone)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.TrialsTotal.WithLabelValues("prehashed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.TrialsTotal.WithLabelValues("raw")))

	rej, err := r.Rejections()
	require.NoError(t, err)
	assert.Equal(t, 2.0, rej["unpad"])
	assert.Equal(t, 1.0, rej["inflate"])
	assert.Equal(t, 0.0, rej["xml"])
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	a.CandidatesTotal.Add(5)

	var m dto.Metric
	require.NoError(t, b.CandidatesTotal.Write(&m))
	assert.Equal(t, 0.0, m.GetCounter().GetValue())
	assert.Equal(t, 5.0, testutil.ToFloat64(a.CandidatesTotal))
}

func TestGathererExposesSessionMetrics(t *testing.T) {
	r := NewRegistry()
	r.ObserveTrial(odfcrypt.Raw, odfcrypt.StageCipher)

	n, err := testutil.GatherAndCount(r.Gatherer(), "odfbrute_trials_total", "odfbrute_rejections_total")
	require.NoError(t, err)
	// two modes and five rejecting stages, all pre-resolved
	assert.Equal(t, len(odfcrypt.Modes)+len(odfcrypt.Stages), n)

	// the default registry is never touched
	n, err = testutil.GatherAndCount(prometheus.DefaultGatherer, "odfbrute_trials_total")
	require.NoError(t, err)
	assert.Zero(t, n)
}
