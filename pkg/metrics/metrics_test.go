package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, func() int { return 3 })

	m.ChatRequests.WithLabelValues("generated").Inc()
	m.Fallbacks.WithLabelValues("timeout").Add(2)
	m.CTAShown.WithLabelValues("packs").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatRequests.WithLabelValues("generated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("timeout")))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["personachat_sessions_active"])
	assert.True(t, names["personachat_cta_shown_total"])
}

func TestNop_Independent(t *testing.T) {
	// Two private registries must not collide
	a := Nop()
	b := Nop()
	a.Emotions.WithLabelValues("happy").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Emotions.WithLabelValues("happy")))
}
