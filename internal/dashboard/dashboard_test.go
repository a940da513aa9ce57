package dashboard

import (
	"testing"

	"github.com/stretchr/testify/require"

	"troczen/internal/circuit"
	"troczen/internal/du"
	"troczen/internal/params"
)

func TestCategory(t *testing.T) {
	require.Equal(t, "Tisseur", Category(10, 50))
	require.Equal(t, "Actif", Category(5, 0))
	require.Equal(t, "Emergent", Category(2, 0))
	require.Equal(t, "Starter", Category(1, 0))
	require.Equal(t, "Starter", Category(0, 0))
}

func TestSignals_DefaultsToStable(t *testing.T) {
	d := du.Result{Active: true, DU: 5}
	p := params.AllParams{HealthRatio: 1.2, C2: 0.07, TTLOptimal: 28, Alpha: 0.3}
	circ := circuit.UserCirculation{LoopCount: 3}

	require.Equal(t, []string{"stable"}, Signals(d, p, circ))
}

func TestSignals_TriggersInactiveAndHighDU(t *testing.T) {
	d := du.Result{Active: false, DU: 25}
	p := params.AllParams{HealthRatio: 1.2, C2: 0.07, TTLOptimal: 28, Alpha: 0.3}
	circ := circuit.UserCirculation{LoopCount: 0}

	signals := SignalsWithThresholds(d, p, circ, DefaultThresholds)
	require.Contains(t, signals, "du_inactive")
	require.Contains(t, signals, "du_high")
	require.Contains(t, signals, "loops_zero")
	require.NotContains(t, signals, "stable")
}

func TestSignals_HealthAndC2Bounds(t *testing.T) {
	d := du.Result{Active: true}
	p := params.AllParams{HealthRatio: 0.5, C2: 0.2, TTLOptimal: 10, Alpha: 0.6}
	circ := circuit.UserCirculation{LoopCount: 20}

	signals := Signals(d, p, circ)
	require.Contains(t, signals, "health_ratio_low")
	require.Contains(t, signals, "c2_high")
	require.Contains(t, signals, "ttl_optimal_low")
	require.Contains(t, signals, "alpha_high")
	require.Contains(t, signals, "loops_high")
}

func TestBuildNetwork_ComputesN2PerN1(t *testing.T) {
	network := BuildNetwork(10, 50)
	require.Equal(t, 5.0, network.N2PerN1)
	require.Equal(t, "Tisseur", network.Category)
}

func TestBuildNetwork_ZeroN1AvoidsDivisionByZero(t *testing.T) {
	network := BuildNetwork(0, 0)
	require.Equal(t, 0.0, network.N2PerN1)
}
