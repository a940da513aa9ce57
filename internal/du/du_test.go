package du

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestComputeReciprocalGraph mirrors spec.md §8 scenario 1: A follows
// [B,C,D]; B follows [A,E]; C follows [E]; D follows [A,F]. Expect
// N1(A)={B,D}, N2(A)={E,F}.
func TestComputeReciprocalGraph(t *testing.T) {
	peerFollows := map[string]map[string]struct{}{
		"B": {"A": {}, "E": {}},
		"C": {"E": {}},
		"D": {"A": {}, "F": {}},
	}
	graph := ComputeReciprocalGraph("A", []string{"B", "C", "D"}, peerFollows)
	require.ElementsMatch(t, []string{"B", "D"}, graph.N1)
	require.ElementsMatch(t, []string{"E", "F"}, graph.N2)
}

// TestComputeDU_FloorsAtMinN1 mirrors spec.md §8 scenario 2: N1 has 3
// members, below MinN1=5.
func TestComputeDU_FloorsAtMinN1(t *testing.T) {
	result := ComputeDU(3, 0, 100, 0, DUInitial, 0.07, 0.3, 0)
	require.False(t, result.Active)
	require.Equal(t, "N1<5", result.Reason)
	require.Equal(t, 0.0, result.DU)
}

func TestComputeDU_AppliesFormula(t *testing.T) {
	// n1=5, n2=0 -> sqrtN2 = sqrt(max(0,1)) = 1
	// duBase = 10 + 0.1*(50 + 0/1)/(5+1) = 10 + 0.1*50/6 = 10 + 0.8333...
	// multiplier = 1 + 0.3*2 = 1.6
	result := ComputeDU(5, 0, 50, 0, DUInitial, 0.1, 0.3, 2)
	require.True(t, result.Active)
	require.InDelta(t, (10+0.1*50.0/6)*1.6, result.DU, 1e-9)
}

func TestComputeDU_UsesSqrtN2Term(t *testing.T) {
	// n1=5, n2=4 -> sqrtN2=2; duBase = 0 + 1*(0+10/2)/(5+2) = 5/7
	result := ComputeDU(5, 4, 0, 10, 0, 1, 0, 0)
	require.True(t, result.Active)
	require.InDelta(t, 5.0/7, result.DU, 1e-9)
}

func TestNullPrevDUProvider_ReturnsInitial(t *testing.T) {
	require.Equal(t, DUInitial, NullPrevDUProvider{}.PrevDU("alice", "market_paris"))
}
