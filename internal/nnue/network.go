package nnue

import "github.com/hailam/lumen/internal/board"

// Network holds the quantized weights. Immutable after loading, so a single
// instance is shared by every search thread.
type Network struct {
	// Feature transformer: input -> L1, one column per feature.
	FTWeights [InputSize][L1Size]int16
	FTBias    [L1Size]int16

	// Head layers.
	L2Weights  [2 * L1Size][L2Size]int16
	L2Bias     [L2Size]int32
	L3Weights  [L2Size][L3Size]int16
	L3Bias     [L3Size]int32
	OutWeights [L3Size]int16
	OutBias    int32
}

// Evaluate runs the head over an accumulator pair and returns centipawns
// from the side to move's point of view, clamped into the static-eval range.
func (n *Network) Evaluate(acc *Accumulator, stm board.Color) int {
	stmAcc := &acc.Values[stm]
	nstmAcc := &acc.Values[stm.Other()]

	// Clipped concatenation: side to move first.
	var l1 [2 * L1Size]int32
	for i := 0; i < L1Size; i++ {
		l1[i] = crelu(int32(stmAcc[i]))
		l1[L1Size+i] = crelu(int32(nstmAcc[i]))
	}

	var l2 [L2Size]int32
	for i := 0; i < L2Size; i++ {
		sum := n.L2Bias[i]
		for j := 0; j < 2*L1Size; j++ {
			sum += l1[j] * int32(n.L2Weights[j][i])
		}
		l2[i] = crelu(sum >> QuantShift)
	}

	var l3 [L3Size]int32
	for i := 0; i < L3Size; i++ {
		sum := n.L3Bias[i]
		for j := 0; j < L2Size; j++ {
			sum += l2[j] * int32(n.L3Weights[j][i])
		}
		l3[i] = crelu(sum >> QuantShift)
	}

	out := n.OutBias
	for i := 0; i < L3Size; i++ {
		out += l3[i] * int32(n.OutWeights[i])
	}

	return clampEval(int(out) * OutputScale >> outputShift)
}

// InitRandom fills the network with small reproducible pseudo-random
// weights. Tests use this so the evaluator exercises the full pipeline
// without a weight file on disk.
func (n *Network) InitRandom(seed uint64) {
	state := seed
	next := func() int16 {
		state = state*6364136223846793005 + 1442695040888963407
		return int16((state>>48)&0xFF) - 128
	}

	for i := range n.FTWeights {
		for j := range n.FTWeights[i] {
			n.FTWeights[i][j] = next() >> 5
		}
	}
	for i := range n.FTBias {
		n.FTBias[i] = next() >> 3
	}
	for i := range n.L2Weights {
		for j := range n.L2Weights[i] {
			n.L2Weights[i][j] = next() >> 4
		}
	}
	for i := range n.L2Bias {
		n.L2Bias[i] = int32(next())
	}
	for i := range n.L3Weights {
		for j := range n.L3Weights[i] {
			n.L3Weights[i][j] = next() >> 4
		}
	}
	for i := range n.L3Bias {
		n.L3Bias[i] = int32(next())
	}
	for i := range n.OutWeights {
		n.OutWeights[i] = next() >> 4
	}
	n.OutBias = int32(next())
}
