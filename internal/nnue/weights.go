package nnue

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// The weight file is a dense little-endian stream of 16-bit quantized
// values, biases interleaved per layer:
//
//	FT weights  (InputSize x L1Size), FT bias  (L1Size)
//	L2 weights  (2*L1Size x L2Size),  L2 bias  (L2Size)
//	L3 weights  (L2Size x L3Size),    L3 bias  (L3Size)
//	Out weights (L3Size),             Out bias (1)
//
// Weight order is row-major by input: all L1 values of feature 0, then
// feature 1, and so on.

// WeightFileSize is the exact byte length of a valid weight file.
const WeightFileSize = 2 * (InputSize*L1Size + L1Size +
	2*L1Size*L2Size + L2Size +
	L2Size*L3Size + L3Size +
	L3Size + 1)

// LoadFile reads a network from the given path.
func LoadFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open network: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat network: %w", err)
	}
	if info.Size() != WeightFileSize {
		return nil, fmt.Errorf("network %s: size %d, want %d", path, info.Size(), WeightFileSize)
	}

	net, err := Load(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", path, err)
	}
	return net, nil
}

// Load reads a network from a raw weight stream.
func Load(r io.Reader) (*Network, error) {
	net := &Network{}

	readRow := func(row []int16) error {
		return binary.Read(r, binary.LittleEndian, row)
	}
	readBias32 := func(dst []int32) error {
		tmp := make([]int16, len(dst))
		if err := binary.Read(r, binary.LittleEndian, tmp); err != nil {
			return err
		}
		for i, v := range tmp {
			dst[i] = int32(v)
		}
		return nil
	}

	for i := 0; i < InputSize; i++ {
		if err := readRow(net.FTWeights[i][:]); err != nil {
			return nil, fmt.Errorf("feature transformer row %d: %w", i, err)
		}
	}
	if err := readRow(net.FTBias[:]); err != nil {
		return nil, fmt.Errorf("feature transformer bias: %w", err)
	}

	for i := 0; i < 2*L1Size; i++ {
		if err := readRow(net.L2Weights[i][:]); err != nil {
			return nil, fmt.Errorf("L2 row %d: %w", i, err)
		}
	}
	if err := readBias32(net.L2Bias[:]); err != nil {
		return nil, fmt.Errorf("L2 bias: %w", err)
	}

	for i := 0; i < L2Size; i++ {
		if err := readRow(net.L3Weights[i][:]); err != nil {
			return nil, fmt.Errorf("L3 row %d: %w", i, err)
		}
	}
	if err := readBias32(net.L3Bias[:]); err != nil {
		return nil, fmt.Errorf("L3 bias: %w", err)
	}

	if err := readRow(net.OutWeights[:]); err != nil {
		return nil, fmt.Errorf("output weights: %w", err)
	}
	var outBias int16
	if err := binary.Read(r, binary.LittleEndian, &outBias); err != nil {
		return nil, fmt.Errorf("output bias: %w", err)
	}
	net.OutBias = int32(outBias)

	return net, nil
}

// Save writes the network in the same dense format. Used by tests to build
// round-trip fixtures.
func (n *Network) Save(w io.Writer) error {
	writeRow := func(row []int16) error {
		return binary.Write(w, binary.LittleEndian, row)
	}
	writeBias32 := func(src []int32) error {
		tmp := make([]int16, len(src))
		for i, v := range src {
			tmp[i] = int16(v)
		}
		return binary.Write(w, binary.LittleEndian, tmp)
	}

	for i := 0; i < InputSize; i++ {
		if err := writeRow(n.FTWeights[i][:]); err != nil {
			return err
		}
	}
	if err := writeRow(n.FTBias[:]); err != nil {
		return err
	}
	for i := 0; i < 2*L1Size; i++ {
		if err := writeRow(n.L2Weights[i][:]); err != nil {
			return err
		}
	}
	if err := writeBias32(n.L2Bias[:]); err != nil {
		return err
	}
	for i := 0; i < L2Size; i++ {
		if err := writeRow(n.L3Weights[i][:]); err != nil {
			return err
		}
	}
	if err := writeBias32(n.L3Bias[:]); err != nil {
		return err
	}
	if err := writeRow(n.OutWeights[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, int16(n.OutBias))
}
