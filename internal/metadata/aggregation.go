// Copyright 2026 Hyperlane Relayer Contributors

package metadata

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// buildAggregation calls every sub-ISM in parallel and concatenates the
// first threshold successes under an offset table, per spec.md §4.5. If
// fewer than threshold sub-builds succeed, the whole build fails with
// ErrCouldNotFetch.
func (b *Builder) buildAggregation(ctx context.Context, dest chainadapter.ChainAdapter, ismAddress []byte, message *store.HyperlaneMessage, depth int) ([]byte, error) {
	rawMessage := encodeMessage(message)
	subISMs, threshold, err := dest.ISMSubModulesAndThreshold(ctx, ismAddress, rawMessage)
	if err != nil {
		return nil, failedToBuild("sub_modules_and_threshold", err)
	}
	if threshold == 0 || len(subISMs) == 0 {
		return nil, ErrRefused
	}

	results := make([][]byte, len(subISMs))
	var wg sync.WaitGroup
	for i, sub := range subISMs {
		wg.Add(1)
		go func(i int, sub []byte) {
			defer wg.Done()
			data, err := b.buildAtDepth(ctx, dest, sub, message, depth+1)
			if err == nil {
				if data == nil {
					// A Null sub-ISM succeeds with empty metadata.
					data = []byte{}
				}
				results[i] = data
			}
		}(i, sub)
	}
	wg.Wait()

	return encodeAggregationMetadata(results, threshold)
}

// encodeAggregationMetadata lays out an 8-byte (start,end) offset pair per
// sub-ISM slot, followed by the concatenated bodies of the first threshold
// successful builds in sub-ISM order; a sub-ISM that failed or was skipped
// once threshold was reached keeps a zero-length (start==end) range.
func encodeAggregationMetadata(results [][]byte, threshold int) ([]byte, error) {
	tableLen := 8 * len(results)
	table := make([]byte, tableLen)
	var body []byte

	included := 0
	for i, data := range results {
		if included >= threshold {
			break
		}
		if data == nil {
			continue
		}
		start := uint32(tableLen + len(body))
		body = append(body, data...)
		end := uint32(tableLen + len(body))
		binary.BigEndian.PutUint32(table[i*8:i*8+4], start)
		binary.BigEndian.PutUint32(table[i*8+4:i*8+8], end)
		included++
	}

	if included < threshold {
		return nil, ErrCouldNotFetch
	}
	return append(table, body...), nil
}
