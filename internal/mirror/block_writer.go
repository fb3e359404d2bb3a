// internal/mirror/block_writer.go
package mirror

import (
	"errors"
	"fmt"
	"strings"
)

// maxWriteQuantity is the FC 16 per-request register limit.
const maxWriteQuantity = 123

// blockWriter keeps one register block on the endpoint in sync.
// The first write, and the first write after any failure, re-asserts the
// whole block. Otherwise only changed runs are written.
type blockWriter struct {
	cli    Client
	unitID uint8
	base   uint16

	needFull bool
	last     []uint16
}

func newBlockWriter(cli Client, unitID uint8, base uint16) *blockWriter {
	return &blockWriter{
		cli:      cli,
		unitID:   unitID,
		base:     base,
		needFull: true,
	}
}

// Write delivers regs. It returns the number of registers written.
func (bw *blockWriter) Write(regs []uint16) (int, error) {
	if bw.cli == nil {
		return 0, errors.New("mirror: no client")
	}

	// ------------------------------------------------------------
	// Full block write
	// ------------------------------------------------------------
	if bw.needFull || len(bw.last) != len(regs) {
		if err := bw.writeChunked(0, regs); err != nil {
			bw.needFull = true
			return 0, fmt.Errorf("mirror: full block write failed: %w", err)
		}
		bw.needFull = false
		bw.last = append(bw.last[:0], regs...)
		return len(regs), nil
	}

	// ------------------------------------------------------------
	// Incremental: contiguous runs of changed registers
	// ------------------------------------------------------------
	var errs []string
	written := 0

	for i := 0; i < len(regs); {
		if regs[i] == bw.last[i] {
			i++
			continue
		}
		j := i
		for j < len(regs) && regs[j] != bw.last[j] {
			j++
		}

		if err := bw.writeChunked(i, regs[i:j]); err != nil {
			errs = append(errs, fmt.Sprintf("slots %d-%d: %v", i, j-1, err))
		} else {
			copy(bw.last[i:j], regs[i:j])
			written += j - i
		}
		i = j
	}

	if len(errs) > 0 {
		// any partial failure introduces doubt; re-assert on next success
		bw.needFull = true
		return written, errors.New("mirror: " + strings.Join(errs, " | "))
	}
	return written, nil
}

func (bw *blockWriter) writeChunked(offset int, regs []uint16) error {
	for len(regs) > 0 {
		n := len(regs)
		if n > maxWriteQuantity {
			n = maxWriteQuantity
		}
		if err := bw.cli.WriteRegisters(bw.unitID, bw.base+uint16(offset), regs[:n]); err != nil {
			return err
		}
		regs = regs[n:]
		offset += n
	}
	return nil
}
