//go:build linux

package netio

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Drain implements the reactor-thread drain procedure (spec §4.3): write
// any staged residual from a prior short write first, then peek records
// from the ring buffer and write their payloads directly to the socket.
// Returns wantWrite=true if the caller must register EPOLLOUT interest
// (a short write left residual bytes staged) and false if the channel is
// fully drained.
func (c *Channel) Drain() (wantWrite bool, err error) {
	if c.IsClosed() {
		return false, nil
	}

	if c.hasWriteResidual() {
		n, werr := c.writeToSocket(c.writeBuf[:c.writeLen])
		if werr != nil {
			return false, werr
		}
		if n < c.writeLen {
			copy(c.writeBuf, c.writeBuf[n:c.writeLen])
			c.writeLen -= n
			return true, nil
		}
		c.writeLen = 0
	}

	var drainErr error
	c.ring.Read(func(typeID int32, buf []byte, offset, length int) bool {
		payload := buf[offset : offset+length]
		n, werr := c.writeToSocket(payload)
		if werr != nil {
			drainErr = werr
			return false
		}
		if n < length {
			// Short write: stage the unwritten tail and stop draining the
			// ring entirely (spec §4.3) — any record after this one would
			// be written out of order ahead of this record's own residual.
			if stageErr := c.stageResidual(payload[n:]); stageErr != nil {
				drainErr = stageErr
			}
			return false
		}
		return true
	})
	if drainErr != nil {
		return false, drainErr
	}
	return c.hasWriteResidual(), nil
}

// writeToSocket performs one non-blocking write, treating EAGAIN as a
// zero-byte write rather than an error (the caller stages the remainder).
func (c *Channel) writeToSocket(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	n, err := unix.Write(c.fd, b)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// Close is idempotent: cancels the channel's socket and marks it closed.
// In-flight ring-buffer records are discarded (spec §4.3 "Close
// semantics"). The reactor is responsible for removing the fd from the
// selector before or after calling Close.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(c.fd)
}
