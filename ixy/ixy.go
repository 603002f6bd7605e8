// Package ixy defines the device-agnostic driver surface every NIC driver
// in this family implements. It mirrors the `IxyDriver` trait boundary the
// original project used to let `ixgbe.Device` and (eventually) other NIC
// families share one set of application-facing tools. This module ships
// only the ixgbe implementation; cmd/ixy-pktgen and cmd/ixy-fwd call
// ixgbe.Init and use *ixgbe.Device directly.
package ixy

import "github.com/ixy-go/ixgbe/mempool"

// Stats accumulates the monotonic counters read_stats adds to. The
// underlying device counters clear on read, so accumulation -- not
// replacement -- is the contract: see Driver.ReadStats.
type Stats struct {
	RxPkts  uint64
	TxPkts  uint64
	RxBytes uint64
	TxBytes uint64
}

// Driver is the surface any ixy-family NIC driver exposes to application
// code (forwarders, generators, stats printers). The data path
// (RxBatch/TxBatch) never returns an error: it returns counts, possibly
// zero, by construction (spec §7).
type Driver interface {
	// DriverName returns a constant string identifying the driver, e.g.
	// "ixy-ixgbe-go".
	DriverName() string

	// RxBatch returns up to max received packets from queueID. It may
	// return an empty slice; it never blocks.
	RxBatch(queueID uint32, max int) []mempool.Packet

	// TxBatch attempts to enqueue every packet in pkts on queueID and
	// returns how many were accepted; the caller retains ownership of
	// the remainder.
	TxBatch(queueID uint32, pkts []mempool.Packet) int

	// ReadStats adds this call's counter deltas into stats.
	ReadStats(stats *Stats)

	// ResetStats reads and discards every counter, zeroing the
	// clear-on-read hardware registers backing ReadStats.
	ResetStats()

	// SetPromisc enables or disables promiscuous mode.
	SetPromisc(enabled bool)

	// GetLinkSpeed returns the negotiated link speed in Mbit/s, or 0 if
	// the link is down.
	GetLinkSpeed() uint16
}
