package ixgbe

import "github.com/ixy-go/ixgbe/ixy"

// ReadStats adds this call's counter deltas into stats. GPRC/GPTC/GORCL/
// GORCH/GOTCL/GOTCH clear on read, so accumulation is mandatory: a caller
// that wants a point-in-time total must zero its own counters first, not
// rely on re-reading the device.
func (d *Device) ReadStats(stats *ixy.Stats) {
	rxPkts := uint64(d.reg.Read32(regGPRC))
	txPkts := uint64(d.reg.Read32(regGPTC))
	rxBytes := uint64(d.reg.Read32(regGORCL)) | uint64(d.reg.Read32(regGORCH))<<32
	txBytes := uint64(d.reg.Read32(regGOTCL)) | uint64(d.reg.Read32(regGOTCH))<<32

	stats.RxPkts += rxPkts
	stats.TxPkts += txPkts
	stats.RxBytes += rxBytes
	stats.TxBytes += txBytes
}

// ResetStats reads and discards every counter. Several of this family's
// counter registers are clear-on-read; the discard is intentional, not a
// missed accumulation.
func (d *Device) ResetStats() {
	var discard ixy.Stats
	d.ReadStats(&discard)
}

// SetPromisc enables or disables promiscuous mode (multicast + unicast
// match-all).
func (d *Device) SetPromisc(enabled bool) {
	if enabled {
		d.reg.SetFlags32(regFCTRL, fctrlMPE|fctrlUPE)
	} else {
		d.reg.ClearFlags32(regFCTRL, fctrlMPE|fctrlUPE)
	}
}

// GetLinkSpeed returns the negotiated link speed in Mbit/s, or 0 if the
// link is down or the speed encoding is unrecognized.
func (d *Device) GetLinkSpeed() uint16 {
	links := d.reg.Read32(regLINKS)
	if links&linksUp == 0 {
		return 0
	}

	switch links & linksSpeedMask82599 {
	case linksSpeed100_82599:
		return 100
	case linksSpeed1G_82599:
		return 1000
	case linksSpeed10G_82599:
		return 10000
	default:
		return 0
	}
}
