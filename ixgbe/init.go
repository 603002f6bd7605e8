package ixgbe

import (
	"fmt"

	"github.com/ixy-go/ixgbe/mempool"
)

// section 4.6.7 - RX init
func (d *Device) initRX(numQueues uint32) error {
	// disable rx while re-configuring
	d.reg.ClearFlags32(regRXCTRL, rxctrlRXEN)

	// assign all RX packet buffer space to pool 0
	d.reg.Write32(regRXPBSIZE(0), rxpbsize128KB)
	for i := uint32(1); i < 8; i++ {
		d.reg.Write32(regRXPBSIZE(i), 0)
	}

	// enable CRC stripping
	d.reg.SetFlags32(regHLREG0, hlreg0RXCRCSTRP)
	d.reg.SetFlags32(regRDRXCTL, rdrxctlCRCSTRIP)

	// accept broadcast packets
	d.reg.SetFlags32(regFCTRL, fctrlBAM)

	poolSize := uint32(NumRXQueueEntries + NumTXQueueEntries)
	if poolSize < 4096 {
		poolSize = 4096
	}

	for i := uint32(0); i < numQueues; i++ {
		srrctl := (d.reg.Read32(regSRRCTL(i)) &^ srrctlDescTypeMask) | srrctlDescTypeAdvOneBuf
		d.reg.Write32(regSRRCTL(i), srrctl)
		d.reg.SetFlags32(regSRRCTL(i), srrctlDropEn)

		pool, err := mempool.Allocate(poolSize, rxBufSize)
		if err != nil {
			return fmt.Errorf("ixgbe: allocate rx pool for queue %d: %w", i, err)
		}

		q, err := newRXQueue(i, NumRXQueueEntries, pool)
		if err != nil {
			return err
		}

		d.reg.Write32(regRDBAL(i), uint32(q.ring.PhysBase&0xFFFFFFFF))
		d.reg.Write32(regRDBAH(i), uint32(q.ring.PhysBase>>32))
		d.reg.Write32(regRDLEN(i), uint32(q.entries)*rxDescSize)

		d.reg.Write32(regRDH(i), 0)
		d.reg.Write32(regRDT(i), 0)

		d.rxQueues = append(d.rxQueues, q)
	}

	d.reg.SetFlags32(regCTRLExt, ctrlExtNSDis)

	for i := uint32(0); i < numQueues; i++ {
		d.reg.ClearFlags32(regDCARXCTRL(i), 1<<12)
	}

	d.reg.SetFlags32(regRXCTRL, rxctrlRXEN)

	return nil
}

// section 4.6.8 - TX init
func (d *Device) initTX(numQueues uint32) error {
	d.reg.SetFlags32(regHLREG0, hlreg0TXCRCEN|hlreg0TXPADEN)

	d.reg.Write32(regTXPBSIZE(0), txpbsize40KB)
	for i := uint32(1); i < 8; i++ {
		d.reg.Write32(regTXPBSIZE(i), 0)
	}

	d.reg.Write32(regDTXMXSZRQ, 0xFFFF)
	d.reg.ClearFlags32(regRTTDCS, rttdcsARBDIS)

	for i := uint32(0); i < numQueues; i++ {
		q, err := newTXQueue(i, NumTXQueueEntries)
		if err != nil {
			return err
		}

		d.reg.Write32(regTDBAL(i), uint32(q.ring.PhysBase&0xFFFFFFFF))
		d.reg.Write32(regTDBAH(i), uint32(q.ring.PhysBase>>32))
		d.reg.Write32(regTDLEN(i), uint32(q.entries)*txDescSize)

		txdctl := d.reg.Read32(regTXDCTL(i))
		txdctl &^= 0x3F | (0x3F << 8) | (0x3F << 16)
		txdctl |= 36 | (8 << 8) | (4 << 16)
		d.reg.Write32(regTXDCTL(i), txdctl)

		d.txQueues = append(d.txQueues, q)
	}

	d.reg.SetFlags32(regDMATXCTL, dmatxctlTE)

	return nil
}

func (d *Device) startRXQueue(queueID uint32) error {
	q := d.rxQueues[queueID]

	if q.entries == 0 || q.entries&(q.entries-1) != 0 {
		return fmt.Errorf("ixgbe: rx queue %d size not a power of two", queueID)
	}

	for i := uint32(0); i < q.entries; i++ {
		buf, err := q.pool.AllocBuf()
		if err != nil {
			return fmt.Errorf("ixgbe: prefill rx queue %d: %w", queueID, err)
		}

		armRXDesc(rxDescAt(q.ring, i), q.pool.PhysOf(buf))
		q.bufs[i] = buf
	}

	d.reg.SetFlags32(regRXDCTL(queueID), rxdctlEnable)
	d.reg.WaitSet(regRXDCTL(queueID), rxdctlEnable)

	// rx queue starts out full, from the device's point of view
	d.reg.Write32(regRDT(queueID), q.entries-1)

	return nil
}

func (d *Device) startTXQueue(queueID uint32) error {
	q := d.txQueues[queueID]

	if q.entries == 0 || q.entries&(q.entries-1) != 0 {
		return fmt.Errorf("ixgbe: tx queue %d size not a power of two", queueID)
	}

	d.reg.Write32(regTDH(queueID), 0)
	d.reg.Write32(regTDT(queueID), 0)

	d.reg.SetFlags32(regTXDCTL(queueID), txdctlEnable)
	d.reg.WaitSet(regTXDCTL(queueID), txdctlEnable)

	return nil
}
