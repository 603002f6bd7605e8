// Package ixgbe implements a poll-mode, user-space driver for the Intel
// 82599 10-Gigabit Ethernet controller family. It maps the device's BAR0
// into the process, programs its DMA engines against huge-page-backed
// buffer pools, and exposes a batched, non-blocking RX/TX API over
// per-queue descriptor rings.
package ixgbe

import (
	"fmt"
	"log"
	"time"

	"github.com/ixy-go/ixgbe/ixy"
	"github.com/ixy-go/ixgbe/mempool"
	"github.com/ixy-go/ixgbe/mmio"
	"github.com/ixy-go/ixgbe/pcisysfs"
)

const driverName = "ixy-ixgbe-go"

// Device implements ixy.Driver.
var _ ixy.Driver = (*Device)(nil)

// MaxQueues bounds the number of RX or TX queues a single Device may
// drive; the original project fixes this at build time rather than
// discovering it from the device.
const MaxQueues = 64

// Queue-size bounds, carried forward from the original driver
// (original_source/src/driver/ixgbe.rs): NumRX/TXQueueEntries are the ring
// sizes Init uses for every queue, with no way for callers to change them;
// MaxRX/TXQueueEntries record the ring-size ceiling and are not consulted
// by Init.
const (
	NumRXQueueEntries = 512
	NumTXQueueEntries = 512

	MaxRXQueueEntries = 4096
	MaxTXQueueEntries = 4096

	// TxCleanBatch is the number of TX descriptors reclaimed per
	// cleaning pass; see txqueue.go.
	TxCleanBatch = 32

	rxBufSize = 2048
)

// Device owns one 82599's register window and every RX/TX queue
// configured against it.
type Device struct {
	reg *mmio.Window

	rxQueues []*rxQueue
	txQueues []*txQueue
}

// Init maps pciAddr's BAR0 and runs the datasheet bring-up sequence:
// reset, EEPROM wait, link init, RX/TX queue configuration, queue start,
// promiscuous enable, and a bounded link-up poll. Any failure here is
// fatal to the caller -- there is no partial-success state to recover
// from.
func Init(pciAddr string, numRxQueues, numTxQueues uint32) (*Device, error) {
	if numRxQueues > MaxQueues || numTxQueues > MaxQueues {
		return nil, fmt.Errorf("ixgbe: queue count exceeds MaxQueues (%d)", MaxQueues)
	}

	bar, err := pcisysfs.Map(pciAddr)
	if err != nil {
		return nil, fmt.Errorf("ixgbe: map %s: %w", pciAddr, err)
	}

	dev := &Device{reg: mmio.New(bar)}

	if err := dev.resetAndInit(numRxQueues, numTxQueues); err != nil {
		return nil, err
	}

	return dev, nil
}

func (d *Device) resetAndInit(numRxQueues, numTxQueues uint32) error {
	// section 4.6.3.1 - disable all interrupts
	d.reg.Write32(regEIMC, 0x7FFFFFFF)

	// section 4.6.3.2 - global reset
	d.reg.Write32(regCTRL, ctrlRSTMask)
	d.reg.WaitClear(regCTRL, ctrlRSTMask)
	time.Sleep(10 * time.Millisecond)

	// disable interrupts again after reset
	d.reg.Write32(regEIMC, 0x7FFFFFFF)

	log.Printf("ixgbe: initializing device")

	// section 4.6.3 - wait for EEPROM auto-read and DMA init
	d.reg.WaitSet(regEEC, eecARD)
	d.reg.WaitSet(regRDRXCTL, rdrxctlDMAIDONE)

	log.Printf("ixgbe: initializing link")
	d.initLink()

	log.Printf("ixgbe: resetting stats")
	d.ResetStats()

	log.Printf("ixgbe: initializing rx")
	if err := d.initRX(numRxQueues); err != nil {
		return err
	}

	log.Printf("ixgbe: initializing tx")
	if err := d.initTX(numTxQueues); err != nil {
		return err
	}

	log.Printf("ixgbe: starting rx queues")
	for i := range d.rxQueues {
		if err := d.startRXQueue(uint32(i)); err != nil {
			return err
		}
	}

	log.Printf("ixgbe: starting tx queues")
	for i := range d.txQueues {
		if err := d.startTXQueue(uint32(i)); err != nil {
			return err
		}
	}

	log.Printf("ixgbe: enabling promiscuous mode")
	d.SetPromisc(true)

	log.Printf("ixgbe: waiting for link")
	d.waitForLink()

	return nil
}

// section 4.6.4 - link init (auto negotiation)
func (d *Device) initLink() {
	autoc := d.reg.Read32(regAUTOC)
	autoc = (autoc &^ autocLMSMask) | autocLMS10GSerial
	d.reg.Write32(regAUTOC, autoc)

	autoc = d.reg.Read32(regAUTOC)
	autoc = (autoc &^ autocPMAPMDMask) | autoc10GXAUI
	d.reg.Write32(regAUTOC, autoc)

	d.reg.SetFlags32(regAUTOC, autocANRestart)
}

func (d *Device) waitForLink() {
	const (
		maxWait      = 10 * time.Second
		pollInterval = 10 * time.Millisecond
	)

	deadline := time.Now().Add(maxWait)
	for d.GetLinkSpeed() == 0 && time.Now().Before(deadline) {
		time.Sleep(pollInterval)
	}

	log.Printf("ixgbe: link speed is %d Mbit/s", d.GetLinkSpeed())
}

// DriverName returns a constant string identifying this driver.
func (d *Device) DriverName() string { return driverName }

// RxBatch returns up to max received packets from queueID.
func (d *Device) RxBatch(queueID uint32, max int) []mempool.Packet {
	return d.rxQueues[queueID].rxBatch(d.reg, max)
}

// TxBatch enqueues as many of pkts as the ring has room for and returns
// the count accepted.
func (d *Device) TxBatch(queueID uint32, pkts []mempool.Packet) int {
	return d.txQueues[queueID].txBatch(d.reg, pkts)
}
