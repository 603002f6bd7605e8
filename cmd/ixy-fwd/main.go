// Command ixy-fwd forwards packets between queue 0 of two devices, printing
// aggregate stats periodically. Modeled on
// the original ixy.rs project's bundled fwd binary per SPEC_FULL.md §D.
package main

import (
	"log"
	"time"

	"github.com/alecthomas/kong"

	"github.com/ixy-go/ixgbe/ixgbe"
	"github.com/ixy-go/ixgbe/ixy"
)

const batchSize = 64

// CLI mirrors cmd/ixy-pktgen's kong.Parse shape, grounded on the teacher's
// flag/runs.go.
type CLI struct {
	PCIAddr1 string `short:"1" required:"" help:"PCI address of the first device"`
	PCIAddr2 string `short:"2" required:"" help:"PCI address of the second device"`
}

func main() {
	var cli CLI

	kong.Parse(&cli,
		kong.Name("ixy-fwd"),
		kong.Description("forwards packets between two devices"),
		kong.UsageOnError())

	dev1, err := ixgbe.Init(cli.PCIAddr1, 1, 1)
	if err != nil {
		log.Fatalf("ixy-fwd: init %s: %v", cli.PCIAddr1, err)
	}

	dev2, err := ixgbe.Init(cli.PCIAddr2, 1, 1)
	if err != nil {
		log.Fatalf("ixy-fwd: init %s: %v", cli.PCIAddr2, err)
	}

	var stats1, stats2 ixy.Stats

	lastPrint := time.Now()

	for {
		forward(dev1, dev2)
		forward(dev2, dev1)

		if time.Since(lastPrint) > time.Second {
			dev1.ReadStats(&stats1)
			dev2.ReadStats(&stats2)
			log.Printf("dev1 rx=%d tx=%d | dev2 rx=%d tx=%d",
				stats1.RxPkts, stats1.TxPkts, stats2.RxPkts, stats2.TxPkts)
			lastPrint = time.Now()
		}
	}
}

func forward(from, to *ixgbe.Device) {
	pkts := from.RxBatch(0, batchSize)
	if len(pkts) == 0 {
		return
	}

	sent := to.TxBatch(0, pkts)

	// Packets the peer's ring had no room for are dropped, same as the
	// original fwd tool: tx_batch's contract is "caller keeps the
	// remainder", and a forwarder with nowhere to put them drops them
	// rather than blocking.
	for _, p := range pkts[sent:] {
		p.Free()
	}
}
