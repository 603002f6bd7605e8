// Command ixy-pktgen floods a single TX queue with a fixed test frame as
// fast as tx_batch will accept it, printing the cumulative TX counters every
// second. It
// plays the role the original ixy.rs project's bundled pktgen binary
// played, reconstructed here per SPEC_FULL.md §D since the filtered
// original_source/ kept only the driver core.
package main

import (
	"log"
	"time"

	"github.com/alecthomas/kong"

	"github.com/ixy-go/ixgbe/ixgbe"
	"github.com/ixy-go/ixgbe/ixy"
	"github.com/ixy-go/ixgbe/mempool"
)

const batchSize = 64

// CLI mirrors the teacher's BootArgs-then-kong.Parse shape
// (flag/flag.go's BootArgs, flag/runs.go's kong.Parse call), collapsed to
// one struct since this tool has no subcommands.
type CLI struct {
	PCIAddr string `short:"a" required:"" help:"PCI address of the device, e.g. 0000:03:00.0"`
	Queue   uint32 `short:"q" default:"0" help:"TX queue to generate on"`
}

// A minimal 60-byte Ethernet frame, same role as the original project's
// fixed test packet: fixed placeholder MACs and the IPv4 ethertype. No IPv4
// or UDP header is filled in; every byte after the ethertype is zero.
var testPacket = buildTestPacket()

func buildTestPacket() []byte {
	pkt := make([]byte, 60)
	copy(pkt[0:6], []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}) // dst mac
	copy(pkt[6:12], []byte{0x11, 0x12, 0x13, 0x14, 0x15, 0x16}) // src mac
	pkt[12], pkt[13] = 0x08, 0x00                              // ethertype: IPv4

	return pkt
}

func main() {
	var cli CLI

	kong.Parse(&cli,
		kong.Name("ixy-pktgen"),
		kong.Description("floods a TX queue with a fixed test packet"),
		kong.UsageOnError())

	dev, err := ixgbe.Init(cli.PCIAddr, 1, 1)
	if err != nil {
		log.Fatalf("ixy-pktgen: init %s: %v", cli.PCIAddr, err)
	}

	pool, err := mempool.Allocate(2*batchSize, 2048)
	if err != nil {
		log.Fatalf("ixy-pktgen: allocate packet pool: %v", err)
	}

	var stats ixy.Stats

	lastPrint := time.Now()

	for {
		pkts := make([]mempool.Packet, 0, batchSize)

		for i := 0; i < batchSize; i++ {
			buf, err := pool.AllocBuf()
			if err != nil {
				break
			}

			copy(pool.VirtOf(buf), testPacket)
			pkts = append(pkts, mempool.NewPacket(pool, buf, uint16(len(testPacket))))
		}

		sent := dev.TxBatch(cli.Queue, pkts)

		// Packets tx_batch didn't accept stay with us; return their
		// buffers instead of leaking them.
		for _, p := range pkts[sent:] {
			p.Free()
		}

		if time.Since(lastPrint) > time.Second {
			dev.ReadStats(&stats)
			log.Printf("tx: %d pkts, %d bytes", stats.TxPkts, stats.TxBytes)
			lastPrint = time.Now()
		}
	}
}
