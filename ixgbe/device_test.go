package ixgbe

import "testing"

func TestInitRejectsTooManyQueues(t *testing.T) {
	if _, err := Init("0000:00:00.0", MaxQueues+1, 1); err == nil {
		t.Fatalf("Init with too many rx queues: want error, got nil")
	}

	if _, err := Init("0000:00:00.0", 1, MaxQueues+1); err == nil {
		t.Fatalf("Init with too many tx queues: want error, got nil")
	}
}

func TestGetLinkSpeedDecoding(t *testing.T) {
	d := &Device{reg: newTestWindow(t)}

	if got := d.GetLinkSpeed(); got != 0 {
		t.Fatalf("GetLinkSpeed with link down = %d, want 0", got)
	}

	d.reg.Write32(regLINKS, linksUp|linksSpeed10G_82599)
	if got := d.GetLinkSpeed(); got != 10000 {
		t.Fatalf("GetLinkSpeed = %d, want 10000", got)
	}

	d.reg.Write32(regLINKS, linksUp|linksSpeed1G_82599)
	if got := d.GetLinkSpeed(); got != 1000 {
		t.Fatalf("GetLinkSpeed = %d, want 1000", got)
	}
}

func TestSetPromiscTogglesAndClears(t *testing.T) {
	d := &Device{reg: newTestWindow(t)}

	d.SetPromisc(true)
	if got := d.reg.Read32(regFCTRL) & (fctrlMPE | fctrlUPE); got != (fctrlMPE | fctrlUPE) {
		t.Fatalf("FCTRL after SetPromisc(true) = %#x, want MPE|UPE set", got)
	}

	d.SetPromisc(false)
	if got := d.reg.Read32(regFCTRL) & (fctrlMPE | fctrlUPE); got != 0 {
		t.Fatalf("FCTRL after SetPromisc(false) = %#x, want MPE|UPE clear", got)
	}
}
