package ixgbe

// Register offsets and bit masks, lifted from the 82599 datasheet via the
// original driver's constant table (original_source/src/driver/ixgbe.rs).
// spec.md names behavior, not bit patterns, so these are reproduced rather
// than re-derived.
const (
	regEIMC      = 0x00888
	regCTRL      = 0x00000
	regCTRLExt   = 0x00018
	regEEC       = 0x10010
	regRDRXCTL   = 0x02F00
	regAUTOC     = 0x042A0
	regRTTDCS    = 0x04900
	regDTXMXSZRQ = 0x08100
	regDMATXCTL  = 0x04A80
	regFCTRL     = 0x05080
	regHLREG0    = 0x04240
	regRXCTRL    = 0x03000
	regLINKS     = 0x042A4
	regGPRC      = 0x04074
	regGPTC      = 0x04080
	regGORCL     = 0x04088
	regGORCH     = 0x0408C
	regGOTCL     = 0x04090
	regGOTCH     = 0x04094

	ctrlRSTMask = 1 << 26

	eecARD = 1 << 9

	rdrxctlDMAIDONE = 1 << 3
	rdrxctlCRCSTRIP = 1 << 1

	autocLMSMask      = 0x7 << 13
	autocLMS10GSerial = 0x3 << 13
	autocPMAPMDMask   = 0x3 << 7
	autoc10GXAUI      = 0x0 << 7
	autocANRestart    = 1 << 12

	rttdcsARBDIS = 1 << 6

	dmatxctlTE = 1 << 0

	fctrlBAM = 1 << 10
	fctrlMPE = 1 << 8
	fctrlUPE = 1 << 9

	hlreg0RXCRCSTRP = 1 << 1
	hlreg0TXCRCEN   = 1 << 0
	hlreg0TXPADEN   = 1 << 10

	rxctrlRXEN = 1 << 0

	ctrlExtNSDis = 1 << 16

	linksUp             = 1 << 30
	linksSpeedMask82599 = 0x3 << 28
	linksSpeed100_82599 = 0x1 << 28
	linksSpeed1G_82599  = 0x2 << 28
	linksSpeed10G_82599 = 0x3 << 28
)

// Per-queue register blocks. Each takes a queue index i and returns the
// byte offset of that queue's instance of the register.
func regRDBAL(i uint32) uint32 { return 0x01000 + i*0x40 }
func regRDBAH(i uint32) uint32 { return 0x01004 + i*0x40 }
func regRDLEN(i uint32) uint32 { return 0x01008 + i*0x40 }
func regRDH(i uint32) uint32   { return 0x01010 + i*0x40 }
func regRDT(i uint32) uint32   { return 0x01018 + i*0x40 }
func regRXDCTL(i uint32) uint32 { return 0x01028 + i*0x40 }
func regSRRCTL(i uint32) uint32 {
	if i <= 15 {
		return 0x02100 + i*0x4
	}

	return 0x01014 + i*0x40
}
func regDCARXCTRL(i uint32) uint32 {
	if i <= 15 {
		return 0x02200 + i*0x4
	}

	return 0x0100C + i*0x40
}
func regRXPBSIZE(i uint32) uint32 { return 0x03C00 + i*0x4 }

func regTDBAL(i uint32) uint32    { return 0x06000 + i*0x40 }
func regTDBAH(i uint32) uint32    { return 0x06004 + i*0x40 }
func regTDLEN(i uint32) uint32    { return 0x06008 + i*0x40 }
func regTDH(i uint32) uint32      { return 0x06010 + i*0x40 }
func regTDT(i uint32) uint32      { return 0x06018 + i*0x40 }
func regTXDCTL(i uint32) uint32   { return 0x06028 + i*0x40 }
func regTXPBSIZE(i uint32) uint32 { return 0x0CC00 + i*0x4 }

const (
	srrctlDescTypeMask      = 0x7 << 25
	srrctlDescTypeAdvOneBuf = 0x1 << 25
	srrctlDropEn            = 1 << 28

	rxdctlEnable = 1 << 25
	txdctlEnable = 1 << 25

	rxpbsize128KB = 128 << 10
	txpbsize40KB  = 40 << 10

	// RX/TX descriptor writeback status bits.
	rxdStatDD  = 1 << 0
	rxdStatEOP = 1 << 1

	txdStatDD = 1 << 0

	// Advanced TX descriptor cmd_type_len flags.
	txdCmdEOP  = 1 << 24
	txdCmdRS   = 1 << 27
	txdCmdIFCS = 1 << 25
	txdCmdDEXT = 1 << 29
	txdTypData = 0x3 << 20

	txdPaylenShift = 14
)
