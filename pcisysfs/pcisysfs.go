// Package pcisysfs implements the PCI map collaborator the driver core
// treats as external (spec §6): given a BDF address string, it enables
// bus-mastering and mmaps BAR0 into the process. A device still bound to a
// kernel network driver is not unbound; Map reports ErrBoundToKernelDriver.
//
// The BDF parsing follows the same bit-field-accessor shape the teacher
// uses for PCI config-space addresses (pci/pci.go's address type), adapted
// from a 32-bit config-address register to a "BBBB:BB:DD.F" sysfs path.
package pcisysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrNotFound indicates no PCI device exists at the given address.
var ErrNotFound = errors.New("pcisysfs: device not found")

// ErrBoundToKernelDriver indicates the device is still claimed by a kernel
// driver and must be unbound (or bound to vfio-pci/uio) before mapping.
var ErrBoundToKernelDriver = errors.New("pcisysfs: device is bound to a kernel driver")

// bdf is a parsed "BBBB:BB:DD.F" PCI address, split into fields the same
// way the teacher's config-space `address` type splits a 32-bit register.
type bdf struct {
	domain, bus, device, function uint32
}

func parseBDF(addr string) (bdf, error) {
	var b bdf

	parts := strings.FieldsFunc(addr, func(r rune) bool {
		return r == ':' || r == '.'
	})
	if len(parts) != 4 {
		return b, fmt.Errorf("pcisysfs: malformed address %q", addr)
	}

	fields := make([]uint32, 4)

	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 32)
		if err != nil {
			return b, fmt.Errorf("pcisysfs: malformed address %q: %w", addr, err)
		}

		fields[i] = uint32(v)
	}

	b.domain, b.bus, b.device, b.function = fields[0], fields[1], fields[2], fields[3]

	return b, nil
}

func (b bdf) sysfsDir() string {
	return fmt.Sprintf("/sys/bus/pci/devices/%04x:%02x:%02x.%x", b.domain, b.bus, b.device, b.function)
}

// Map opens BAR0 of the device named by addr ("BBBB:BB:DD.F"), enables
// bus-mastering, and mmaps the BAR read/write into the process. It returns
// the mapped window and its length.
func Map(addr string) ([]byte, error) {
	b, err := parseBDF(addr)
	if err != nil {
		return nil, err
	}

	dir := b.sysfsDir()

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}

	if err := checkNoKernelDriver(dir); err != nil {
		return nil, err
	}

	if err := enableDevice(dir); err != nil {
		return nil, fmt.Errorf("pcisysfs: enable bus mastering: %w", err)
	}

	resourcePath := filepath.Join(dir, "resource0")

	f, err := os.OpenFile(resourcePath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("pcisysfs: open %s: %w", resourcePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("pcisysfs: stat %s: %w", resourcePath, err)
	}

	size := int(info.Size())
	if size == 0 {
		return nil, fmt.Errorf("pcisysfs: %s reports zero size", resourcePath)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("pcisysfs: mmap %s: %w", resourcePath, err)
	}

	return mem, nil
}

func checkNoKernelDriver(dir string) error {
	driverLink := filepath.Join(dir, "driver")

	target, err := os.Readlink(driverLink)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pcisysfs: readlink %s: %w", driverLink, err)
	}

	base := filepath.Base(target)
	if base == "vfio-pci" || base == "uio_pci_generic" || base == "igb_uio" {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrBoundToKernelDriver, base)
}

// enableDevice writes "1" to the device's sysfs "enable" file, the
// userspace equivalent of pci_enable_device -- it turns on bus mastering
// and memory decoding so BAR0 reads/writes actually reach the device.
func enableDevice(dir string) error {
	return os.WriteFile(filepath.Join(dir, "enable"), []byte("1"), 0o200)
}
