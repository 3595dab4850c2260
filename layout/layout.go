// Package layout computes the MBR partition table for an assembled
// hardware pack's media image (C7): sector offsets, sizes and types
// for the loader, boot and root partitions, expressed both as an
// sfdisk directive string (for boards.py-compatible tooling) and as a
// github.com/diskfs/go-diskfs/partition/mbr.Table (for in-process
// image writing).
//
// Grounded on original_source/linaro_media_create/boards.py's
// PART_ALIGN_S/LOADER_PART_START_S/BOOT_PART_START_S/ROOT_PART_START_S
// constants and BoardConfig.get_sfdisk_cmd, and on the teacher's
// partition/partition.go, which already wraps a real partitioning
// backend (sfdisk, via shelling out) behind a small Go type; Plan does
// the same wrapping for go-diskfs instead.
package layout

import (
	"fmt"

	"github.com/diskfs/go-diskfs/partition/mbr"

	"github.com/linaro/hwpack/board"
	"github.com/linaro/hwpack/hwerr"
)

// Fixed geometry constants, spec.md §3 PartitionPlan: 255 heads × 63
// sectors/track, 4 MiB alignment. None of these are board-specific —
// boards.py defines them once at module scope, asserting their
// derived invariants hold at import time; init() below does the same.
const (
	sectorSize = 512

	// partAlignSectors is PART_ALIGN_S: the alignment boundary boot
	// and root partitions must start on.
	partAlignSectors = (4 * 1024 * 1024) / sectorSize // 8192

	// loaderPartStartSectors is LOADER_PART_START_S: just past the MBR
	// and partition table, needs no alignment.
	loaderPartStartSectors = 2

	// bootPartStartSectors is BOOT_PART_START_S.
	bootPartStartSectors = (8 * 1024 * 1024) / sectorSize // 16384

	// rootPartStartSectors is ROOT_PART_START_S.
	rootPartStartSectors = (64 * 1024 * 1024) / sectorSize // 131072

	// sectorsPerCylinder is the 255-head, 63-sector/track geometry
	// boards.py's LOADER_PART_SIZE_S/BOOT_PART_SIZE_S derive from.
	sectorsPerCylinder = 63 * 255 // 16065

	// loaderPartSizeSectors is LOADER_PART_SIZE_S = floor(
	// BOOT_PART_START_S / sectorsPerCylinder) * sectorsPerCylinder -
	// LOADER_PART_START_S.
	loaderPartSizeSectors = (bootPartStartSectors/sectorsPerCylinder)*sectorsPerCylinder - loaderPartStartSectors

	// bootPartSizeSectors is BOOT_PART_SIZE_S = floor(
	// ROOT_PART_START_S / sectorsPerCylinder) * sectorsPerCylinder -
	// BOOT_PART_START_S.
	bootPartSizeSectors = (rootPartStartSectors/sectorsPerCylinder)*sectorsPerCylinder - bootPartStartSectors
)

// init reproduces boards.py's module-level asserts (spec.md §8
// testable property 7): these are *invariant-violation* conditions, a
// bug rather than a runtime failure, so they are checked once here
// instead of on every New call.
func init() {
	if bootPartStartSectors%partAlignSectors != 0 {
		hwerr.InvariantViolation("layout: BOOT_PART_START_S is not PART_ALIGN_S-aligned")
	}
	if rootPartStartSectors%partAlignSectors != 0 {
		hwerr.InvariantViolation("layout: ROOT_PART_START_S is not PART_ALIGN_S-aligned")
	}
	if loaderPartStartSectors+loaderPartSizeSectors >= bootPartStartSectors {
		hwerr.InvariantViolation("layout: loader partition does not fit before the boot partition")
	}
	if bootPartStartSectors+bootPartSizeSectors >= rootPartStartSectors {
		hwerr.InvariantViolation("layout: boot partition does not fit before the root partition")
	}
}

// Plan is the fully-resolved partition layout for one hardware pack
// image: a loader partition (only present for families that need one,
// e.g. Mx51), a boot partition and a root partition, each expressed in
// 512-byte sectors. Every field is derived from the fixed geometry
// constants above plus the board profile's FAT size and loader
// requirement — never from a caller-supplied size.
type Plan struct {
	Family board.Family

	HasLoaderPartition bool
	LoaderStartSectors uint64
	LoaderSizeSectors  uint64

	BootStartSectors  uint64
	BootSizeSectors   uint64
	BootPartitionType byte // sfdisk/MBR type byte: 0x0C for FAT32, 0x0E for FAT16

	RootStartSectors uint64
}

// New computes a Plan for the given board profile. A loader partition
// is included only for profiles with MMCPartOffset > 0 (spec.md §4.6),
// and every sector offset/size is the fixed derived constant from
// spec.md §3 PartitionPlan — there is no caller-supplied size to get
// wrong.
func New(profile board.Profile) Plan {
	plan := Plan{
		Family:            profile.Family,
		BootPartitionType: 0x0C,
	}
	if profile.FATSize == 16 {
		plan.BootPartitionType = 0x0E
	}

	if profile.MMCPartOffset > 0 {
		plan.HasLoaderPartition = true
		plan.LoaderStartSectors = loaderPartStartSectors
		plan.LoaderSizeSectors = loaderPartSizeSectors
	}
	plan.BootStartSectors = bootPartStartSectors
	plan.BootSizeSectors = bootPartSizeSectors
	plan.RootStartSectors = rootPartStartSectors

	return plan
}

// SfdiskDirective renders the sfdisk scripted-input format boards.py's
// get_sfdisk_cmd produces: one line per partition, "<start>,<size>,
// <type>,<bootable>", the root partition always last with an open-
// ended size ("<start>,,,-" form) and no explicit type (plain Linux).
func (p Plan) SfdiskDirective() string {
	var lines []string
	if p.HasLoaderPartition {
		lines = append(lines, fmt.Sprintf("%d,%d,0xDA,-", p.LoaderStartSectors, p.LoaderSizeSectors))
	}
	lines = append(lines, fmt.Sprintf("%d,%d,0x%02X,*", p.BootStartSectors, p.BootSizeSectors, p.BootPartitionType))
	lines = append(lines, fmt.Sprintf("%d,,,-", p.RootStartSectors))
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// MBRTable projects p onto a go-diskfs MBR partition table sized for
// totalSectors, for callers that write the image in-process rather
// than shelling out to sfdisk.
func (p Plan) MBRTable(totalSectors uint64) (*mbr.Table, error) {
	if p.RootStartSectors >= totalSectors {
		return nil, fmt.Errorf("layout: image of %d sectors too small for root partition starting at %d", totalSectors, p.RootStartSectors)
	}

	var partitions []*mbr.Partition
	if p.HasLoaderPartition {
		partitions = append(partitions, &mbr.Partition{
			Type:     mbr.Type(0xDA),
			Start:    uint32(p.LoaderStartSectors),
			Size:     uint32(p.LoaderSizeSectors),
			Bootable: false,
		})
	}
	partitions = append(partitions, &mbr.Partition{
		Type:     mbr.Type(p.BootPartitionType),
		Start:    uint32(p.BootStartSectors),
		Size:     uint32(p.BootSizeSectors),
		Bootable: true,
	})
	partitions = append(partitions, &mbr.Partition{
		Type:  mbr.Linux,
		Start: uint32(p.RootStartSectors),
		Size:  uint32(totalSectors - p.RootStartSectors),
	})

	return &mbr.Table{
		Partitions:         partitions,
		LogicalSectorSize:  sectorSize,
		PhysicalSectorSize: sectorSize,
	}, nil
}
