// Package board holds the per-board-family boot configuration table
// (C6): the serial console, kernel command line and u-boot
// boot-command fragments each supported ARM board family needs, along
// with the handful of behaviours (OMAP's run-time serial TTY
// detection, Mx51's loader partition) that vary by family.
//
// Grounded on original_source/linaro_media_create/boards.py's
// BoardConfig hierarchy (OmapConfig, Ux500Config, Mx51evkConfig,
// VexpressConfig and friends) and on the teacher's
// partition/bootloader.go bootLoader/bootloaderType split, which
// already separates "what never changes" (a struct of string fields)
// from "what a board family computes" (methods) the same way Profile
// and Family do here.
package board

import (
	"fmt"
	"strings"

	"github.com/linaro/hwpack/hwerr"
)

// Family identifies a u-boot board family. Each Family has its own
// partition layout quirks (layout package) and boot-file staging
// strategy (bootfiles package).
type Family string

const (
	Omap     Family = "omap"
	Ux500    Family = "ux500"
	Mx51     Family = "mx51"
	Vexpress Family = "vexpress"
)

// Profile is the immutable description of one supported board,
// translated field-for-field from a boards.py BoardConfig subclass:
// the class attributes become struct fields, and the handful of
// classmethods that actually compute something (_get_boot_cmd,
// get_sfdisk_cmd) become functions over a Profile value elsewhere in
// this package and in the layout/bootfiles packages.
type Profile struct {
	Name   string
	Family Family

	// UbootFlavor names the u-boot binary package this board pulls in;
	// empty when the board has none (boards.py's uboot_flavor = None).
	UbootFlavor string

	// MMCOption is the "slot:partition" designator boards.py's
	// mmc_option names the boot files' MMC location with; default
	// "0:1".
	MMCOption string
	// MMCPartOffset is boards.py's mmc_part_offset: nonzero only for
	// boards (Mx51) that reserve a loader partition ahead of the boot
	// partition.
	MMCPartOffset int
	// FATSize is the boot partition's FAT bit width, 16 or 32.
	FATSize int

	KernelAddr string
	InitrdAddr string
	LoadAddr   string
	// KernelSuffix is the "-<suffix>" glob fragment bootfiles.Builder
	// uses to find this board's vmlinuz/initrd.img in a hwpack rootfs.
	KernelSuffix string
	// BootScript is the compiled boot-script's filename on the boot
	// partition; empty for Vexpress, which has no boot script at all.
	BootScript string

	SerialTTY string // resolved lazily for Omap; see ResolveSerialTTY

	// ExtraSerialOpts and LiveSerialOpts are boards.py's
	// extra_serial_opts/live_serial_opts: each a fmt.Sprintf template
	// with a single "%s" slot filled with SerialTTY at boot-command
	// synthesis time. LiveSerialOpts may be empty for boards that
	// never support live-mode boot args (e.g. Overo).
	ExtraSerialOpts string
	LiveSerialOpts  string
	// ExtraBootArgsOptions is boards.py's extra_boot_args_options,
	// appended verbatim after "rootwait ro" when non-empty.
	ExtraBootArgsOptions string

	// MLOInGlob is the glob pattern (relative to a hwpack's rootfs)
	// used to locate the first-stage bootloader blob for families
	// that stage one (most of Omap); empty for families that don't
	// (Igep, Ux500, Mx51, Vexpress).
	MLOInGlob string

	serialResolved bool
}

// Profiles is the static board table, the Go analogue of boards.py's
// module-level board_configs dict.
var Profiles = map[string]Profile{
	"beagle": {
		Name: "beagle", Family: Omap,
		UbootFlavor: "omap3_beagle",
		MMCOption:   "0:1", FATSize: 32,
		KernelAddr: "0x80000000", InitrdAddr: "0x81600000", LoadAddr: "0x80008000",
		KernelSuffix: "linaro-omap", BootScript: "boot.scr",
		SerialTTY:       "ttyO2",
		ExtraSerialOpts: "console=tty0 console=%s,115200n8",
		LiveSerialOpts:  "serialtty=%s",
		ExtraBootArgsOptions: "earlyprintk fixrtc nocompcache vram=12M " +
			"omapfb.mode=dvi:1280x720MR-16@60",
		MLOInGlob: "usr/lib/x-loader-omap/MLO",
	},
	"overo": {
		Name: "overo", Family: Omap,
		UbootFlavor: "omap3_overo",
		MMCOption:   "0:1", FATSize: 32,
		KernelAddr: "0x80000000", InitrdAddr: "0x81600000", LoadAddr: "0x80008000",
		KernelSuffix: "linaro-omap", BootScript: "boot.scr",
		SerialTTY:            "ttyO2",
		ExtraSerialOpts:      "console=tty0 console=%s,115200n8",
		ExtraBootArgsOptions: "earlyprintk",
		MLOInGlob:            "usr/lib/x-loader-omap3/MLO",
	},
	"panda": {
		Name: "panda", Family: Omap,
		UbootFlavor: "omap4_panda",
		MMCOption:   "0:1", FATSize: 32,
		KernelAddr: "0x80200000", InitrdAddr: "0x81600000", LoadAddr: "0x80008000",
		KernelSuffix: "linaro-omap", BootScript: "boot.scr",
		SerialTTY:       "ttyO2",
		ExtraSerialOpts: "console=tty0 console=%s,115200n8",
		LiveSerialOpts:  "serialtty=%s",
		ExtraBootArgsOptions: "earlyprintk fixrtc nocompcache vram=32M " +
			"omapfb.vram=0:8M mem=463M ip=none",
		MLOInGlob: "usr/lib/x-loader-omap4/MLO",
	},
	// igep is a Beagle with no first-stage bootloader staged: its
	// _make_boot_files override in boards.py skips
	// install_omap_boot_loader entirely, so MLOInGlob stays empty even
	// though the family is Omap.
	"igep": {
		Name: "igep", Family: Omap,
		MMCOption: "0:1", FATSize: 32,
		KernelAddr: "0x80000000", InitrdAddr: "0x81600000", LoadAddr: "0x80008000",
		KernelSuffix: "linaro-omap", BootScript: "boot.scr",
		SerialTTY:       "ttyO2",
		ExtraSerialOpts: "console=tty0 console=%s,115200n8",
		LiveSerialOpts:  "serialtty=%s",
		ExtraBootArgsOptions: "earlyprintk fixrtc nocompcache vram=12M " +
			"omapfb.mode=dvi:1280x720MR-16@60",
	},
	"snowball_sd": {
		Name: "snowball_sd", Family: Ux500,
		MMCOption: "1:1", FATSize: 32,
		KernelAddr: "0x00100000", InitrdAddr: "0x08000000", LoadAddr: "0x00008000",
		KernelSuffix: "ux500", BootScript: "flash.scr",
		SerialTTY:       "ttyAMA2",
		ExtraSerialOpts: "console=tty0 console=%s,115200n8",
		LiveSerialOpts:  "serialtty=%s",
		ExtraBootArgsOptions: "earlyprintk rootdelay=1 fixrtc nocompcache " +
			"mem=96M@0 mem_modem=32M@96M mem=44M@128M pmem=22M@172M " +
			"mem=30M@194M mem_mali=32M@224M pmem_hwb=54M@256M " +
			"hwmem=48M@302M mem=152M@360M",
		serialResolved: true,
	},
	"mx51evk": {
		Name: "mx51evk", Family: Mx51,
		MMCOption: "0:2", MMCPartOffset: 1, FATSize: 32,
		KernelAddr: "0x90000000", InitrdAddr: "0x90800000", LoadAddr: "0x90008000",
		KernelSuffix: "linaro-mx51", BootScript: "boot.scr",
		SerialTTY:       "ttymxc0",
		ExtraSerialOpts: "console=tty0 console=%s,115200n8",
		LiveSerialOpts:  "serialtty=%s",
		serialResolved:  true,
	},
	"vexpress": {
		Name: "vexpress", Family: Vexpress,
		UbootFlavor: "ca9x4_ct_vxp",
		MMCOption:   "0:1", FATSize: 16,
		KernelAddr: "0x60008000", InitrdAddr: "0x81000000", LoadAddr: "0x60008000",
		KernelSuffix: "linaro-vexpress",
		SerialTTY:    "ttyAMA0",
		// boards.py's VexpressConfig uses a 38400 baud rate, unlike
		// every other board's 115200.
		ExtraSerialOpts: "console=tty0 console=%s,38400n8",
		LiveSerialOpts:  "serialtty=%s",
		serialResolved:  true,
	},
}

// Lookup returns the named board profile, or an *hwerr.NotFound error
// if name is not in Profiles.
func Lookup(name string) (Profile, error) {
	p, ok := Profiles[name]
	if !ok {
		return Profile{}, &hwerr.NotFound{Name: name}
	}
	return p, nil
}

// ResolveSerialTTY returns a copy of p with SerialTTY bound, for
// Omap-family profiles: ttyS2 when rootfsHasAM33xxKernel is true,
// ttyO2 otherwise. It does not inspect a root filesystem or its kernel
// itself; the caller supplies that answer as the flag. Non-Omap
// profiles already carry a resolved SerialTTY and return themselves
// unchanged.
//
// Reading p.SerialTTY before it is resolved is a programming error:
// boards.py enforced the same ordering implicitly by only ever calling
// _get_boot_cmd after set_appropriate_serial_tty ran.
func (p Profile) ResolveSerialTTY(rootfsHasAM33xxKernel bool) Profile {
	if p.serialResolved {
		return p
	}
	if rootfsHasAM33xxKernel {
		p.SerialTTY = "ttyS2"
	} else {
		p.SerialTTY = "ttyO2"
	}
	p.serialResolved = true
	return p
}

// SerialTTYOrPanic returns p.SerialTTY, panicking with
// hwerr.ProgrammingError if ResolveSerialTTY has not yet been called on
// an Omap-family profile.
func (p Profile) SerialTTYOrPanic() string {
	if !p.serialResolved {
		hwerr.ProgrammingError("board: SerialTTY read before ResolveSerialTTY on profile %q", p.Name)
	}
	return p.SerialTTY
}

// BootArgs renders the kernel command line for p (spec.md §4.5),
// grounded on boards.py's BoardConfig._get_boot_cmd: a console=<c>
// token per entry in consoles, a conditional serialtty=<tty> when
// isLive, the profile's serial-option templates substituted with the
// resolved tty, the live/lowmem-only "only-ubiquity" token, either
// root=UUID=<uuid> or boot=casper depending on isLive, and finally
// "rootwait ro" plus the profile's extra boot-args options.
func (p Profile) BootArgs(isLive, isLowmem bool, consoles []string, rootfsUUID string) (string, error) {
	tty := p.SerialTTYOrPanic()

	var tokens []string
	for _, console := range consoles {
		tokens = append(tokens, "console="+console)
	}
	if isLive {
		tokens = append(tokens, "serialtty="+tty)
	}
	if p.ExtraSerialOpts != "" {
		tokens = append(tokens, fmt.Sprintf(p.ExtraSerialOpts, tty))
	}

	lowmemOpt := ""
	bootSnippet := fmt.Sprintf("root=UUID=%s", rootfsUUID)
	if isLive {
		if p.LiveSerialOpts != "" {
			tokens = append(tokens, fmt.Sprintf(p.LiveSerialOpts, tty))
		}
		bootSnippet = "boot=casper"
		if isLowmem {
			lowmemOpt = "only-ubiquity"
		}
	}
	if lowmemOpt != "" {
		tokens = append(tokens, lowmemOpt)
	}
	tokens = append(tokens, bootSnippet)

	bootArgsOptions := "rootwait ro"
	if p.ExtraBootArgsOptions != "" {
		bootArgsOptions += " " + p.ExtraBootArgsOptions
	}
	tokens = append(tokens, bootArgsOptions)

	return strings.Join(tokens, " "), nil
}

// BootCommand renders the u-boot boot-command textual form (spec.md §6
// "Boot-command textual form"): exactly three lines, a bootcmd that
// loads the kernel and initrd from the board's MMC slot and boots
// them, a bootargs line carrying BootArgs' output, and a trailing
// "boot". Vexpress profiles have no boot script (boards.py's
// VexpressConfig overrides _make_boot_files to skip it entirely) and
// BootCommand returns an error for them.
func (p Profile) BootCommand(isLive, isLowmem bool, consoles []string, rootfsUUID string) (string, error) {
	if p.Family == Vexpress {
		return "", fmt.Errorf("board: %s uses FAT16 boot, not a u-boot boot script", p.Name)
	}

	bootargs, err := p.BootArgs(isLive, isLowmem, consoles, rootfsUUID)
	if err != nil {
		return "", err
	}

	bootcmd := fmt.Sprintf(
		"fatload mmc %s %s uImage; fatload mmc %s %s uInitrd; bootm %s %s",
		p.MMCOption, p.KernelAddr, p.MMCOption, p.InitrdAddr, p.KernelAddr, p.InitrdAddr,
	)

	return fmt.Sprintf("setenv bootcmd '%s'\nsetenv bootargs '%s'\nboot", bootcmd, bootargs), nil
}
