package layout

import (
	"testing"

	"github.com/linaro/hwpack/board"
)

func TestSfdiskDirectiveNoLoaderPartition(t *testing.T) {
	profile, err := board.Lookup("beagle")
	if err != nil {
		t.Fatal(err)
	}
	plan := New(profile)

	got := plan.SfdiskDirective()
	want := "16384,112136,0x0C,*\n131072,,,-"
	if got != want {
		t.Errorf("SfdiskDirective =\n%q\nwant\n%q", got, want)
	}
}

func TestSfdiskDirectiveFAT16Board(t *testing.T) {
	profile, err := board.Lookup("vexpress")
	if err != nil {
		t.Fatal(err)
	}
	plan := New(profile)

	got := plan.SfdiskDirective()
	want := "16384,112136,0x0E,*\n131072,,,-"
	if got != want {
		t.Errorf("SfdiskDirective =\n%q\nwant\n%q", got, want)
	}
}

func TestLoaderFamilyGetsLoaderPartition(t *testing.T) {
	profile, err := board.Lookup("mx51evk")
	if err != nil {
		t.Fatal(err)
	}
	plan := New(profile)
	if !plan.HasLoaderPartition {
		t.Fatal("expected mx51evk to have a loader partition")
	}
	if plan.LoaderStartSectors != 2 || plan.LoaderSizeSectors != 16063 {
		t.Errorf("unexpected loader partition bounds: start=%d size=%d", plan.LoaderStartSectors, plan.LoaderSizeSectors)
	}
	if plan.BootStartSectors <= plan.LoaderStartSectors+plan.LoaderSizeSectors-1 {
		t.Errorf("boot partition must start after the loader partition")
	}
}

func TestPartitionInvariants(t *testing.T) {
	profile, err := board.Lookup("beagle")
	if err != nil {
		t.Fatal(err)
	}
	plan := New(profile)
	if plan.BootStartSectors%partAlignSectors != 0 {
		t.Errorf("boot partition start %d is not aligned", plan.BootStartSectors)
	}
	if plan.RootStartSectors%partAlignSectors != 0 {
		t.Errorf("root partition start %d is not aligned", plan.RootStartSectors)
	}
	if plan.BootStartSectors+plan.BootSizeSectors >= plan.RootStartSectors {
		t.Errorf("boot partition overlaps root partition")
	}
}

func TestMBRTableRejectsImageTooSmall(t *testing.T) {
	profile, err := board.Lookup("beagle")
	if err != nil {
		t.Fatal(err)
	}
	plan := New(profile)
	if _, err := plan.MBRTable(plan.RootStartSectors); err == nil {
		t.Fatal("expected error when image has no room for the root partition")
	}
}

func TestMBRTableAccepted(t *testing.T) {
	profile, err := board.Lookup("beagle")
	if err != nil {
		t.Fatal(err)
	}
	plan := New(profile)
	table, err := plan.MBRTable(plan.RootStartSectors + 1_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Partitions) != 2 {
		t.Fatalf("expected boot+root partitions, got %d", len(table.Partitions))
	}
}
