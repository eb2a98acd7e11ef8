package bench

import (
	"errors"
	"testing"

	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/store/memory"
)

func TestPartition_Lossy(t *testing.T) {
	for total := 0; total <= 60; total++ {
		for workers := 1; workers <= 12; workers++ {
			chunks, err := Partition(total, workers, PartitionLossy)
			if err != nil {
				t.Fatalf("Partition(%d, %d) error = %v", total, workers, err)
			}
			if len(chunks) != workers {
				t.Fatalf("Partition(%d, %d) returned %d chunks, want %d", total, workers, len(chunks), workers)
			}

			sum := 0
			for _, c := range chunks {
				if c != total/workers {
					t.Errorf("Partition(%d, %d) chunk = %d, want %d", total, workers, c, total/workers)
				}
				sum += c
			}
			if total-sum != total%workers {
				t.Errorf("Partition(%d, %d) dropped %d, want %d", total, workers, total-sum, total%workers)
			}
		}
	}
}

func TestPartition_Strict(t *testing.T) {
	for total := 0; total <= 60; total++ {
		for workers := 1; workers <= 12; workers++ {
			chunks, err := Partition(total, workers, PartitionStrict)
			if err != nil {
				t.Fatalf("Partition(%d, %d) error = %v", total, workers, err)
			}

			sum, lo, hi := 0, chunks[0], chunks[0]
			for _, c := range chunks {
				sum += c
				lo = min(lo, c)
				hi = max(hi, c)
			}
			if sum != total {
				t.Errorf("Partition(%d, %d) sum = %d, want %d", total, workers, sum, total)
			}
			if hi-lo > 1 {
				t.Errorf("Partition(%d, %d) chunks differ by %d", total, workers, hi-lo)
			}
		}
	}

	chunks, _ := Partition(7, 3, PartitionStrict)
	want := []int{3, 2, 2}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("Partition(7, 3) = %v, want %v", chunks, want)
			break
		}
	}
}

func TestPartition_Invalid(t *testing.T) {
	tests := []struct {
		total, workers int
	}{
		{10, 0},
		{10, -1},
		{-1, 2},
	}

	for _, tt := range tests {
		_, err := Partition(tt.total, tt.workers, PartitionLossy)
		if !errors.Is(err, ErrPartition) {
			t.Errorf("Partition(%d, %d) error = %v, want ErrPartition", tt.total, tt.workers, err)
		}
		var pe *PartitionError
		if !errors.As(err, &pe) || pe.Workers != tt.workers {
			t.Errorf("Partition(%d, %d) error %v is not a matching *PartitionError", tt.total, tt.workers, err)
		}
	}
}

func TestParsePartitionMode(t *testing.T) {
	tests := []struct {
		in      string
		want    PartitionMode
		wantErr bool
	}{
		{"", PartitionLossy, false},
		{"lossy", PartitionLossy, false},
		{"strict", PartitionStrict, false},
		{"fair", PartitionLossy, true},
	}
	for _, tt := range tests {
		got, err := ParsePartitionMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePartitionMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePartitionMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAssign(t *testing.T) {
	db := memory.NewDatabase()
	stores := []store.Store{memory.Open(db), memory.Open(db)}

	assignments := Assign([]int{3, 3, 2, 2, 2}, stores)
	if len(assignments) != 5 {
		t.Fatalf("Assign() returned %d assignments, want 5", len(assignments))
	}

	wantOffsets := []int64{0, 3, 6, 8, 10}
	for i, a := range assignments {
		if a.WorkerID != i {
			t.Errorf("assignment %d WorkerID = %d", i, a.WorkerID)
		}
		if a.Offset != wantOffsets[i] {
			t.Errorf("assignment %d Offset = %d, want %d", i, a.Offset, wantOffsets[i])
		}
		if a.Store != stores[i%2] {
			t.Errorf("assignment %d got the wrong store handle", i)
		}
	}

	if got := Assign([]int{1}, nil); got != nil {
		t.Errorf("Assign() with no stores = %v, want nil", got)
	}
}
