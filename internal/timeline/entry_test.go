package timeline_test

import (
	"reflect"
	"testing"

	"github.com/wenyongqd/anniversary/internal/timeline"
)

func TestMergeByIDCommutesForDifferentIDs(t *testing.T) {
	base := []timeline.PhotoEntry{
		{ID: "a", Status: timeline.StatusIdle},
		{ID: "b", Status: timeline.StatusIdle},
		{ID: "c", Status: timeline.StatusIdle},
	}
	ua := timeline.PhotoEntry{ID: "a", Status: timeline.StatusDone, GeneratedURL: "ga"}
	uc := timeline.PhotoEntry{ID: "c", Status: timeline.StatusError, ErrorDetail: "boom"}

	left := timeline.MergeByID(timeline.MergeByID(base, ua), uc)
	right := timeline.MergeByID(timeline.MergeByID(base, uc), ua)
	if !reflect.DeepEqual(left, right) {
		t.Fatalf("merges do not commute:\n%+v\n%+v", left, right)
	}
	if base[0].Status != timeline.StatusIdle {
		t.Fatal("MergeByID mutated its input")
	}
}

func TestMergeByIDLastWriteWins(t *testing.T) {
	base := []timeline.PhotoEntry{{ID: "a", Status: timeline.StatusPending, Message: "m"}}
	first := timeline.PhotoEntry{ID: "a", Status: timeline.StatusError, ErrorDetail: "first"}
	second := timeline.PhotoEntry{ID: "a", Status: timeline.StatusDone, GeneratedURL: "g"}

	got := timeline.MergeByID(timeline.MergeByID(base, first), second)
	if !reflect.DeepEqual(got, []timeline.PhotoEntry{second}) {
		t.Fatalf("expected only the later update, got %+v", got)
	}
}

func TestMergeByIDUnknownIDIsNoop(t *testing.T) {
	base := []timeline.PhotoEntry{{ID: "a"}}
	got := timeline.MergeByID(base, timeline.PhotoEntry{ID: "gone", Status: timeline.StatusDone})
	if !reflect.DeepEqual(got, base) {
		t.Fatalf("expected unchanged list, got %+v", got)
	}
}

func TestDisplayOrderIsStable(t *testing.T) {
	list := []timeline.PhotoEntry{{ID: "1", Date: "b"}, {ID: "2", Date: "a"}, {ID: "3", Date: "b"}, {ID: "4", Date: "A"}}
	got := ids(timeline.DisplayOrder(list))
	want := []string{"4", "2", "1", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DisplayOrder = %v, want %v", got, want)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   timeline.PhotoEntry
		want timeline.PhotoEntry
	}{
		{
			name: "uploading becomes error",
			in:   timeline.PhotoEntry{ID: "a", Status: timeline.StatusUploading, LocalPreview: "p"},
			want: timeline.PhotoEntry{ID: "a", Status: timeline.StatusError, ErrorDetail: timeline.UploadInterruptedMessage},
		},
		{
			name: "done without result becomes idle",
			in:   timeline.PhotoEntry{ID: "a", ImageURL: "u", Status: timeline.StatusDone, ErrorDetail: "x"},
			want: timeline.PhotoEntry{ID: "a", ImageURL: "u", Status: timeline.StatusIdle},
		},
		{
			name: "missing status with result becomes done",
			in:   timeline.PhotoEntry{ID: "a", ImageURL: "u", GeneratedURL: "g"},
			want: timeline.PhotoEntry{ID: "a", ImageURL: "u", GeneratedURL: "g", Status: timeline.StatusDone},
		},
		{
			name: "missing status becomes idle",
			in:   timeline.PhotoEntry{ID: "a", ImageURL: "u"},
			want: timeline.PhotoEntry{ID: "a", ImageURL: "u", Status: timeline.StatusIdle},
		},
		{
			name: "error keeps previous result",
			in:   timeline.PhotoEntry{ID: "a", ImageURL: "u", GeneratedURL: "g", Status: timeline.StatusError},
			want: timeline.PhotoEntry{ID: "a", ImageURL: "u", GeneratedURL: "g", Status: timeline.StatusError, ErrorDetail: timeline.GenerationFailedMessage},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := timeline.Normalize(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Normalize = %+v, want %+v", got, tc.want)
			}
			if err := got.Check(); err != nil {
				t.Fatalf("normalized entry fails invariants: %v", err)
			}
		})
	}
}
