package lock

import (
	"testing"

	"github.com/ignite/email-campaign-agent/internal/workorder"
)

func TestShouldRelease(t *testing.T) {
	cases := []struct {
		name   string
		wo     *workorder.WorkOrder
		except []string
		want   bool
	}{
		{
			name: "unlocked is left alone",
			wo:   &workorder.WorkOrder{ID: "a", Locked: false},
			want: false,
		},
		{
			name: "locked with no exceptions is released",
			wo:   &workorder.WorkOrder{ID: "b", Locked: true, LockedBy: "agent-1"},
			want: true,
		},
		{
			name:   "locked but sleeping is excepted",
			wo:     &workorder.WorkOrder{ID: "c", Locked: true, LockedBy: "agent-1", State: workorder.StateSleeping},
			except: []string{workorder.StateSleeping},
			want:   false,
		},
		{
			name:   "locked in a non-excepted state is released",
			wo:     &workorder.WorkOrder{ID: "d", Locked: true, LockedBy: "agent-1", State: "Active"},
			except: []string{workorder.StateSleeping},
			want:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			except := make(map[string]bool, len(tc.except))
			for _, s := range tc.except {
				except[s] = true
			}
			if got := shouldRelease(tc.wo, except); got != tc.want {
				t.Fatalf("shouldRelease() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestErrLockDeniedIsDistinct(t *testing.T) {
	if ErrLockDenied == nil {
		t.Fatal("ErrLockDenied must not be nil")
	}
	if ErrLockDenied.Error() == "" {
		t.Fatal("ErrLockDenied must carry a message")
	}
}
