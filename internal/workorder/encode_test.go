package workorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	w := &WorkOrder{
		ID:        "wo-42",
		EventCode: "vr20251001",
		SubEvent:  "retreat",
		Stage:     "eligible",
		Subjects:  map[string]string{"EN": "Join us"},
		Languages: map[string]bool{"EN": true, "FR": false},
		Account:   "foundations",
		Testers:   []string{"s1", "s2"},
		Config:    map[string]any{"pool": "everyone"},
		Steps: []Step{
			{Name: StepCount, Status: StatusComplete},
			{Name: StepPrepare, Status: StatusReady, IsActive: true},
		},
		Locked:    true,
		LockedBy:  "agent-1",
		CreatedAt: now,
		UpdatedAt: now,
	}

	av, err := MarshalAttributeValue(w)
	require.NoError(t, err)

	got, err := UnmarshalAttributeValue(av)
	require.NoError(t, err)

	require.Equal(t, w.ID, got.ID)
	require.Equal(t, w.EventCode, got.EventCode)
	require.Equal(t, w.Subjects, got.Subjects)
	require.Equal(t, w.Languages, got.Languages)
	require.Equal(t, w.Testers, got.Testers)
	require.Equal(t, w.Locked, got.Locked)
	require.Equal(t, w.LockedBy, got.LockedBy)
	require.Len(t, got.Steps, 2)
	require.Equal(t, StatusComplete, got.Steps[0].Status)
	require.True(t, got.Steps[1].IsActive)
}

func TestDecodeTaggedScalar(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"bare string", "working", "working"},
		{"tagged string", map[string]any{"S": "working"}, "working"},
		{"tagged bool", map[string]any{"BOOL": true}, true},
		{"tagged null", map[string]any{"NULL": true}, nil},
		{"tagged number", map[string]any{"N": "12"}, float64(12)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeTaggedScalar(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("DecodeTaggedScalar(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
