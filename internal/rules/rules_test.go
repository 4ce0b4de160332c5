package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deskforge/deskcfg/internal/errors"
	"github.com/deskforge/deskcfg/internal/schema"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	s, err := schema.Default()
	require.NoError(t, err)
	return New(s)
}

func TestTransition(t *testing.T) {
	tests := []struct {
		superstructure string
		pegboards      string
		wantPegForce   string
		wantShelfForce string
		wantDisabled   []string
		wantRemap      bool
	}{
		{schema.None, "0", "0", "0", nil, false},
		{schema.None, "3", "0", "0", nil, false},
		{"low", "0", "", "", []string{"3", "4"}, false},
		{"low", "1", "", "", []string{"3", "4"}, false},
		{"low", "2", "", "0", nil, false},
		{"low", "3", "", "", []string{"3", "4"}, false},
		{"high", "0", "", "", nil, false},
		{"high", "1", "", "", nil, false},
		{"high", "2", "", "", []string{"3", "4"}, true},
		{"high", "3", "", "0", nil, false},
		{"unknown", "1", "", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.superstructure+"/"+tt.pegboards, func(t *testing.T) {
			out := transition(tt.superstructure, tt.pegboards)
			if out.pegboardForce != tt.wantPegForce {
				t.Errorf("pegboardForce = %q, want %q", out.pegboardForce, tt.wantPegForce)
			}
			if out.shelfForce != tt.wantShelfForce {
				t.Errorf("shelfForce = %q, want %q", out.shelfForce, tt.wantShelfForce)
			}
			require.Equal(t, tt.wantDisabled, out.shelfDisabled)
			if (out.remap != nil) != tt.wantRemap {
				t.Errorf("remap = %v, want present=%v", out.remap, tt.wantRemap)
			}
		})
	}
}

func TestNormalize_DefaultsUnlocked(t *testing.T) {
	r := newResolver(t)
	n := r.Normalize(nil)

	require.True(t, n.Values.Equal(r.Schema().Defaults()))
	require.False(t, n.State(schema.FieldColor).Locked)
	// superstructure none locks shelves, pegboards and rails
	require.True(t, n.State(schema.FieldShelfCount).Locked)
	require.True(t, n.State(schema.FieldPegboardCount).Locked)
	require.True(t, n.State(schema.FieldRailCount).Locked)
	// no side panel: its colour is locked
	require.True(t, n.State(schema.FieldSidePanelColor).Locked)
	require.Nil(t, n.SlotRemap)
}

func TestNormalize_ElectronicsFrame(t *testing.T) {
	r := newResolver(t)
	n := r.Normalize(schema.Values{
		schema.FieldFrame:          schema.FrameElectronics,
		schema.FieldColor:          "enzianblau",
		schema.FieldSidePanel:      schema.LeftRight,
		schema.FieldSidePanelColor: "lichtgrau",
		schema.FieldShelfBoard:     "buche",
	})

	require.Equal(t, schema.ColorAluminiumWhite, n.Values[schema.FieldColor])
	require.Equal(t, schema.None, n.Values[schema.FieldSidePanel])
	require.Equal(t, schema.MatchFrame, n.Values[schema.FieldSidePanelColor])
	require.Equal(t, schema.None, n.Values[schema.FieldShelfBoard])
	for _, f := range []string{schema.FieldColor, schema.FieldSidePanel, schema.FieldSidePanelColor, schema.FieldShelfBoard} {
		require.True(t, n.State(f).Locked, "%s should be locked", f)
	}
}

func TestNormalize_SidePanelColorUnlockedWithPanel(t *testing.T) {
	r := newResolver(t)
	n := r.Normalize(schema.Values{
		schema.FieldSidePanel:      schema.Left,
		schema.FieldSidePanelColor: "enzianblau",
	})

	require.False(t, n.State(schema.FieldSidePanelColor).Locked)
	require.Equal(t, "enzianblau", n.Values[schema.FieldSidePanelColor])
}

func TestNormalize_Superstructure(t *testing.T) {
	tests := []struct {
		name          string
		in            schema.Values
		wantShelves   string
		wantPegboards string
		shelfLocked   bool
		wantSlots     []string
	}{
		{
			name:          "none clears shelves and pegboards",
			in:            schema.Values{schema.FieldSuperstructure: schema.None, schema.FieldShelfCount: "3", schema.FieldPegboardCount: "2"},
			wantShelves:   "0",
			wantPegboards: "0",
			shelfLocked:   true,
		},
		{
			name:          "low with two pegboards locks shelves",
			in:            schema.Values{schema.FieldSuperstructure: "low", schema.FieldShelfCount: "2", schema.FieldPegboardCount: "2"},
			wantShelves:   "0",
			wantPegboards: "2",
			shelfLocked:   true,
		},
		{
			name:          "low remaps four shelves to two",
			in:            schema.Values{schema.FieldSuperstructure: "low", schema.FieldShelfCount: "4", schema.FieldPegboardCount: "1"},
			wantShelves:   "2",
			wantPegboards: "1",
		},
		{
			name:          "low keeps one shelf",
			in:            schema.Values{schema.FieldSuperstructure: "low", schema.FieldShelfCount: "1"},
			wantShelves:   "1",
			wantPegboards: "0",
		},
		{
			name:          "high with three pegboards locks shelves",
			in:            schema.Values{schema.FieldSuperstructure: "high", schema.FieldShelfCount: "4", schema.FieldPegboardCount: "3"},
			wantShelves:   "0",
			wantPegboards: "3",
			shelfLocked:   true,
		},
		{
			name:          "high with two pegboards remaps slots",
			in:            schema.Values{schema.FieldSuperstructure: "high", schema.FieldShelfCount: "3", schema.FieldPegboardCount: "2"},
			wantShelves:   "2",
			wantPegboards: "2",
			wantSlots:     []string{"boden3", "boden4"},
		},
		{
			name:          "high with one pegboard allows four shelves",
			in:            schema.Values{schema.FieldSuperstructure: "high", schema.FieldShelfCount: "4", schema.FieldPegboardCount: "1"},
			wantShelves:   "4",
			wantPegboards: "1",
		},
	}

	r := newResolver(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := r.Normalize(tt.in)
			require.Equal(t, tt.wantShelves, n.Values[schema.FieldShelfCount])
			require.Equal(t, tt.wantPegboards, n.Values[schema.FieldPegboardCount])
			require.Equal(t, tt.shelfLocked, n.State(schema.FieldShelfCount).Locked)
			require.Equal(t, tt.wantSlots, n.Slots())
		})
	}
}

func TestNormalize_HighTwoPegboardsRemapTable(t *testing.T) {
	r := newResolver(t)
	n := r.Normalize(schema.Values{
		schema.FieldSuperstructure: "high",
		schema.FieldPegboardCount:  "2",
		schema.FieldShelfCount:     "1",
	})

	require.Equal(t, SlotRemap{"0": {}, "1": {"boden3"}, "2": {"boden3", "boden4"}}, n.SlotRemap)
	require.Equal(t, []string{"boden3"}, n.Slots())
	require.Equal(t, []string{"3", "4"}, n.State(schema.FieldShelfCount).Disabled)

	// the attached table is a copy
	n.SlotRemap["1"][0] = "mutated"
	again := r.Normalize(schema.Values{
		schema.FieldSuperstructure: "high",
		schema.FieldPegboardCount:  "2",
		schema.FieldShelfCount:     "1",
	})
	require.Equal(t, []string{"boden3"}, again.Slots())
}

func TestNormalize_ContainerWidth(t *testing.T) {
	r := newResolver(t)

	narrow := r.Normalize(schema.Values{schema.FieldWidth: "750", schema.FieldContainerPosition: schema.LeftRight})
	require.Equal(t, schema.None, narrow.Values[schema.FieldContainerPosition])
	require.False(t, narrow.State(schema.FieldContainerPosition).Enabled(schema.LeftRight))

	narrowLeft := r.Normalize(schema.Values{schema.FieldWidth: "750", schema.FieldContainerPosition: schema.Left})
	require.Equal(t, schema.Left, narrowLeft.Values[schema.FieldContainerPosition])

	for _, w := range []string{"1500", "2000"} {
		wide := r.Normalize(schema.Values{schema.FieldWidth: w, schema.FieldContainerPosition: schema.LeftRight})
		require.Equal(t, schema.LeftRight, wide.Values[schema.FieldContainerPosition], "width %s", w)
		require.True(t, wide.State(schema.FieldContainerPosition).Enabled(schema.LeftRight))
	}
}

func TestNormalize_Rails(t *testing.T) {
	r := newResolver(t)

	low := r.Normalize(schema.Values{schema.FieldSuperstructure: "low", schema.FieldRailCount: "3"})
	require.Equal(t, "0", low.Values[schema.FieldRailCount])
	require.True(t, low.State(schema.FieldRailCount).Locked)

	high := r.Normalize(schema.Values{schema.FieldSuperstructure: "high", schema.FieldRailCount: "3"})
	require.Equal(t, "3", high.Values[schema.FieldRailCount])
	require.False(t, high.State(schema.FieldRailCount).Locked)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	r := newResolver(t)
	in := schema.Values{schema.FieldFrame: schema.FrameElectronics, schema.FieldColor: "enzianblau"}
	_ = r.Normalize(in)
	require.Equal(t, "enzianblau", in[schema.FieldColor])
}

// product enumerates every combination of the listed fields' options.
func product(s *schema.Schema, fields []string, base schema.Values, visit func(schema.Values)) {
	if len(fields) == 0 {
		visit(base.Clone())
		return
	}
	for _, opt := range s.OptionIDs(fields[0]) {
		base[fields[0]] = opt
		product(s, fields[1:], base, visit)
	}
}

func TestNormalize_InvariantsAndIdempotence(t *testing.T) {
	r := newResolver(t)
	fields := []string{
		schema.FieldFrame, schema.FieldWidth, schema.FieldSidePanel, schema.FieldSuperstructure,
		schema.FieldShelfCount, schema.FieldPegboardCount, schema.FieldContainerPosition,
		schema.FieldRailCount, schema.FieldShelfBoard,
	}

	count := 0
	product(r.Schema(), fields, schema.Values{schema.FieldColor: "enzianblau"}, func(v schema.Values) {
		count++
		n := r.Normalize(v)
		again := r.Normalize(n.Values)
		if !again.Values.Equal(n.Values) {
			t.Fatalf("not idempotent for %v: %v != %v", v, again.Values, n.Values)
		}

		if v[schema.FieldFrame] == schema.FrameElectronics {
			if n.Values[schema.FieldColor] != schema.ColorAluminiumWhite || n.Values[schema.FieldSidePanel] != schema.None {
				t.Fatalf("electronics frame invariant broken for %v: %v", v, n.Values)
			}
		}
		if v[schema.FieldSuperstructure] == schema.None {
			if n.Values[schema.FieldShelfCount] != "0" || n.Values[schema.FieldPegboardCount] != "0" {
				t.Fatalf("superstructure none invariant broken for %v: %v", v, n.Values)
			}
		}
		if v[schema.FieldWidth] == "750" && n.Values[schema.FieldContainerPosition] == schema.LeftRight {
			t.Fatalf("750 width kept left-right containers for %v", v)
		}
		if n.Values[schema.FieldSuperstructure] != schema.SuperstructureHigh && n.Values[schema.FieldRailCount] != "0" {
			t.Fatalf("rails without high superstructure for %v", v)
		}
	})
	require.Equal(t, 2*3*4*3*5*4*4*4*3, count)
}

func TestEdit(t *testing.T) {
	r := newResolver(t)
	current := schema.Values{
		schema.FieldSuperstructure: "high",
		schema.FieldShelfCount:     "4",
		schema.FieldRailCount:      "2",
	}

	t.Run("harmless edit needs no confirmation", func(t *testing.T) {
		res, err := r.Edit(current, schema.FieldColor, "enzianblau")
		require.NoError(t, err)
		require.False(t, res.NeedsConfirm)
		require.Empty(t, res.Changes)
		require.Equal(t, "enzianblau", res.After.Values[schema.FieldColor])
	})

	t.Run("removing the superstructure reports dependent changes", func(t *testing.T) {
		res, err := r.Edit(current, schema.FieldSuperstructure, schema.None)
		require.NoError(t, err)
		require.True(t, res.NeedsConfirm)
		require.Equal(t, []schema.Change{
			{Field: schema.FieldRailCount, From: "2", To: "0"},
			{Field: schema.FieldShelfCount, From: "4", To: "0"},
		}, res.Changes)
		// before is the untouched prior snapshot
		require.Equal(t, "4", res.Before.Values[schema.FieldShelfCount])
	})

	t.Run("remap depends on the previous shelf count", func(t *testing.T) {
		res, err := r.Edit(current, schema.FieldPegboardCount, "2")
		require.NoError(t, err)
		require.Equal(t, "2", res.After.Values[schema.FieldShelfCount])
		require.Equal(t, []string{"boden3", "boden4"}, res.After.Slots())
	})

	t.Run("locked field is overridden", func(t *testing.T) {
		res, err := r.Edit(schema.Values{schema.FieldFrame: schema.FrameElectronics}, schema.FieldColor, "enzianblau")
		require.NoError(t, err)
		require.True(t, res.Overridden)
		require.True(t, res.NeedsConfirm)
		require.Equal(t, schema.ColorAluminiumWhite, res.After.Values[schema.FieldColor])
		require.Equal(t, []schema.Change{
			{Field: schema.FieldColor, From: "enzianblau", To: schema.ColorAluminiumWhite},
		}, res.Changes)
	})

	t.Run("overridden edit without other changes needs confirmation", func(t *testing.T) {
		low := schema.Values{schema.FieldSuperstructure: schema.SuperstructureLow}
		res, err := r.Edit(low, schema.FieldShelfCount, "4")
		require.NoError(t, err)
		require.True(t, res.Overridden)
		require.True(t, res.NeedsConfirm)
		require.Equal(t, []schema.Change{
			{Field: schema.FieldShelfCount, From: "4", To: "2"},
		}, res.Changes)
	})

	t.Run("legacy alias accepted", func(t *testing.T) {
		res, err := r.Edit(nil, schema.FieldSidePanel, "links")
		require.NoError(t, err)
		require.Equal(t, schema.Left, res.Value)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := r.Edit(nil, "legs", "4")
		require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	})

	t.Run("unknown value", func(t *testing.T) {
		_, err := r.Edit(nil, schema.FieldWidth, "900")
		require.True(t, errors.Is(err, errors.ErrInvalidValue))
	})
}

func TestSnapToEnabled(t *testing.T) {
	options := []string{"0", "1", "2", "3", "4"}
	noBig := FieldState{Disabled: []string{"3", "4"}}

	tests := []struct {
		name      string
		state     FieldState
		requested int
		last      int
		want      int
	}{
		{"enabled target", noBig, 1, 0, 1},
		{"clamped high", FieldState{}, 9, 0, 4},
		{"clamped low", FieldState{}, -3, 2, 0},
		{"moving up into disabled falls back down", noBig, 4, 2, 2},
		{"moving down onto disabled searches down first", FieldState{Disabled: []string{"2"}}, 2, 4, 1},
		{"moving up onto disabled searches up first", FieldState{Disabled: []string{"2"}}, 2, 0, 3},
		{"all disabled", FieldState{Disabled: options}, 3, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SnapToEnabled(options, tt.state, tt.requested, tt.last); got != tt.want {
				t.Errorf("SnapToEnabled() = %d, want %d", got, tt.want)
			}
		})
	}

	if got := SnapToEnabled(nil, FieldState{}, 2, 0); got != 0 {
		t.Errorf("empty options = %d, want 0", got)
	}
}
