package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSelection_SetRemovesEmptyValues(t *testing.T) {
	sel := Selection{}
	sel.Set(1, FreeText("phone"))
	sel.Set(2, TextSet{"a"})
	sel.Set(3, Bool(true))

	sel.Set(1, FreeText("  "))
	sel.Set(2, TextSet{})
	sel.Set(3, Bool(false))
	sel.Set(4, nil)

	if len(sel) != 0 {
		t.Errorf("expected empty selection, got %v", sel)
	}
}

func TestSelection_RangeBounds(t *testing.T) {
	sel := Selection{}

	sel.SetMin(1, "100")
	sel.SetMax(1, "500")
	if got := sel.Range(1); got != (RangeBound{Min: "100", Max: "500"}) {
		t.Fatalf("Range() = %+v", got)
	}

	// Minimum above maximum drops the maximum.
	sel.SetMin(1, "600")
	if got := sel.Range(1); got != (RangeBound{Min: "600"}) {
		t.Errorf("after SetMin(600) Range() = %+v", got)
	}

	// Maximum below minimum drops the minimum.
	sel.SetMax(1, "50")
	if got := sel.Range(1); got != (RangeBound{Max: "50"}) {
		t.Errorf("after SetMax(50) Range() = %+v", got)
	}

	sel.SetMax(1, "")
	if _, ok := sel[1]; ok {
		t.Error("range with both bounds empty should be removed")
	}

	// A non-finite minimum is unset and leaves the maximum alone.
	sel.SetMax(1, "500")
	sel.SetMin(1, "NaN")
	got := sel.Range(1)
	if got != (RangeBound{Min: "NaN", Max: "500"}) {
		t.Errorf("after SetMin(NaN) Range() = %+v", got)
	}
	if got.Lo() != 0 {
		t.Errorf("Lo() = %v, want 0 for NaN bound", got.Lo())
	}
}

func TestSelection_Options(t *testing.T) {
	spec := Spec{ID: 5, Name: "Бренд", Kind: KindOptions, RawValue: "Apple,Samsung"}
	sel := Selection{}

	sel.ToggleOption(5, "Apple", true)
	sel.ToggleOption(5, "Samsung", true)
	if diff := cmp.Diff(Value(TextSet{"Apple", "Samsung"}), sel[5]); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}

	// All selected: toggling all clears.
	sel.ToggleAll(spec)
	if _, ok := sel[5]; ok {
		t.Error("ToggleAll with every option selected should clear the filter")
	}

	sel.ToggleAll(spec)
	if diff := cmp.Diff(Value(TextSet{"Apple", "Samsung"}), sel[5]); diff != "" {
		t.Errorf("ToggleAll mismatch (-want +got):\n%s", diff)
	}

	sel.ToggleOption(5, "Apple", false)
	sel.ToggleOption(5, "Samsung", false)
	if _, ok := sel[5]; ok {
		t.Error("unselecting the last option should remove the filter")
	}
}

func TestSelection_CloneAndClear(t *testing.T) {
	sel := Selection{1: TextSet{"a"}, 2: Bool(true)}
	clone := sel.Clone()

	sel[1].(TextSet)[0] = "changed"
	sel.Clear()

	if len(sel) != 0 {
		t.Errorf("Clear() left %d entries", len(sel))
	}
	if diff := cmp.Diff(Selection{1: TextSet{"a"}, 2: Bool(true)}, clone); diff != "" {
		t.Errorf("clone affected by original (-want +got):\n%s", diff)
	}
}

func TestSeedDefaults(t *testing.T) {
	specs := []Spec{
		{ID: 1, Name: "В наличии", Kind: KindCheckbox, DefaultValue: "true"},
		{ID: 2, Name: "Бренд", Kind: KindOptions, RawValue: "A,B", DefaultValue: "A, B"},
		{ID: 3, Name: "Цена", Kind: KindRange, RawValue: "0-100", DefaultValue: "10-20"},
		{ID: 4, Name: "Поиск", Kind: KindText, DefaultValue: "phone"},
		{ID: 5, Name: "Скидка", Kind: KindCheckbox, DefaultValue: "false"},
		{ID: 6, Name: "Описание", Kind: KindText},
	}

	want := Selection{
		1: Bool(true),
		2: TextSet{"A", "B"},
		3: RangeBound{Min: "10", Max: "20"},
		4: FreeText("phone"),
	}
	if diff := cmp.Diff(want, SeedDefaults(specs)); diff != "" {
		t.Errorf("SeedDefaults mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribeAndActive(t *testing.T) {
	specs := []Spec{
		{ID: 2, Name: "Цена", Kind: KindRange, RawValue: "0-100"},
		{ID: 1, Name: "В наличии", Kind: KindCheckbox},
		{ID: 3, Name: "Бренд", Kind: KindOptions, RawValue: "A,B"},
	}
	sel := Selection{
		1:  Bool(true),
		2:  RangeBound{Min: "10"},
		3:  TextSet{"A", "B"},
		99: FreeText("orphan"),
	}

	want := []Label{
		{SpecID: 1, Name: "В наличии", Text: "В наличии"},
		{SpecID: 2, Name: "Цена", Text: "from 10"},
		{SpecID: 3, Name: "Бренд", Text: "A, B"},
	}
	if diff := cmp.Diff(want, Active(specs, sel)); diff != "" {
		t.Errorf("Active mismatch (-want +got):\n%s", diff)
	}

	if got := Describe(specs[0], RangeBound{Min: "1", Max: "2"}); got != "1 - 2" {
		t.Errorf("Describe = %q", got)
	}
	if got := Describe(specs[0], RangeBound{Max: "2"}); got != "to 2" {
		t.Errorf("Describe = %q", got)
	}
}
