package atomtable

import "testing"

func TestPredefinedAtomsResolve(t *testing.T) {
	tbl := New()

	cases := []struct {
		id   uint32
		name string
	}{
		{1, "PRIMARY"},
		{4, "ATOM"},
		{68, "WM_TRANSIENT_FOR"},
	}
	for _, c := range cases {
		a, ok := tbl.ByID(c.id)
		if !ok {
			t.Fatalf("id %d: not found", c.id)
		}
		if a.Name != c.name {
			t.Errorf("id %d: got %q, want %q", c.id, a.Name, c.name)
		}
	}
}

func TestInternAssignsRequestedID(t *testing.T) {
	tbl := New()

	a := tbl.Intern(332, "WM_PROTOCOLS")
	if a.ID != 332 {
		t.Fatalf("got id %d, want 332", a.ID)
	}

	got, ok := tbl.ByID(332)
	if !ok || got.Name != "WM_PROTOCOLS" {
		t.Fatalf("ByID(332) = %+v, %v", got, ok)
	}

	byName, ok := tbl.ByName("WM_PROTOCOLS")
	if !ok || byName.ID != 332 {
		t.Fatalf("ByName round trip failed: %+v, %v", byName, ok)
	}
}

func TestInternIsIdempotentForSameNamedID(t *testing.T) {
	tbl := New()
	first := tbl.Intern(100, "_NET_WM_NAME")
	second := tbl.Intern(100, "_NET_WM_NAME")
	if first != second {
		t.Fatalf("re-interning same (id, name) changed result: %+v != %+v", first, second)
	}
	if tbl.Len() != len(predefined)+1 {
		t.Fatalf("duplicate intern grew table: len=%d", tbl.Len())
	}
}

func TestInternRejectsRenamingAnID(t *testing.T) {
	tbl := New()
	tbl.Intern(200, "FOO")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on conflicting intern")
		}
	}()
	tbl.Intern(200, "BAR")
}

func TestUnknownIDNotFound(t *testing.T) {
	tbl := New()
	if _, ok := tbl.ByID(9999); ok {
		t.Fatal("expected miss for unknown id")
	}
}


