// Package atomtable implements the per-connection X11 atom dictionary.
//
// Grounded on _examples/original_source/atoms.c: the first 68 atom ids are
// fixed by the core protocol and never change; ids 69 and up are interned at
// runtime as InternAtom replies are observed.
package atomtable

import "sort"

// Atom is an immutable (id, name) pair.
type Atom struct {
	ID   uint32
	Name string
}

// predefined holds the 68 names the core X11 protocol reserves, in
// protocol order (id 1 == predefined[0]).
var predefined = [...]string{
	"PRIMARY", "SECONDARY", "ARC", "ATOM",
	"BITMAP", "CARDINAL", "COLORMAP", "CURSOR",
	"CUT_BUFFER0", "CUT_BUFFER1", "CUT_BUFFER2", "CUT_BUFFER3",
	"CUT_BUFFER4", "CUT_BUFFER5", "CUT_BUFFER6", "CUT_BUFFER7",
	"DRAWABLE", "FONT", "INTEGER", "PIXMAP",
	"POINT", "RECTANGLE", "RESOURCE_MANAGER", "RGB_COLOR_MAP",
	"RGB_BEST_MAP", "RGB_BLUE_MAP", "RGB_DEFAULT_MAP", "RGB_GRAY_MAP",
	"RGB_GREEN_MAP", "RGB_RED_MAP", "STRING", "VISUALID",
	"WINDOW", "WM_COMMAND", "WM_HINTS", "WM_CLIENT_MACHINE",
	"WM_ICON_NAME", "WM_ICON_SIZE", "WM_NAME", "WM_NORMAL_HINTS",
	"WM_SIZE_HINTS", "WM_ZOOM_HINTS", "MIN_SPACE", "NORM_SPACE",
	"MAX_SPACE", "END_SPACE", "SUPERSCRIPT_X", "SUPERSCRIPT_Y",
	"SUBSCRIPT_X", "SUBSCRIPT_Y", "UNDERLINE_POSITION", "UNDERLINE_THICKNESS",
	"STRIKEOUT_ASCENT", "STRIKEOUT_DESCENT", "ITALIC_ANGLE", "X_HEIGHT",
	"QUAD_WIDTH", "WEIGHT", "POINT_SIZE", "RESOLUTION",
	"COPYRIGHT", "NOTICE", "FONT_NAME", "FAMILY_NAME",
	"FULL_NAME", "CAP_HEIGHT", "WM_CLASS", "WM_TRANSIENT_FOR",
}

// FirstDynamicID is the first atom id available for runtime interning.
const FirstDynamicID = uint32(len(predefined)) + 1

// Table is an insertion-only, per-connection atom dictionary. Zero value is
// not usable; construct with New.
type Table struct {
	byID   []Atom // kept sorted by ID for binary search
	byName map[string]uint32
}

// New returns a Table pre-seeded with the 68 predefined atoms.
func New() *Table {
	t := &Table{
		byID:   make([]Atom, 0, len(predefined)+32),
		byName: make(map[string]uint32, len(predefined)+32),
	}
	for i, name := range predefined {
		id := uint32(i + 1)
		t.byID = append(t.byID, Atom{ID: id, Name: name})
		t.byName[name] = id
	}
	return t
}

// ByID looks up an atom by id in O(log n) time.
func (t *Table) ByID(id uint32) (Atom, bool) {
	i := sort.Search(len(t.byID), func(i int) bool { return t.byID[i].ID >= id })
	if i < len(t.byID) && t.byID[i].ID == id {
		return t.byID[i], true
	}
	return Atom{}, false
}

// ByName looks up an atom by name.
func (t *Table) ByName(name string) (Atom, bool) {
	id, ok := t.byName[name]
	if !ok {
		return Atom{}, false
	}
	a, _ := t.ByID(id)
	return a, true
}

// Intern records that id names name, inserting into the sorted id index.
// It is a no-op if id is already present with the same name; interning the
// same id with a different name is a bug in the caller and panics, since
// spec invariant 4 requires every returned id to equal the id it was
// interned with.
func (t *Table) Intern(id uint32, name string) Atom {
	if existing, ok := t.ByID(id); ok {
		if existing.Name != name {
			panic("atomtable: re-interning id " + itoa(id) + " with a different name")
		}
		return existing
	}

	i := sort.Search(len(t.byID), func(i int) bool { return t.byID[i].ID >= id })
	t.byID = append(t.byID, Atom{})
	copy(t.byID[i+1:], t.byID[i:])
	t.byID[i] = Atom{ID: id, Name: name}
	t.byName[name] = id
	return t.byID[i]
}

// Len returns the number of interned atoms, including the 68 predefined ones.
func (t *Table) Len() int { return len(t.byID) }

func itoa(id uint32) string {
	if id == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	return string(buf[i:])
}
