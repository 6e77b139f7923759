package world

// PlayerWindowID is the permanent personal inventory of the player.
const PlayerWindowID = 0

// CursorWindowID and CursorSlot address the stack held by the mouse cursor.
const (
	CursorWindowID = -1
	CursorSlot     = -1
)

// PlayerInventorySize is the slot count of window 0: crafting output and grid,
// armor, main inventory, hotbar and (from 1.9) the off-hand slot.
const PlayerInventorySize = 46

// Window is a server-addressable container of item slots.
type Window struct {
	ID     int16        `json:"id"`
	Type   string       `json:"type"`
	Title  string       `json:"title"`
	Slots  []*ItemStack `json:"slots"`
	Entity int32        `json:"entity,omitempty"`
}

func newWindow(id int16, typ, title string, size int) *Window {
	return &Window{ID: id, Type: typ, Title: title, Slots: make([]*ItemStack, size)}
}

// set writes one slot, growing the window if the server addresses a slot
// beyond the advertised size.
func (w *Window) set(slot int, item *ItemStack) bool {
	if slot < 0 {
		return false
	}
	if slot >= len(w.Slots) {
		grown := make([]*ItemStack, slot+1)
		copy(grown, w.Slots)
		w.Slots = grown
	}
	w.Slots[slot] = item
	return true
}

func (w *Window) clone() Window {
	c := *w
	c.Slots = make([]*ItemStack, len(w.Slots))
	for i, s := range w.Slots {
		c.Slots[i] = s.Clone()
	}
	return c
}

// Filled counts the non-empty slots.
func (w Window) Filled() int {
	n := 0
	for _, s := range w.Slots {
		if s != nil {
			n++
		}
	}
	return n
}
