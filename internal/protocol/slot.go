package protocol

import (
	"github.com/cubelink-project/cubelink/internal/world"
)

// Slot reads one item stack. An item id of -1 is an empty slot and yields nil.
func (r *Reader) Slot() (*world.ItemStack, error) {
	id, err := r.Int16()
	if err != nil {
		return nil, err
	}
	if id < 0 {
		return nil, nil
	}
	item := &world.ItemStack{ID: id}
	if item.Count, err = r.Int8(); err != nil {
		return nil, err
	}
	if item.Damage, err = r.Int16(); err != nil {
		return nil, err
	}
	if r.Has(FeatureInlineSlotTags) {
		item.Tag, err = r.Tag()
	} else {
		item.Tag, err = r.GzipTag()
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Slots reads a short-prefixed list of item stacks.
func (r *Reader) Slots() ([]*world.ItemStack, error) {
	n, err := r.Int16()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrOutOfBounds
	}
	items := make([]*world.ItemStack, n)
	for i := range items {
		if items[i], err = r.Slot(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// WriteSlot writes one item stack; nil writes an empty slot.
func (w *Writer) WriteSlot(item *world.ItemStack) *Writer {
	if item == nil {
		return w.WriteInt16(-1)
	}
	w.WriteInt16(item.ID).WriteInt8(item.Count).WriteInt16(item.Damage)
	if w.Has(FeatureInlineSlotTags) {
		return w.WriteTag(item.Tag)
	}
	return w.WriteGzipTag(item.Tag)
}
