package registry

import (
	"errors"
	"fmt"

	"voxelfarm.ai/internal/config"
)

type (
	BlockID uint16
	ItemID  uint16
)

// Palette maps names to ids; a name's id is its position in the list.
type Palette struct {
	Names []string
	Index map[string]uint16
}

func NewPalette(names []string) Palette {
	p := Palette{Names: append([]string(nil), names...), Index: make(map[string]uint16, len(names))}
	for i, n := range names {
		if _, dup := p.Index[n]; dup {
			continue
		}
		p.Index[n] = uint16(i)
	}
	return p
}

func (p Palette) Lookup(name string) (uint16, bool) {
	id, ok := p.Index[name]
	return id, ok
}

func (p Palette) Name(id uint16) string {
	if int(id) < len(p.Names) {
		return p.Names[id]
	}
	return ""
}

// IDs are the palette ids the agent needs, resolved once after the world is ready.
type IDs struct {
	Air      BlockID
	Farmland BlockID
	Crops    []BlockID

	Seed    ItemID
	Produce []ItemID
	Tool    ItemID
	HasTool bool

	Carpet      ItemID
	Cobblestone ItemID

	blocks Palette
	items  Palette
}

// Resolve maps the configured semantic names onto the catalog palettes.
func Resolve(blocks, items Palette, names config.Names, harvest config.Harvest, cover config.Cover) (IDs, error) {
	ids := IDs{blocks: blocks, items: items}
	var errs []error

	block := func(name string) BlockID {
		id, ok := blocks.Lookup(name)
		if !ok {
			errs = append(errs, fmt.Errorf("block %q not in palette", name))
		}
		return BlockID(id)
	}
	item := func(name string) ItemID {
		id, ok := items.Lookup(name)
		if !ok {
			errs = append(errs, fmt.Errorf("item %q not in palette", name))
		}
		return ItemID(id)
	}
	// Optional names resolve when present and are skipped otherwise.
	optBlock := func(name string, into *[]BlockID) {
		if id, ok := blocks.Lookup(name); ok && name != "" {
			*into = append(*into, BlockID(id))
		}
	}
	optItem := func(name string, into *[]ItemID) {
		if id, ok := items.Lookup(name); ok && name != "" {
			*into = append(*into, ItemID(id))
		}
	}

	ids.Air = block(names.Air)
	ids.Farmland = block(names.Farmland)
	ids.Crops = []BlockID{block(names.WheatCrop)}
	optBlock(names.CarrotCrop, &ids.Crops)
	optBlock(names.PotatoCrop, &ids.Crops)

	ids.Seed = item(harvest.Seed)
	ids.Produce = []ItemID{item(names.Wheat)}
	optItem(names.Carrot, &ids.Produce)
	optItem(names.Potato, &ids.Produce)
	if harvest.Tool != "" {
		ids.Tool = item(harvest.Tool)
		ids.HasTool = true
	}

	ids.Carpet = item(cover.Item)
	if id, ok := items.Lookup(names.Cobblestone); ok {
		ids.Cobblestone = ItemID(id)
	}

	if err := errors.Join(errs...); err != nil {
		return IDs{}, fmt.Errorf("resolve registry: %w", err)
	}
	return ids, nil
}

func (ids IDs) IsCrop(b BlockID) bool {
	for _, c := range ids.Crops {
		if c == b {
			return true
		}
	}
	return false
}

// IsPickup reports whether a dropped item is worth walking to.
func (ids IDs) IsPickup(it ItemID) bool {
	if it == ids.Seed {
		return true
	}
	for _, p := range ids.Produce {
		if p == it {
			return true
		}
	}
	return false
}

func (ids IDs) BlockName(b BlockID) string { return ids.blocks.Name(uint16(b)) }
func (ids IDs) ItemName(it ItemID) string  { return ids.items.Name(uint16(it)) }
