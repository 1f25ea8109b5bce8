package rv64

// dirty.go tracks the minimal axis-aligned rectangle covering framebuffer
// writes since the last Clear, so a host can minimize display sync cost.

// DirtyRegion is the bounding rectangle of framebuffer pixels written since
// the tracker was last cleared. Bounds are half-open: MaxX/MaxY are
// exclusive, matching spec.md's glossary definition.
type DirtyRegion struct {
	MinX, MinY int
	MaxX, MaxY int
	dirty      bool
}

// Mark expands the tracked rectangle to include pixel (x, y).
func (d *DirtyRegion) Mark(x, y uint64) {
	ix, iy := int(x), int(y)

	if !d.dirty {
		d.MinX, d.MinY = ix, iy
		d.MaxX, d.MaxY = ix+1, iy+1
		d.dirty = true

		return
	}

	if ix < d.MinX {
		d.MinX = ix
	}

	if iy < d.MinY {
		d.MinY = iy
	}

	if ix+1 > d.MaxX {
		d.MaxX = ix + 1
	}

	if iy+1 > d.MaxY {
		d.MaxY = iy + 1
	}
}

// MarkAll marks the entire width x height rectangle dirty. fb_clear does not
// call it; its per-pixel writes expand the region through Mark instead.
func (d *DirtyRegion) MarkAll(width, height uint64) {
	d.MinX, d.MinY = 0, 0
	d.MaxX, d.MaxY = int(width), int(height)
	d.dirty = true
}

// Clear resets the tracker to a clean, empty state.
func (d *DirtyRegion) Clear() {
	*d = DirtyRegion{}
}

// GetBounds returns whether any region is dirty and the current rectangle.
func (d *DirtyRegion) GetBounds() (bool, DirtyRegion) {
	return d.dirty, *d
}
