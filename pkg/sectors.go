package eutel

// Sector is one of the five regions of a plane used for the occupancy
// analysis. Sectors 0-3 are the quarters of the x range; when a boundary is
// configured the first quarter is split and its low-x part becomes sector 4.
type Sector int

const NSectors = 5

const (
	Sector0 Sector = iota
	Sector1
	Sector2
	Sector3
	Sector4
)

// ClassifySector returns the sector of column x for a plane with the given
// width. ok is false when x is outside [0, width).
func ClassifySector(x int, width int, boundary int) (sector Sector, ok bool) {
	if x < 0 || x >= width {
		return 0, false
	}
	// Quarter edges are i*width/4 in integer arithmetic
	for quarter := 0; quarter < 4; quarter++ {
		if x >= quarter*width/4 && x < (quarter+1)*width/4 {
			if quarter != 0 {
				return Sector(quarter), true
			}
			if x < boundary {
				return Sector4, true
			}
			return Sector0, true
		}
	}
	// The quarters tile [0, width), so this is never reached
	return 0, false
}

// SectorArea is the number of pixels covered by a sector. It can be zero or
// negative when the boundary is zero or wider than a quarter; such sectors
// are not normalised.
func SectorArea(sector Sector, width int, height int, boundary int) int {
	quarter := width / 4
	switch sector {
	case Sector0:
		return (quarter - boundary) * height
	case Sector4:
		return boundary * height
	default:
		return quarter * height
	}
}
