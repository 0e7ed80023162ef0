package edge

// thinIterationCap bounds the thinning loop; strokes thicker than this never
// occur in practice and the partially thinned mask is still usable.
const thinIterationCap = 64

// Thin reduces every stroke in the mask to single-pixel width using
// Zhang-Suen thinning. The input mask is not modified. If the iteration cap
// is hit the best mask so far is returned rather than failing, since an
// unthinned or partially thinned mask still produces a workable cost field.
func Thin(m *Mask) *Mask {
	if m == nil || m.W < 3 || m.H < 3 {
		return m
	}

	cur := m.Clone()
	for iter := 0; iter < thinIterationCap; iter++ {
		changed := thinPass(cur, 0)
		changed = thinPass(cur, 1) || changed
		if !changed {
			break
		}
	}
	return cur
}

// thinPass runs one Zhang-Suen sub-iteration, deleting boundary pixels that
// satisfy the connectivity conditions for the given phase (0 or 1).
func thinPass(m *Mask, phase int) bool {
	w, h := m.W, m.H
	var deletions []int

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			if m.Pix[i] == 0 {
				continue
			}

			// Neighbors p2..p9 clockwise from north.
			p2 := m.Pix[i-w] != 0
			p3 := m.Pix[i-w+1] != 0
			p4 := m.Pix[i+1] != 0
			p5 := m.Pix[i+w+1] != 0
			p6 := m.Pix[i+w] != 0
			p7 := m.Pix[i+w-1] != 0
			p8 := m.Pix[i-1] != 0
			p9 := m.Pix[i-w-1] != 0

			n := boolCount(p2, p3, p4, p5, p6, p7, p8, p9)
			if n < 2 || n > 6 {
				continue
			}
			if transitions(p2, p3, p4, p5, p6, p7, p8, p9) != 1 {
				continue
			}

			if phase == 0 {
				if (p2 && p4 && p6) || (p4 && p6 && p8) {
					continue
				}
			} else {
				if (p2 && p4 && p8) || (p2 && p6 && p8) {
					continue
				}
			}
			deletions = append(deletions, i)
		}
	}

	for _, i := range deletions {
		m.Pix[i] = 0
	}
	return len(deletions) > 0
}

// transitions counts 0->1 transitions in the circular neighbor sequence.
func transitions(ns ...bool) int {
	count := 0
	for i := range ns {
		if !ns[i] && ns[(i+1)%len(ns)] {
			count++
		}
	}
	return count
}

func boolCount(ns ...bool) int {
	count := 0
	for _, v := range ns {
		if v {
			count++
		}
	}
	return count
}
