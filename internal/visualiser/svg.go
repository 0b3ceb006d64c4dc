package visualiser

import (
	"io"
	"sort"

	svg "github.com/ajstarks/svgo"
)

const (
	svgRowHeight = 14
	svgColWidth  = 6
)

// EmitSVG renders one horizontal strip per tracked source file: a
// sequence of colored cells, one per known line, green for covered and
// red for uncovered, the way the teacher's render package draws
// colored rectangles for time spans -- here the span axis is line
// number instead of time.
func (v *Visualiser) EmitSVG(w io.Writer) error {
	v.mu.Lock()
	files := make([]string, 0, len(v.files))
	for f := range v.files {
		files = append(files, f)
	}
	v.mu.Unlock()
	sort.Strings(files)

	maxLine := 0
	for _, f := range files {
		fc := v.fileCoverage(f)
		for l := range fc.covered {
			if l > maxLine {
				maxLine = l
			}
		}
		for l := range fc.uncovered {
			if l > maxLine {
				maxLine = l
			}
		}
	}

	width := (maxLine + 1) * svgColWidth
	height := len(files) * svgRowHeight
	if width == 0 {
		width = 1
	}
	if height == 0 {
		height = 1
	}

	canv := svg.New(w)
	canv.Start(width, height)
	for row, f := range files {
		fc := v.fileCoverage(f)
		y := row * svgRowHeight
		canv.Text(0, y+svgRowHeight-2, f, "font-size:10px")
		for l := range fc.covered {
			canv.Rect(l*svgColWidth, y, svgColWidth, svgRowHeight, `fill="green"`)
		}
		for l := range fc.uncovered {
			canv.Rect(l*svgColWidth, y, svgColWidth, svgRowHeight, `fill="red"`)
		}
	}
	canv.End()
	return nil
}
