package render

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	svg "github.com/ajstarks/svgo"
	"github.com/lucasb-eyer/go-colorful"

	"tagvis/internal/config"
	"tagvis/internal/tree"
)

// SunburstOptions controls the SVG sunburst.
type SunburstOptions struct {
	Width        int
	Height       int
	FontSize     int
	FontFamily   string
	MaxTagLength int
	Background   string
}

// SunburstOptionsFromVis takes the drawing settings of a visualisation block.
func SunburstOptionsFromVis(vis config.VisConfig) SunburstOptions {
	return SunburstOptions{
		Width:        vis.Layout.Width,
		Height:       vis.Layout.Height,
		FontSize:     vis.FontSize,
		FontFamily:   vis.FontFamily,
		MaxTagLength: vis.MaxTagLength,
		Background:   vis.Background,
	}
}

func (o SunburstOptions) withDefaults() SunburstOptions {
	d := config.DefaultVisConfig()
	if o.Width <= 0 {
		o.Width = d.Layout.Width
	}
	if o.Height <= 0 {
		o.Height = d.Layout.Height
	}
	if o.FontSize <= 0 {
		o.FontSize = d.FontSize
	}
	if o.FontFamily == "" {
		o.FontFamily = d.FontFamily
	}
	if o.Background == "" {
		o.Background = d.Background
	}
	return o
}

// arc is one laid-out node. Angles run clockwise from twelve o'clock.
type arc struct {
	node   *tree.Node
	path   []string
	depth  int
	value  int
	x0, x1 float64 // angle
	y0, y1 float64 // radius
	colour int     // index of the top-level ancestor
}

// partition lays root out the way a d3 partition does: a node's value is
// its own plus its descendants', siblings are sorted by value descending and
// share their parent's angle in proportion, and each depth gets an equal
// ring of the radius.
func partition(root *tree.Node, radius float64) []arc {
	sums := make(map[*tree.Node]int)
	var sum func(n *tree.Node) int
	sum = func(n *tree.Node) int {
		total := n.Value
		for _, c := range n.Children {
			total += sum(c)
		}
		sums[n] = total
		return total
	}
	sum(root)

	height := 0
	root.Walk(func(_ *tree.Node, depth int) bool {
		if depth > height {
			height = depth
		}
		return true
	})
	band := radius / float64(height+1)

	var out []arc
	var place func(n *tree.Node, path []string, depth int, x0, x1 float64, colour int)
	place = func(n *tree.Node, path []string, depth int, x0, x1 float64, colour int) {
		out = append(out, arc{
			node:   n,
			path:   path,
			depth:  depth,
			value:  sums[n],
			x0:     x0,
			x1:     x1,
			y0:     float64(depth) * band,
			y1:     float64(depth+1) * band,
			colour: colour,
		})

		children := append([]*tree.Node(nil), n.Children...)
		sort.SliceStable(children, func(i, j int) bool {
			return sums[children[i]] > sums[children[j]]
		})
		total := 0
		for _, c := range children {
			total += sums[c]
		}
		if total == 0 {
			return
		}
		// A parent's own value leaves a gap after its children.
		scale := (x1 - x0) / float64(sums[n])
		at := x0
		for i, c := range children {
			width := float64(sums[c]) * scale
			childColour := colour
			if depth == 0 {
				childColour = i
			}
			childPath := append(append([]string(nil), path...), c.Name)
			place(c, childPath, depth+1, at, at+width, childColour)
			at += width
		}
	}
	if sums[root] == 0 {
		return nil
	}
	place(root, []string{root.Name}, 0, 0, 2*math.Pi, 0)
	return out
}

// Sunburst draws root as an SVG sunburst: one ring per depth, coloured by
// top-level ancestor, with the root's name in the centre.
func Sunburst(w io.Writer, root *tree.Node, opts SunburstOptions) error {
	opts = opts.withDefaults()
	radius := math.Min(float64(opts.Width), float64(opts.Height))/2 - 20
	if radius < 1 {
		return fmt.Errorf("layout %dx%d is too small", opts.Width, opts.Height)
	}

	canvas := svg.New(w)
	canvas.Start(opts.Width, opts.Height,
		fmt.Sprintf(`viewBox="0 0 %d %d"`, opts.Width, opts.Height),
		`preserveAspectRatio="xMidYMid meet"`,
	)
	canvas.Rect(0, 0, opts.Width, opts.Height, "fill:"+opts.Background)
	canvas.Gtransform(fmt.Sprintf("translate(%d,%d)", opts.Width/2, opts.Height/2))

	var arcs []arc
	top := 0
	if root != nil {
		arcs = partition(root, radius)
		top = len(root.Children)
	}
	palette := rainbow(top + 1)

	canvas.Group(`fill-opacity="0.6"`)
	for _, a := range arcs {
		if a.depth == 0 {
			continue
		}
		canvas.Group()
		canvas.Title(fmt.Sprintf("%s\n%d", strings.Join(a.path, "/"), a.value))
		canvas.Path(arcPath(a), "fill:"+palette[a.colour%len(palette)])
		canvas.Gend()
	}
	canvas.Gend()

	text := fmt.Sprintf("font-size:%dpx;font-family:%s", opts.FontSize, opts.FontFamily)
	for _, a := range arcs {
		if a.depth == 0 || (a.y0+a.y1)/2*(a.x1-a.x0) <= 10 {
			continue
		}
		x := (a.x0 + a.x1) / 2 * 180 / math.Pi
		y := (a.y0 + a.y1) / 2
		flip := 0
		if x >= 180 {
			flip = 180
		}
		canvas.Text(0, 0, Truncate(a.node.Name, opts.MaxTagLength),
			fmt.Sprintf(`transform="rotate(%.2f) translate(%.2f,0) rotate(%d)"`, x-90, y, flip),
			`dy="0.35em"`,
			`text-anchor="middle"`,
			text,
		)
	}

	canvas.Circle(0, 0, int(radius/5), "fill:white;stroke:black;stroke-width:1")
	if root != nil {
		canvas.Text(0, 0, root.Name, `dy="0.35em"`, `text-anchor="middle"`, text)
	}

	canvas.Gend()
	canvas.End()
	return nil
}

// rainbow returns n evenly spaced colours around the hue circle.
func rainbow(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = colorful.Hsv(360*float64(i)/float64(n), 0.75, 0.95).Hex()
	}
	return out
}

// arcPath is the SVG path of an annular sector, with the outer edge pulled
// in by one pixel and a small pad between neighbours.
func arcPath(a arc) string {
	pad := math.Min((a.x1-a.x0)/2, 0.005)
	x0, x1 := a.x0+pad/2, a.x1-pad/2
	if x1-x0 >= 2*math.Pi-1e-6 {
		x1 = x0 + 2*math.Pi - 1e-4
	}
	r0, r1 := a.y0, math.Max(a.y0, a.y1-1)

	large := 0
	if x1-x0 > math.Pi {
		large = 1
	}
	point := func(r, angle float64) string {
		return fmt.Sprintf("%.2f,%.2f", r*math.Sin(angle), -r*math.Cos(angle))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "M%s", point(r1, x0))
	fmt.Fprintf(&b, "A%.2f,%.2f 0 %d 1 %s", r1, r1, large, point(r1, x1))
	fmt.Fprintf(&b, "L%s", point(r0, x1))
	if r0 > 0 {
		fmt.Fprintf(&b, "A%.2f,%.2f 0 %d 0 %s", r0, r0, large, point(r0, x0))
	}
	b.WriteString("Z")
	return b.String()
}
