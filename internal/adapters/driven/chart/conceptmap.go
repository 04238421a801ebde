package chart

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/custodia-labs/agora/internal/core/domain"
)

const (
	nodeRadius       = 60
	springIterations = 50
)

type point struct{ x, y float64 }

// RenderConceptMap draws concepts as nodes and relations as labelled
// arrows. Layout positions are deterministic for a given map.
func (r *Renderer) RenderConceptMap(ctx context.Context, m domain.ConceptMap) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes := m.Nodes()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: concept map has no concepts", domain.ErrInvalidInput)
	}

	var unit []point
	switch m.Layout {
	case domain.LayoutCircular:
		unit = circularLayout(len(nodes))
	case domain.LayoutHierarchical:
		unit = hierarchicalLayout(nodes, m.Relations)
	default:
		unit = springLayout(nodes, m.Relations)
	}
	pos := fitToCanvas(unit, 120, 110, mapWidth-120, mapHeight-90)
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	dc := gg.NewContext(mapWidth, mapHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(r.face(true, 28))
	dc.DrawStringAnchored(m.Title, mapWidth/2, 50, 0.5, 0.5)

	for _, rel := range m.Relations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		from, to := pos[index[rel.Source]], pos[index[rel.Target]]
		r.drawArrow(dc, from, to)
	}
	dc.SetFontFace(r.face(false, 14))
	for _, rel := range m.Relations {
		if rel.Label == "" {
			continue
		}
		from, to := pos[index[rel.Source]], pos[index[rel.Target]]
		dc.SetRGB(0.8, 0.1, 0.1)
		dc.DrawStringAnchored(rel.Label, (from.x+to.x)/2, (from.y+to.y)/2-8, 0.5, 0.5)
	}

	dc.SetFontFace(r.face(true, 15))
	for i, name := range nodes {
		p := pos[i]
		dc.SetHexColor("#add8e6")
		dc.DrawCircle(p.x, p.y, nodeRadius)
		dc.FillPreserve()
		dc.SetRGB(0.3, 0.45, 0.6)
		dc.SetLineWidth(2)
		dc.Stroke()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringWrapped(name, p.x, p.y, 0.5, 0.5, nodeRadius*1.7, 1.1, gg.AlignCenter)
	}
	return dc.Image(), nil
}

func (r *Renderer) drawArrow(dc *gg.Context, from, to point) {
	dx, dy := to.x-from.x, to.y-from.y
	dist := math.Hypot(dx, dy)
	if dist < 2*nodeRadius {
		return
	}
	ux, uy := dx/dist, dy/dist
	sx, sy := from.x+ux*nodeRadius, from.y+uy*nodeRadius
	ex, ey := to.x-ux*nodeRadius, to.y-uy*nodeRadius

	dc.SetRGBA(0.4, 0.4, 0.4, 0.8)
	dc.SetLineWidth(2.5)
	dc.DrawLine(sx, sy, ex, ey)
	dc.Stroke()

	const head = 16
	angle := math.Atan2(uy, ux)
	dc.MoveTo(ex, ey)
	dc.LineTo(ex-head*math.Cos(angle-math.Pi/7), ey-head*math.Sin(angle-math.Pi/7))
	dc.LineTo(ex-head*math.Cos(angle+math.Pi/7), ey-head*math.Sin(angle+math.Pi/7))
	dc.ClosePath()
	dc.Fill()
}

// circularLayout spaces n nodes evenly on the unit circle.
func circularLayout(n int) []point {
	out := make([]point, n)
	if n == 1 {
		return out
	}
	for i := range out {
		a := 2*math.Pi*float64(i)/float64(n) - math.Pi/2
		out[i] = point{math.Cos(a), math.Sin(a)}
	}
	return out
}

// springLayout runs Fruchterman-Reingold from the circular layout.
func springLayout(nodes []string, rels []domain.ConceptRelation) []point {
	n := len(nodes)
	pos := circularLayout(n)
	if n < 2 {
		return pos
	}
	index := make(map[string]int, n)
	for i, name := range nodes {
		index[name] = i
	}
	k := 2 / math.Sqrt(float64(n))
	temp := 0.2
	for it := 0; it < springIterations; it++ {
		disp := make([]point, n)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx, dy := pos[i].x-pos[j].x, pos[i].y-pos[j].y
				d := math.Max(math.Hypot(dx, dy), 1e-3)
				f := k * k / d
				disp[i].x += dx / d * f
				disp[i].y += dy / d * f
				disp[j].x -= dx / d * f
				disp[j].y -= dy / d * f
			}
		}
		for _, rel := range rels {
			i, j := index[rel.Source], index[rel.Target]
			if i == j {
				continue
			}
			dx, dy := pos[i].x-pos[j].x, pos[i].y-pos[j].y
			d := math.Max(math.Hypot(dx, dy), 1e-3)
			f := d * d / k
			disp[i].x -= dx / d * f
			disp[i].y -= dy / d * f
			disp[j].x += dx / d * f
			disp[j].y += dy / d * f
		}
		for i := range pos {
			d := math.Max(math.Hypot(disp[i].x, disp[i].y), 1e-9)
			step := math.Min(d, temp)
			pos[i].x += disp[i].x / d * step
			pos[i].y += disp[i].y / d * step
		}
		temp *= 0.95
	}
	return pos
}

// hierarchicalLayout places nodes in rows by their longest distance from a
// root. Nodes on a cycle keep the depth at which they were first reached.
func hierarchicalLayout(nodes []string, rels []domain.ConceptRelation) []point {
	depth := make(map[string]int, len(nodes))
	for range nodes {
		changed := false
		for _, rel := range rels {
			if rel.Source == rel.Target {
				continue
			}
			if d := depth[rel.Source] + 1; d > depth[rel.Target] && d < len(nodes) {
				depth[rel.Target] = d
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	rows := make(map[int][]int)
	maxDepth := 0
	for i, name := range nodes {
		d := depth[name]
		rows[d] = append(rows[d], i)
		maxDepth = max(maxDepth, d)
	}
	out := make([]point, len(nodes))
	for d, members := range rows {
		for j, i := range members {
			out[i] = point{
				x: (float64(j) + 1) / (float64(len(members)) + 1),
				y: (float64(d) + 1) / (float64(maxDepth) + 2),
			}
		}
	}
	return out
}

// fitToCanvas scales unit positions into the given pixel box.
func fitToCanvas(unit []point, left, top, right, bottom float64) []point {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range unit {
		minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
		minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
	}
	spanX, spanY := maxX-minX, maxY-minY
	out := make([]point, len(unit))
	for i, p := range unit {
		x, y := (left+right)/2, (top+bottom)/2
		if spanX > 1e-9 {
			x = left + (p.x-minX)/spanX*(right-left)
		}
		if spanY > 1e-9 {
			y = top + (p.y-minY)/spanY*(bottom-top)
		}
		out[i] = point{x, y}
	}
	return out
}
