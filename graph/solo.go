package graph

import "github.com/vsariola/mixgraph"

// soloPass holds the counters of one full solo recompute. Counts are
// indexed by track position and copied to the tracks only when the pass is
// complete.
type soloPass struct {
	g        *Graph
	ref      []int
	internal []int
	visiting []bool
}

func (p *soloPass) reset(n int) {
	p.ref = resize(p.ref, n)
	p.internal = resize(p.internal, n)
	p.visiting = resize(p.visiting, n)
	clear(p.ref)
	clear(p.internal)
	clear(p.visiting)
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// visit counts t as kept audible by the solo chain currently walked and
// continues the chain in the same direction.
func (p *soloPass) visit(t *Track, inputs bool) {
	i := t.index
	if p.visiting[i] {
		p.g.reporter.Report(mixgraph.Diagnostic{Kind: mixgraph.ErrCircularRoute, Track: t.ID, Name: t.Name, Detail: "solo chain edge skipped"})
		return
	}
	p.visiting[i] = true
	p.internal[i]++
	p.ref[i]++
	if t.variant.recurses() {
		t.variant.soloDeps(p, t, inputs)
	}
	p.visiting[i] = false
}

// updateSolo recomputes the solo reference counts and internal solo
// counters of every track from the solo flags.
func (g *Graph) updateSolo() {
	p := &g.solo
	p.reset(len(g.tracks))
	for i, s := range g.tracks {
		if !s.Solo {
			continue
		}
		p.visiting[i] = true
		p.ref[i]++
		for _, inputs := range s.variant.chains() {
			s.variant.soloDeps(p, s, inputs)
		}
		p.visiting[i] = false
	}
	total := 0
	for i, t := range g.tracks {
		t.SoloRefCount = p.ref[i]
		t.InternalSolo = p.internal[i]
		total += p.ref[i]
	}
	g.soloCount = total
}

// IsMute returns the effective mute state of t: a soloed track, or a track
// kept audible by a solo chain, plays; while anything is soloed every other
// track is silent; otherwise the mute flag decides.
func (g *Graph) IsMute(t *Track) bool {
	if t.Solo || (t.InternalSolo > 0 && !t.Mute) {
		return false
	}
	if g.soloCount > 0 {
		return true
	}
	return t.Mute
}

// SoloCount is the sum of all solo contributions of the last recompute.
// It is non-zero exactly when some track is soloed.
func (g *Graph) SoloCount() int { return g.soloCount }
