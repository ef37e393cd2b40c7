package metrics

import (
	"context"
	"testing"
	"time"

	"devlens/internal/model"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func node(total float64, updates int, children ...*model.Node) *model.Node {
	return &model.Node{Metrics: &model.Metrics{Total: total, Updates: updates}, Children: children}
}

func TestCountNodes(t *testing.T) {
	forest := []*model.Node{node(0, 0, node(0, 0), node(0, 0, node(0, 0))), node(0, 0)}
	assert.Equal(t, 5, CountNodes(forest))
	assert.Equal(t, 0, CountNodes(nil))
}

func TestAggregateRenderAverage(t *testing.T) {
	forest := []*model.Node{node(10, 2, node(5, 3)), node(100, 0)}
	avg, ok := AggregateRenderAverage(forest)
	assert.True(t, ok)
	assert.InDelta(t, 3.0, avg, 1e-9)
}

func TestAggregateRenderAverageUnavailable(t *testing.T) {
	_, ok := AggregateRenderAverage([]*model.Node{node(7, 0), {Kind: "x"}})
	assert.False(t, ok)
	_, ok = AggregateRenderAverage(nil)
	assert.False(t, ok)
}

func TestAggregateRenderAverageProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		var forest []*model.Node
		var total float64
		var updates int
		for i := 0; i < n; i++ {
			tot := rapid.Float64Range(0, 1000).Draw(t, "total")
			up := rapid.IntRange(0, 5).Draw(t, "updates")
			forest = append(forest, node(tot, up))
			if up > 0 {
				total += tot
				updates += up
			}
		}
		avg, ok := AggregateRenderAverage(forest)
		if updates == 0 {
			if ok {
				t.Fatalf("expected unavailable")
			}
			return
		}
		if !ok || avg != total/float64(updates) {
			t.Fatalf("avg %v ok %v, want %v", avg, ok, total/float64(updates))
		}
	})
}

func TestFormatMillis(t *testing.T) {
	assert.Equal(t, "150 ms", FormatMillis(150))
	assert.Equal(t, "100 ms", FormatMillis(100))
	assert.Equal(t, "99.50 ms", FormatMillis(99.5))
	assert.Equal(t, "0.12 ms", FormatMillis(0.123))
}

func TestSampleMemoryFirstSuccessWins(t *testing.T) {
	failing := Probe{Name: SourceExpvar, Read: func(context.Context) (float64, bool) { return 0, false }}
	fixed := Probe{Name: SourceHeap, Read: func(context.Context) (float64, bool) { return 12.5, true }}
	never := Probe{Name: "other", Read: func(context.Context) (float64, bool) {
		panic("must not be called")
	}}

	s, ok := SampleMemory(context.Background(), failing, fixed, never)
	assert.True(t, ok)
	assert.Equal(t, Sample{MB: 12.5, Source: SourceHeap}, s)

	_, ok = SampleMemory(context.Background(), failing)
	assert.False(t, ok)
}

func TestHeapProbe(t *testing.T) {
	mb, ok := HeapProbe().Read(context.Background())
	assert.True(t, ok)
	assert.Greater(t, mb, 0.0)
}

func TestKPI(t *testing.T) {
	var k KPI
	assert.Equal(t, "—", k.FPSText())
	assert.Equal(t, "—", k.MemText())
	assert.Equal(t, "—", k.RenderText())

	start := time.Unix(0, 0)
	k.Frame(start)
	for i := 1; i <= 60; i++ {
		k.Frame(start.Add(time.Duration(i) * time.Second / 60))
	}
	assert.True(t, k.HasFPS)
	assert.Equal(t, "60", k.FPSText())

	k.SetMemory(Sample{MB: 12.34, Source: SourceExpvar}, true)
	k.SetMemory(Sample{}, false)
	assert.Equal(t, "12.3 MB (expvar)", k.MemText())

	k.SetTree([]*model.Node{node(10, 2, node(0, 0))})
	assert.Equal(t, 2, k.Nodes)
	assert.Equal(t, "5.00 ms", k.RenderText())

	render := 250.0
	k.Feed(Fed{Render: &render})
	k.SetTree([]*model.Node{node(10, 2)})
	assert.Equal(t, "250 ms", k.RenderText())

	k.Reset()
	assert.False(t, k.HasMem)
}

func TestNodesText(t *testing.T) {
	k := KPI{Nodes: 12345}
	assert.Equal(t, "12,345", k.NodesText())
}
