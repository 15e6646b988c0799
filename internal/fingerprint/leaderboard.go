package fingerprint

import (
	"sort"
	"strings"

	"github.com/mentionlab/visibility-engine/internal/model"
)

// tally accumulates mention counts and rank positions for one party on
// the leaderboard.
type tally struct {
	name     string
	mentions int
	rankSum  float64
	ranked   int
}

// leaderboardBuilder collects co-mention data across the fan-out and
// produces the final leaderboard.
type leaderboardBuilder struct {
	target  string
	tallies map[string]*tally
}

func newLeaderboardBuilder(target string) *leaderboardBuilder {
	return &leaderboardBuilder{
		target:  target,
		tallies: make(map[string]*tally),
	}
}

// add records one valid result plus the competitor names its answer
// co-mentioned, in ranked order.
func (b *leaderboardBuilder) add(res model.LLMResult, competitors []string) {
	if res.Mentioned {
		t := b.tally(b.target)
		t.mentions++
		if res.RankPosition != nil {
			t.rankSum += float64(*res.RankPosition)
			t.ranked++
		}
	}

	for i, name := range competitors {
		name = strings.TrimSpace(name)
		if name == "" || strings.EqualFold(name, b.target) {
			continue
		}
		t := b.tally(name)
		t.mentions++
		t.rankSum += float64(i + 1)
		t.ranked++
	}
}

func (b *leaderboardBuilder) tally(name string) *tally {
	key := strings.ToLower(name)
	t, ok := b.tallies[key]
	if !ok {
		t = &tally{name: name}
		b.tallies[key] = t
	}
	return t
}

// build ranks all parties by mention count (ties broken by better average
// rank) and assigns each a market share normalized to sum to 100.
func (b *leaderboardBuilder) build() []model.CompetitorRank {
	if len(b.tallies) == 0 {
		return nil
	}

	total := 0
	rows := make([]model.CompetitorRank, 0, len(b.tallies))
	for _, t := range b.tallies {
		row := model.CompetitorRank{
			Name:     t.name,
			Mentions: t.mentions,
			IsTarget: strings.EqualFold(t.name, b.target),
		}
		if t.ranked > 0 {
			avg := t.rankSum / float64(t.ranked)
			row.AvgRank = &avg
		}
		rows = append(rows, row)
		total += t.mentions
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Mentions != rows[j].Mentions {
			return rows[i].Mentions > rows[j].Mentions
		}
		ri, rj := avgOrMax(rows[i].AvgRank), avgOrMax(rows[j].AvgRank)
		if ri != rj {
			return ri < rj
		}
		return rows[i].Name < rows[j].Name
	})

	if total > 0 {
		for i := range rows {
			rows[i].MarketShare = float64(rows[i].Mentions) / float64(total) * 100
		}
	}
	return rows
}

func avgOrMax(r *float64) float64 {
	if r == nil {
		return 1 << 20
	}
	return *r
}
