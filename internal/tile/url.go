package tile

import (
	"strconv"
	"strings"
)

// DefaultTemplate is the terrain style of Stamen Design, which covers the whole world.
const DefaultTemplate = "http://tile.stamen.com/terrain/{z}/{x}/{y}.png"

// DefaultShards are the subdomains substituted for {s}.
var DefaultShards = []string{"a", "b", "c"}

// Template turns tile coordinates into provider URLs.
//
// Pattern placeholders {x}, {y}, {z} and {s} are replaced literally; {s} is
// the shard (usually a subdomain) chosen from Shards by (x+y) mod len(Shards).
type Template struct {
	Pattern string
	Shards  []string
}

// NewTemplate returns a template using DefaultShards.
func NewTemplate(pattern string) Template {
	return Template{Pattern: pattern, Shards: DefaultShards}
}

// ShardIndex returns the index into a set of shardCount shards for tile c.
// The result is always in [0, shardCount), including for tiles outside the grid.
func ShardIndex(c Coords, shardCount int) int {
	if shardCount <= 0 {
		return 0
	}
	i := (c.X + c.Y) % shardCount
	if i < 0 {
		i += shardCount
	}
	return i
}

// Shard returns the shard label for tile c, or "" when no shards are configured.
func (t Template) Shard(c Coords) string {
	if len(t.Shards) == 0 {
		return ""
	}
	return t.Shards[ShardIndex(c, len(t.Shards))]
}

// URL returns the fetch URL for tile c.
func (t Template) URL(c Coords) string {
	r := strings.NewReplacer(
		"{x}", strconv.Itoa(c.X),
		"{y}", strconv.Itoa(c.Y),
		"{z}", strconv.Itoa(c.Z),
		"{s}", t.Shard(c),
	)
	return r.Replace(t.Pattern)
}
