package knowledge

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedEntry is one item of initial knowledge.
type SeedEntry struct {
	Content  string   `yaml:"content" json:"content"`
	Category string   `yaml:"category" json:"category"`
	Tags     []string `yaml:"tags" json:"tags"`
}

func (e SeedEntry) metadata() map[string]any {
	tags := make([]any, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = t
	}
	return map[string]any{
		"source":   "seed",
		"category": e.Category,
		"tags":     tags,
	}
}

// BuiltinSeed is the knowledge loaded into an empty base.
func BuiltinSeed() []SeedEntry {
	return []SeedEntry{
		{
			Content:  "Slow service responses are usually caused by: 1. slow database queries 2. external API calls timing out 3. insufficient memory 4. high CPU usage",
			Category: "performance",
			Tags:     []string{"response time", "performance", "database", "api"},
		},
		{
			Content:  "Troubleshooting out-of-memory errors: 1. check JVM heap usage 2. analyze GC logs 3. use a memory analysis tool 4. look for memory leaks",
			Category: "memory",
			Tags:     []string{"out of memory", "JVM", "GC", "memory leak"},
		},
		{
			Content:  "Fixing an exhausted database connection pool: 1. check that connections are released 2. adjust the pool size 3. optimize SQL queries 4. look for slow queries",
			Category: "database",
			Tags:     []string{"connection pool", "database", "SQL", "slow query"},
		},
		{
			Content:  "Redis connection timeouts are usually caused by network latency, high load on the Redis server, or a misconfigured connection pool",
			Category: "redis",
			Tags:     []string{"Redis", "connection timeout", "network"},
		},
	}
}

type seedFile struct {
	Entries []SeedEntry `yaml:"entries"`
}

// LoadSeedFile reads seed entries from YAML, either a top-level list or a
// mapping with an "entries" key.
func LoadSeedFile(path string) ([]SeedEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var list []SeedEntry
	if err := yaml.Unmarshal(raw, &list); err != nil {
		var wrapped seedFile
		if err2 := yaml.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("parse seed file: %w", err2)
		}
		list = wrapped.Entries
	}

	out := list[:0]
	for _, e := range list {
		if e.Content != "" {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("seed file %s has no entries", path)
	}
	return out, nil
}
