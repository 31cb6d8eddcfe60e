// Package canonical maps free-form authoring tokens onto the canonical
// identifiers the generation pipeline understands. The dictionaries are
// build artifacts; this package only resolves against them.
package canonical

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	sharederrors "github.com/jqsirls/character-canary/pkg/shared/errors"
)

// Domain names, matching the pipeline's trait taxonomy.
const (
	DomainSpecies           = "species"
	DomainGenders           = "genders"
	DomainEthnicities       = "ethnicities"
	DomainLanguages         = "languages"
	DomainPersonalityTraits = "personalityTraits"
	DomainAgeBuckets        = "ageBuckets"
	DomainInclusivityTraits = "inclusivityTraits"
)

// Entry is one canonical value with its display label and accepted aliases.
type Entry struct {
	Key     string   `yaml:"key"`
	Label   string   `yaml:"label"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Resolution is the outcome of a successful token resolution.
type Resolution struct {
	Value   string
	IsAlias bool
}

// Dictionary resolves tokens within domains. Implementations include the
// compiled-in dictionary and the YAML file loader.
type Dictionary interface {
	Resolve(domain, token string) (Resolution, bool)
	Closest(domain, token string, k int) []string
	Enumerate(domain string) []Entry
	Domains() []string
}

type indexEntry struct {
	key     string
	isAlias bool
}

type dictionary struct {
	domains map[string][]Entry
	index   map[string]map[string]indexEntry
	order   []string
}

// New builds a Dictionary from ordered per-domain entry lists. It rejects
// dictionaries whose keys collide under normalization.
func New(domains map[string][]Entry) (Dictionary, error) {
	d := &dictionary{
		domains: domains,
		index:   make(map[string]map[string]indexEntry, len(domains)),
	}
	for domain := range domains {
		d.order = append(d.order, domain)
	}
	sort.Strings(d.order)

	for domain, entries := range domains {
		idx := make(map[string]indexEntry)
		for _, entry := range entries {
			normalizedKey := Normalize(entry.Key)
			if normalizedKey == "" {
				return nil, sharederrors.ValidationError(domain, fmt.Sprintf("entry %q normalizes to nothing", entry.Key))
			}
			if existing, ok := idx[normalizedKey]; ok && !existing.isAlias {
				return nil, sharederrors.ValidationError(domain,
					fmt.Sprintf("keys %q and %q collide under normalization", existing.key, entry.Key))
			}
			idx[normalizedKey] = indexEntry{key: entry.Key}
			for _, alias := range entry.Aliases {
				normalizedAlias := Normalize(alias)
				if normalizedAlias == "" || normalizedAlias == normalizedKey {
					continue
				}
				if _, ok := idx[normalizedAlias]; ok {
					continue
				}
				idx[normalizedAlias] = indexEntry{key: entry.Key, isAlias: true}
			}
		}
		d.index[domain] = idx
	}
	return d, nil
}

// MustNew builds a Dictionary or panics; used for the compiled-in data.
func MustNew(domains map[string][]Entry) Dictionary {
	d, err := New(domains)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *dictionary) Resolve(domain, token string) (Resolution, bool) {
	idx, ok := d.index[domain]
	if !ok {
		return Resolution{}, false
	}
	entry, ok := idx[Normalize(token)]
	if !ok {
		return Resolution{}, false
	}
	return Resolution{Value: entry.key, IsAlias: entry.isAlias}, true
}

func (d *dictionary) Closest(domain, token string, k int) []string {
	entries, ok := d.domains[domain]
	if !ok || k <= 0 {
		return nil
	}
	normalized := Normalize(token)

	type candidate struct {
		key      string
		distance int
		position int
	}
	candidates := make([]candidate, 0, len(entries))
	for i, entry := range entries {
		candidates = append(candidates, candidate{
			key:      entry.Key,
			distance: levenshtein(normalized, Normalize(entry.Key)),
			position: i,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].position < candidates[j].position
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	keys := make([]string, k)
	for i := 0; i < k; i++ {
		keys[i] = candidates[i].key
	}
	return keys
}

func (d *dictionary) Enumerate(domain string) []Entry {
	entries := d.domains[domain]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

func (d *dictionary) Domains() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// LoadFile reads a dictionary from a YAML build artifact of the form
// domain -> entry list.
func LoadFile(path string) (Dictionary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, sharederrors.FailedTo("read dictionary file", err)
	}
	var domains map[string][]Entry
	if err := yaml.Unmarshal(raw, &domains); err != nil {
		return nil, sharederrors.ParseError("dictionary file", "YAML", err)
	}
	return New(domains)
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
