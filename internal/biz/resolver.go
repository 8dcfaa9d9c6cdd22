package biz

import (
	"sort"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "InstantMBTA/pkg/errors"
)

// Kind selects which alias table a lookup goes through.
type Kind string

const (
	KindStation Kind = "station"
	KindRoute   Kind = "route"
)

// Alias binds one canonical identifier to the friendly names that resolve to
// it. Tables are immutable after construction.
type Alias struct {
	ID    string
	Names []string
	// Abbrev is the short display form for routes ("OL", "RL", ...).
	Abbrev string
}

// aliasEntry is a resolved table slot. Ambiguous aliases keep every candidate
// so resolution can fail with the full list instead of guessing.
type aliasEntry struct {
	id         string
	candidates []string
}

const resolverCacheSize = 256

// NameResolver maps friendly station/route names onto canonical identifiers.
// Resolution is pure over the tables handed to the constructor; a small LRU
// caches normalized lookups since the same handful of names resolves every
// cycle.
type NameResolver struct {
	stations map[string]aliasEntry
	routes   map[string]aliasEntry
	abbrevs  map[string]string
	cache    *lru.Cache[string, string]
	logger   *log.Helper
}

// NewNameResolver builds a resolver from explicit alias tables.
func NewNameResolver(stations, routes []Alias, logger log.Logger) *NameResolver {
	cache, _ := lru.New[string, string](resolverCacheSize)
	r := &NameResolver{
		stations: make(map[string]aliasEntry),
		routes:   make(map[string]aliasEntry),
		abbrevs:  make(map[string]string),
		cache:    cache,
		logger:   log.NewHelper(logger),
	}
	for _, a := range stations {
		for _, name := range a.Names {
			r.index(r.stations, normalizeStation(name), a.ID)
		}
	}
	for _, a := range routes {
		for _, name := range a.Names {
			r.index(r.routes, normalizeRoute(name), a.ID)
		}
		if a.Abbrev != "" {
			r.abbrevs[a.ID] = a.Abbrev
		}
	}
	return r
}

func (r *NameResolver) index(table map[string]aliasEntry, key, id string) {
	entry, ok := table[key]
	if !ok {
		table[key] = aliasEntry{id: id, candidates: []string{id}}
		return
	}
	for _, c := range entry.candidates {
		if c == id {
			return
		}
	}
	entry.candidates = append(entry.candidates, id)
	sort.Strings(entry.candidates)
	table[key] = entry
}

// Resolve maps a friendly name to its canonical identifier. Names that are
// already canonical pass through unchanged. An alias shared by more than one
// identifier fails rather than guessing.
func (r *NameResolver) Resolve(kind Kind, friendly string) (string, error) {
	cacheKey := string(kind) + "\x00" + friendly
	if id, ok := r.cache.Get(cacheKey); ok {
		return id, nil
	}

	id, err := r.resolve(kind, friendly)
	if err != nil {
		return "", err
	}
	r.logger.Debugw("name resolved", "kind", kind, "name", friendly, "id", id)
	r.cache.Add(cacheKey, id)
	return id, nil
}

func (r *NameResolver) resolve(kind Kind, friendly string) (string, error) {
	var (
		table map[string]aliasEntry
		key   string
	)
	switch kind {
	case KindStation:
		if isCanonicalStation(friendly) {
			return friendly, nil
		}
		table = r.stations
		key = normalizeStation(friendly)
	case KindRoute:
		if isCanonicalRoute(friendly) {
			return friendly, nil
		}
		table = r.routes
		key = normalizeRoute(friendly)
	default:
		return "", &apperrors.NameResolutionError{Kind: string(kind), Name: friendly}
	}

	entry, ok := table[key]
	if !ok {
		return "", &apperrors.NameResolutionError{Kind: string(kind), Name: friendly}
	}
	if len(entry.candidates) > 1 {
		return "", &apperrors.NameResolutionError{Kind: string(kind), Name: friendly, Candidates: entry.candidates}
	}
	return entry.id, nil
}

// Abbreviate returns the short display form for a canonical route id,
// falling back to the given label when no abbreviation is known.
func (r *NameResolver) Abbreviate(routeID, label string) string {
	if abbrev, ok := r.abbrevs[routeID]; ok {
		return abbrev
	}
	if strings.HasPrefix(routeID, "CR-") {
		return "CR"
	}
	return label
}

// normalizeStation lowercases, trims, and collapses inner whitespace.
func normalizeStation(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// normalizeRoute additionally strips a trailing "line", so "Orange Line",
// "orange line" and "Orange" all land on the same key.
func normalizeRoute(s string) string {
	key := normalizeStation(s)
	key = strings.TrimSuffix(key, " line")
	return key
}

func isCanonicalStation(s string) bool {
	return strings.HasPrefix(s, "place-")
}

func isCanonicalRoute(s string) bool {
	switch s {
	case "Orange", "Red", "Blue", "Mattapan":
		return true
	}
	return strings.HasPrefix(s, "Green-") || strings.HasPrefix(s, "CR-")
}

// DefaultStations is the subway station alias table the hardware display
// ships with (Orange and Red line stations).
func DefaultStations() []Alias {
	return []Alias{
		{ID: "place-ogmnl", Names: []string{"Oak Grove"}},
		{ID: "place-mlmnl", Names: []string{"Malden Center", "Malden"}},
		{ID: "place-welln", Names: []string{"Wellington"}},
		{ID: "place-sull", Names: []string{"Sullivan Square", "Sullivan"}},
		{ID: "place-ccmnl", Names: []string{"Community College"}},
		{ID: "place-north", Names: []string{"North Station"}},
		{ID: "place-haecl", Names: []string{"Haymarket"}},
		{ID: "place-state", Names: []string{"State Street", "State"}},
		{ID: "place-dwnxg", Names: []string{"Downtown Crossing"}},
		{ID: "place-chncl", Names: []string{"Chinatown"}},
		{ID: "place-tumnl", Names: []string{"Tufts Medical Center"}},
		{ID: "place-bbsta", Names: []string{"Back Bay"}},
		{ID: "place-masta", Names: []string{"Massachusetts Avenue", "Mass Ave"}},
		{ID: "place-rugg", Names: []string{"Ruggles"}},
		{ID: "place-rcmnl", Names: []string{"Roxbury Crossing"}},
		{ID: "place-jaksn", Names: []string{"Jackson Square"}},
		{ID: "place-sbmnl", Names: []string{"Stony Brook"}},
		{ID: "place-grnst", Names: []string{"Green Street"}},
		{ID: "place-forhl", Names: []string{"Forest Hills"}},
		{ID: "place-cntsq", Names: []string{"Central Square", "Central"}},
		{ID: "place-harsq", Names: []string{"Harvard Square", "Harvard"}},
		{ID: "place-portr", Names: []string{"Porter Square", "Porter"}},
		{ID: "place-davis", Names: []string{"Davis"}},
		{ID: "place-alfcl", Names: []string{"Alewife"}},
		{ID: "place-knncl", Names: []string{"Kendall/MIT"}},
		{ID: "place-chmnl", Names: []string{"Charles/MGH"}},
		{ID: "place-pktrm", Names: []string{"Park Street"}},
		{ID: "place-sstat", Names: []string{"South Station"}},
		{ID: "place-brdwy", Names: []string{"Broadway"}},
		{ID: "place-andrw", Names: []string{"Andrew"}},
		{ID: "place-jfkum", Names: []string{"JFK/UMass", "JFK"}},
		{ID: "place-asmnl", Names: []string{"Ashmont"}},
		{ID: "place-brntn", Names: []string{"Braintree"}},
	}
}

// DefaultRoutes is the route alias table: subway lines plus the commuter
// rail lines the display supports. Route normalization strips a trailing
// "Line", so "Orange Line" and "Orange" share one entry.
func DefaultRoutes() []Alias {
	return []Alias{
		{ID: "Orange", Names: []string{"Orange", "OL"}, Abbrev: "OL"},
		{ID: "Red", Names: []string{"Red", "RL"}, Abbrev: "RL"},
		{ID: "Blue", Names: []string{"Blue", "BL"}, Abbrev: "BL"},
		{ID: "Green-B,Green-C,Green-D,Green-E", Names: []string{"Green", "GL"}, Abbrev: "GL"},
		{ID: "CR-Haverhill", Names: []string{"Haverhill"}, Abbrev: "CR"},
		{ID: "CR-Newburyport", Names: []string{"Newburyport/Rockport"}, Abbrev: "CR"},
		{ID: "CR-Worcester", Names: []string{"Framingham/Worcester"}, Abbrev: "CR"},
		{ID: "CR-Providence", Names: []string{"Providence/Stoughton"}, Abbrev: "CR"},
		{ID: "CR-Franklin", Names: []string{"Franklin/Foxboro"}, Abbrev: "CR"},
	}
}
