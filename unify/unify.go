// Package unify assigns every stop of a GTFS static feed to a group of similar stops.
//
// Stops are grouped, in order of precedence, by parent station, by stop ID prefix and by name and
// distance. All groups are computed when the Unifier is built.
package unify

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jamespfennell/gtfsgo"
	"github.com/tidwall/rtree"
)

// DefaultMaxDistanceDegree is the default distance limit used when grouping stops by name.
const DefaultMaxDistanceDegree = 0.01

type Options struct {
	// Enabled turns unification on. If false every stop is its own group.
	Enabled bool
	// Delimiter splits stop IDs into a prefix and a suffix. Empty disables grouping by prefix.
	// A prefix group takes the name of its delimited member with the smallest stop ID, whatever the
	// order of the stops in the feed.
	Delimiter string
	// MaxDistanceDegree is the Euclidean distance, in degrees of longitude and latitude, within which
	// stops with the same name are grouped.
	MaxDistanceDegree float64
}

// DefaultOptions returns the options used when the caller has no preference.
func DefaultOptions() Options {
	return Options{
		Enabled:           true,
		MaxDistanceDegree: DefaultMaxDistanceDegree,
	}
}

// Group is the group of similar stops a stop belongs to.
type Group struct {
	ID   string
	Name string
	// Centroid is the (longitude, latitude) of the group.
	Centroid [2]float64
	// MemberCount is the number of stops assigned to the group.
	MemberCount int
}

// Key identifies the group by ID and rounded centroid.
func (g *Group) Key() string {
	return g.ID + PositionString(g.Centroid)
}

// PositionString formats a (longitude, latitude) pair with both coordinates rounded to 4 decimal places.
func PositionString(p [2]float64) string {
	return formatCoordinate(p[0]) + formatCoordinate(p[1])
}

func formatCoordinate(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e4)/1e4, 'f', -1, 64)
}

// Unifier holds the group of every stop in a feed.
type Unifier struct {
	static  *gtfs.Static
	options Options
	byID    map[string]*Group
	groups  []*Group
}

// New computes the groups of all stops in the feed.
func New(static *gtfs.Static, options Options) *Unifier {
	u := &Unifier{
		static:  static,
		options: options,
		byID:    map[string]*Group{},
	}
	if options.Enabled {
		newGrouper(static.Stops, options).run(u.byID)
	} else {
		for i := range static.Stops {
			stop := &static.Stops[i]
			u.byID[stop.Id] = &Group{
				ID:       stop.Id,
				Name:     stop.Name,
				Centroid: [2]float64{stop.Longitude, stop.Latitude},
			}
		}
	}
	u.countMembers()
	return u
}

// countMembers shares one Group value between all stops with the same key and sets its member count.
func (u *Unifier) countMembers() {
	byKey := map[string]*Group{}
	for i := range u.static.Stops {
		stopID := u.static.Stops[i].Id
		g := u.byID[stopID]
		key := g.Key()
		shared, ok := byKey[key]
		if !ok {
			shared = g
			byKey[key] = shared
			u.groups = append(u.groups, shared)
		}
		shared.MemberCount++
		u.byID[stopID] = shared
	}
}

// Options returns the options the Unifier was built with.
func (u *Unifier) Options() Options {
	return u.options
}

// Group returns the group of the stop, or nil if no stop has the ID.
func (u *Unifier) Group(stopID string) *Group {
	return u.byID[stopID]
}

// Groups returns the distinct groups, in order of the first stop of each group in the feed.
func (u *Unifier) Groups() []*Group {
	return u.groups
}

type grouper struct {
	stops     []*gtfs.Stop
	isParent  map[string]bool
	delimiter string
	distance  float64

	// Populated only when a delimiter is set.
	prefixCentroids map[string][2]float64
	prefixNames     map[string]string

	all         *population
	undelimited *population
}

// population is a set of stops searched when grouping by name and distance.
type population struct {
	tree rtree.RTree
}

func newGrouper(stops []gtfs.Stop, options Options) *grouper {
	g := &grouper{
		isParent:  map[string]bool{},
		delimiter: options.Delimiter,
		distance:  options.MaxDistanceDegree,
	}
	for i := range stops {
		g.stops = append(g.stops, &stops[i])
		if stops[i].Parent != nil {
			g.isParent[stops[i].Parent.Id] = true
		}
	}
	sort.SliceStable(g.stops, func(i, j int) bool {
		return g.stops[i].Id < g.stops[j].Id
	})
	g.all = &population{}
	for _, stop := range g.stops {
		g.all.insert(stop)
	}
	if g.delimiter != "" {
		g.buildPrefixes()
	}
	return g
}

func (g *grouper) buildPrefixes() {
	type sum struct {
		lon, lat float64
		n        int
	}
	sums := map[string]*sum{}
	var prefixes []string
	g.prefixNames = map[string]string{}
	g.undelimited = &population{}
	for _, stop := range g.stops {
		prefix, delimited := g.prefix(stop.Id)
		s, ok := sums[prefix]
		if !ok {
			s = &sum{}
			sums[prefix] = s
			prefixes = append(prefixes, prefix)
		}
		s.lon += stop.Longitude
		s.lat += stop.Latitude
		s.n++
		if !delimited {
			g.undelimited.insert(stop)
			continue
		}
		if _, ok := g.prefixNames[prefix]; !ok {
			g.prefixNames[prefix] = stop.Name
		}
	}
	g.prefixCentroids = map[string][2]float64{}
	for _, prefix := range prefixes {
		s := sums[prefix]
		g.prefixCentroids[prefix] = [2]float64{s.lon / float64(s.n), s.lat / float64(s.n)}
	}
}

// prefix returns the part of the stop ID before the last delimiter and whether the ID contains the delimiter.
func (g *grouper) prefix(stopID string) (string, bool) {
	i := strings.LastIndex(stopID, g.delimiter)
	if i < 0 {
		return stopID, false
	}
	return stopID[:i], true
}

func (g *grouper) run(byID map[string]*Group) {
	for _, stop := range g.stops {
		byID[stop.Id] = g.group(stop)
	}
}

func (g *grouper) group(stop *gtfs.Stop) *Group {
	if g.isParent[stop.Id] {
		return &Group{
			ID:       stop.Id,
			Name:     stop.Name,
			Centroid: [2]float64{stop.Longitude, stop.Latitude},
		}
	}
	if parent := stop.Parent; parent != nil {
		return &Group{
			ID:       parent.Id,
			Name:     parent.Name,
			Centroid: [2]float64{parent.Longitude, parent.Latitude},
		}
	}
	candidates := g.all
	if g.delimiter != "" {
		if prefix, delimited := g.prefix(stop.Id); delimited {
			return &Group{
				ID:       prefix,
				Name:     g.prefixNames[prefix],
				Centroid: g.prefixCentroids[prefix],
			}
		}
		candidates = g.undelimited
	}
	return g.nameAndDistance(stop, candidates)
}

// nameAndDistance groups the stop with the stops of the population that have the same name and lie
// strictly within the distance limit.
func (g *grouper) nameAndDistance(stop *gtfs.Stop, candidates *population) *Group {
	d2 := g.distance * g.distance
	members := []*gtfs.Stop{stop}
	candidates.search(stop, g.distance, func(other *gtfs.Stop) {
		if other == stop || other.Name != stop.Name {
			return
		}
		dx := other.Longitude - stop.Longitude
		dy := other.Latitude - stop.Latitude
		if dx*dx+dy*dy < d2 {
			members = append(members, other)
		}
	})
	sort.Slice(members, func(i, j int) bool {
		return members[i].Id < members[j].Id
	})
	var lon, lat float64
	for _, member := range members {
		lon += member.Longitude
		lat += member.Latitude
	}
	n := float64(len(members))
	return &Group{
		ID:       members[0].Id,
		Name:     stop.Name,
		Centroid: [2]float64{lon / n, lat / n},
	}
}

func (p *population) insert(stop *gtfs.Stop) {
	point := [2]float64{stop.Longitude, stop.Latitude}
	p.tree.Insert(point, point, stop)
}

func (p *population) search(stop *gtfs.Stop, distance float64, f func(*gtfs.Stop)) {
	min := [2]float64{stop.Longitude - distance, stop.Latitude - distance}
	max := [2]float64{stop.Longitude + distance, stop.Latitude + distance}
	p.tree.Search(min, max, func(_, _ [2]float64, data interface{}) bool {
		f(data.(*gtfs.Stop))
		return true
	})
}
