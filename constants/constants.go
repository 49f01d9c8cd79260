package constants

type StaticFile string

const (
	AgencyFile         StaticFile = "agency.txt"
	AttributionsFile   StaticFile = "attributions.txt"
	CalendarFile       StaticFile = "calendar.txt"
	CalendarDatesFile  StaticFile = "calendar_dates.txt"
	FareAttributesFile StaticFile = "fare_attributes.txt"
	FareRulesFile      StaticFile = "fare_rules.txt"
	FeedInfoFile       StaticFile = "feed_info.txt"
	FrequenciesFile    StaticFile = "frequencies.txt"
	LevelsFile         StaticFile = "levels.txt"
	PathwaysFile       StaticFile = "pathways.txt"
	RoutesFile         StaticFile = "routes.txt"
	ShapesFile         StaticFile = "shapes.txt"
	StopTimesFile      StaticFile = "stop_times.txt"
	StopsFile          StaticFile = "stops.txt"
	TransfersFile      StaticFile = "transfers.txt"
	TranslationsFile   StaticFile = "translations.txt"
	TripsFile          StaticFile = "trips.txt"
)

// Required tables must be present and non-empty for a feed to be loaded.
var Required = []StaticFile{
	AgencyFile,
	CalendarFile,
	RoutesFile,
	StopTimesFile,
	StopsFile,
	TripsFile,
}

var known = map[StaticFile]bool{
	AgencyFile:         true,
	AttributionsFile:   true,
	CalendarFile:       true,
	CalendarDatesFile:  true,
	FareAttributesFile: true,
	FareRulesFile:      true,
	FeedInfoFile:       true,
	FrequenciesFile:    true,
	LevelsFile:         true,
	PathwaysFile:       true,
	RoutesFile:         true,
	ShapesFile:         true,
	StopTimesFile:      true,
	StopsFile:          true,
	TransfersFile:      true,
	TranslationsFile:   true,
	TripsFile:          true,
}

// IsKnown reports whether the file name is part of the GTFS static table set.
func IsKnown(f StaticFile) bool {
	return known[f]
}
