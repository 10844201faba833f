package model

import (
	"fmt"
	"time"
)

// Holds all external facing types and constants.

type LocationType int

const (
	LocationTypeStop LocationType = iota
	LocationTypeStation
	LocationTypeEntranceExit
	LocationTypeGenericNode
	LocationTypeBoardingArea
)

type RouteType int

const (
	RouteTypeTram       RouteType = 0
	RouteTypeSubway     RouteType = 1
	RouteTypeRail       RouteType = 2
	RouteTypeBus        RouteType = 3
	RouteTypeFerry      RouteType = 4
	RouteTypeCable      RouteType = 5
	RouteTypeAerial     RouteType = 6
	RouteTypeFunicular  RouteType = 7
	RouteTypeTrolleybus RouteType = 11
	RouteTypeMonorail   RouteType = 12
)

type ExceptionType int8

const (
	ExceptionTypeAdded   ExceptionType = 1
	ExceptionTypeRemoved ExceptionType = 2
)

// OptionalInt distinguishes "absent" from "present and zero" for
// integer fields such as shape_dist_traveled, where arithmetic on an
// absent value must itself stay absent instead of silently becoming
// zero.
type OptionalInt struct {
	Value int
	Valid bool
}

func Int(v int) OptionalInt { return OptionalInt{Value: v, Valid: true} }

var Missing = OptionalInt{}

func (o OptionalInt) Add(other OptionalInt) OptionalInt {
	if !o.Valid || !other.Valid {
		return Missing
	}
	return Int(o.Value + other.Value)
}

func (o OptionalInt) Sub(other OptionalInt) OptionalInt {
	if !o.Valid || !other.Valid {
		return Missing
	}
	return Int(o.Value - other.Value)
}

type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
	Lang     string
	Phone    string
	FareURL  string
	Email    string
}

type Calendar struct {
	ServiceID string
	StartDate string
	EndDate   string
	Weekday   int8
}

type CalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType ExceptionType
}

type Stop struct {
	ID                 string
	Code               string
	Name               string
	Desc               string
	Lat                float64
	Lon                float64
	ZoneID             string
	URL                string
	LocationType       LocationType
	ParentStation      string
	Timezone           string
	WheelchairBoarding int
	LevelID            string
	PlatformCode       string
}

type Trip struct {
	ID                   string
	RouteID              string
	ServiceID            string
	Headsign             string
	ShortName            string
	DirectionID          int8
	BlockID              string
	ShapeID              string
	WheelchairAccessible int
	BikesAllowed         int
	PatternID            string
}

type Route struct {
	ID                string
	AgencyID          string
	ShortName         string
	LongName          string
	Desc              string
	Type              RouteType
	URL               string
	Color             string
	TextColor         string
	SortOrder         OptionalInt
	ContinuousPickup  int
	ContinuousDropOff int
	NetworkID         string
}

// StopTime covers both ordinary stop_times.txt rows and GTFS-Flex
// rows, which reference a location_group or location instead of a
// stop and carry a booking window instead of a fixed time.
type StopTime struct {
	TripID                   string
	StopID                   string
	LocationGroupID          string
	LocationID               string
	Headsign                 string
	StopSequence             uint32
	Arrival                  string
	Departure                string
	PickupType               int
	DropOffType              int
	ContinuousPickup         int
	ContinuousDropOff        int
	ShapeDistTraveled        OptionalInt
	Timepoint                int
	StartPickupDropOffWindow string
	EndPickupDropOffWindow   string
	PickupBookingRuleID      string
	DropOffBookingRuleID     string
}

func (st *StopTime) ArrivalTime() time.Duration {
	return parseHMS(st.Arrival)
}

func (st *StopTime) DepartureTime() time.Duration {
	return parseHMS(st.Departure)
}

// parseHMS parses the normalized "HH:MM:SS" (hours may exceed 24 for
// post-midnight service) time of day schema.Parse produces, the same
// format pattern.seconds and validate.hmsToSeconds expect.
func parseHMS(hms string) time.Duration {
	var h, m, s int
	if _, err := fmt.Sscanf(hms, "%d:%d:%d", &h, &m, &s); err != nil {
		return 0
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

type Shape struct {
	ID           string
	Lat          float64
	Lon          float64
	Sequence     uint32
	DistTraveled OptionalInt
}

type Frequency struct {
	TripID      string
	StartTime   string
	EndTime     string
	HeadwaySecs int
	ExactTimes  int
}

type Transfer struct {
	FromStopID      string
	ToStopID        string
	TransferType    int
	MinTransferTime OptionalInt
}

type FareAttribute struct {
	FareID           string
	Price            float64
	CurrencyType     string
	PaymentMethod    int
	Transfers        OptionalInt
	AgencyID         string
	TransferDuration OptionalInt
}

type FareRule struct {
	FareID        string
	RouteID       string
	OriginID      string
	DestinationID string
	ContainsID    string
}

type FeedInfo struct {
	PublisherName string
	PublisherURL  string
	Lang          string
	DefaultLang   string
	StartDate     string
	EndDate       string
	Version       string
	ContactEmail  string
	ContactURL    string
}

type Attribution struct {
	ID           string
	AgencyID     string
	RouteID      string
	TripID       string
	Organization string
	IsProducer   int
	IsOperator   int
	IsAuthority  int
	URL          string
	Email        string
	Phone        string
}

type Translation struct {
	TableName   string
	FieldName   string
	Language    string
	Translation string
	RecordID    string
	RecordSubID string
	FieldValue  string
}

type Area struct {
	ID   string
	Name string
}

type StopArea struct {
	AreaID string
	StopID string
}

type Pathway struct {
	ID                   string
	FromStopID           string
	ToStopID             string
	PathwayMode          int
	IsBidirectional      int
	Length               OptionalInt
	TraversalTime        OptionalInt
	StairCount           OptionalInt
	MaxSlope             OptionalInt
	MinWidth             OptionalInt
	SignpostedAs         string
	ReversedSignpostedAs string
}

type Level struct {
	ID    string
	Index float64
	Name  string
}

type BookingType int

const (
	BookingTypeRealTime  BookingType = 0
	BookingTypeSameDay   BookingType = 1
	BookingTypePriorDays BookingType = 2
)

type BookingRule struct {
	ID                     string
	BookingType            BookingType
	PriorNoticeDurationMin OptionalInt
	PriorNoticeDurationMax OptionalInt
	PriorNoticeLastDay     OptionalInt
	PriorNoticeLastTime    string
	PriorNoticeStartDay    OptionalInt
	PriorNoticeStartTime   string
	PriorNoticeServiceID   string
	Message                string
	PickupMessage          string
	DropOffMessage         string
	PhoneNumber            string
	InfoURL                string
	BookingURL             string
}

type LocationGroup struct {
	ID   string
	Name string
}

type LocationGroupStop struct {
	LocationGroupID string
	StopID          string
}

// Location is one GeoJSON Feature from locations.geojson, identified
// by its "id" property. The geometry itself is kept opaque beyond id
// and name; it round-trips through the backend as a text blob.
type Location struct {
	ID      string
	Name    string
	GeoJSON string
}

// Pattern is the derived (route_id, ordered halt sequence) equivalence
// class assigned by the pattern finder.
type Pattern struct {
	ID             string
	RouteID        string
	Name           string
	AssociatedTrip string
	TripCount      int
}

// HaltKind distinguishes the three kinds of pattern halt: a plain
// stop, a GTFS-Flex location, or a location group / stop area
// reference.
type HaltKind int

const (
	HaltStop HaltKind = iota
	HaltLocation
	HaltStopArea
)

// PatternHalt is one position in a pattern: a pattern_stops,
// pattern_locations or pattern_stop_areas row, carrying the travel and
// dwell times computed relative to the pattern's associated trip.
type PatternHalt struct {
	PatternID         string
	StopSequence      uint32
	Kind              HaltKind
	StopOrLocationID  string
	PickupType        int
	DropOffType       int
	DefaultTravelTime OptionalInt
	DefaultDwellTime  OptionalInt
}

// ServiceDate is one (service_id, date) row materialized by the
// calendar expander.
type ServiceDate struct {
	ServiceID string
	Date      string
}

// ServiceDuration accumulates per-route-type-bucket trip seconds for
// one calendar date.
type ServiceDuration struct {
	Date  string
	Bus   int64
	Tram  int64
	Metro int64
	Rail  int64
	Total int64
}

// Feed is the persisted row describing one loaded namespace.
type Feed struct {
	Namespace  string
	Filename   string
	Checksum   uint32
	LoadedAt   string
	SnapshotOf string
}

// Holds all Headsigns for trips passing through a stop, for a given
// route and direction. Retained from the static query layer and
// reused by the pattern-naming heuristics.
type RouteDirection struct {
	StopID      string
	RouteID     string
	DirectionID int8
	Headsigns   []string
}
