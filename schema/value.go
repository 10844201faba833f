package schema

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tidbyt.dev/gtfsdb/errs"
)

// Value is the coerced result of parsing one CSV field according to
// its SemanticType. Exactly one of the typed accessors is meaningful,
// selected by the Field's SemanticType. Raw carries the field's string
// form: the input as given for id and text fields, trimmed for the
// other types, upper-cased for colors and zero-padded HH:MM:SS for
// times. The loader uses it as the entity id in error records.
type Value struct {
	Raw     string
	Str     string
	Int     int
	Float   float64
	OptInt  OptionalInt
	Present bool
}

// OptionalInt mirrors model.OptionalInt; schema is deliberately free
// of a model dependency so field coercion has no import cycle back to
// the entity types it populates.
type OptionalInt struct {
	Value int
	Valid bool
}

func StrValue(s string) Value { return Value{Raw: s, Str: s, Present: s != ""} }

// SemanticType names one of the field kinds spec.md §3 lists for a
// Field descriptor. Parse maps each to its coercion rule below.
type SemanticType string

const (
	TypeID         SemanticType = "id"
	TypeText       SemanticType = "text"
	TypeEnum       SemanticType = "enum"
	TypeInt        SemanticType = "integer"
	TypeOptionalInt SemanticType = "optional_integer"
	TypeFloat      SemanticType = "float"
	TypeLatitude   SemanticType = "latitude"
	TypeLongitude  SemanticType = "longitude"
	TypeColor      SemanticType = "color"
	TypeCurrency   SemanticType = "currency_code"
	TypeLanguage   SemanticType = "language_code"
	TypeTimezone   SemanticType = "timezone"
	TypeURL        SemanticType = "url"
	TypeEmail      SemanticType = "email"
	TypePhone      SemanticType = "phone_number"
	TypeDate       SemanticType = "date"
	TypeTime       SemanticType = "time_of_day"
	TypeList       SemanticType = "list_of_strings"
)

// ParseResult is what a coercion function returns: either a Value, or
// a Kind describing why the raw string could not be coerced. Callers
// write NULL for the field and keep processing the row on failure,
// per spec.md §4.4 step 3.
type ParseResult struct {
	Value Value
	Err   errs.Kind
	Msg   string
}

func ok(v Value) ParseResult { return ParseResult{Value: v} }

func fail(k errs.Kind, format string, args ...interface{}) ParseResult {
	return ParseResult{Err: k, Msg: fmt.Sprintf(format, args...)}
}

// Parse dispatches raw to the coercion function for t.
func Parse(t SemanticType, raw string) ParseResult {
	trimmed := strings.TrimSpace(raw)
	switch t {
	case TypeID, TypeText:
		return ok(StrValue(raw))
	case TypeEnum:
		return ok(StrValue(trimmed))
	case TypeInt:
		return parseInt(trimmed)
	case TypeOptionalInt:
		return parseOptionalInt(trimmed)
	case TypeFloat:
		return parseFloat(trimmed)
	case TypeLatitude:
		return parseLatLon(trimmed, -90, 90)
	case TypeLongitude:
		return parseLatLon(trimmed, -180, 180)
	case TypeColor:
		return parseColor(trimmed)
	case TypeCurrency:
		return parseCurrency(trimmed)
	case TypeLanguage:
		return parseLanguage(trimmed)
	case TypeTimezone:
		return parseTimezone(trimmed)
	case TypeURL:
		return parseURL(trimmed)
	case TypeEmail:
		return parseEmail(trimmed)
	case TypePhone:
		return parsePhone(trimmed)
	case TypeDate:
		return parseDate(trimmed)
	case TypeTime:
		return parseTimeOfDay(trimmed)
	case TypeList:
		return ok(StrValue(trimmed))
	default:
		return ok(StrValue(raw))
	}
}

func parseInt(s string) ParseResult {
	if s == "" {
		return fail(errs.KindMissingRequiredField, "empty integer field")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fail(errs.KindInvalidFieldFormat, "%q is not an integer", s)
	}
	return ok(Value{Raw: s, Int: n, Present: true})
}

func parseOptionalInt(s string) ParseResult {
	if s == "" {
		return ok(Value{Raw: s, OptInt: OptionalInt{}, Present: false})
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fail(errs.KindInvalidFieldFormat, "%q is not an integer", s)
	}
	return ok(Value{Raw: s, OptInt: OptionalInt{Value: n, Valid: true}, Present: true})
}

func parseFloat(s string) ParseResult {
	if s == "" {
		return fail(errs.KindMissingRequiredField, "empty float field")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fail(errs.KindInvalidFieldFormat, "%q is not a number", s)
	}
	return ok(Value{Raw: s, Float: f, Present: true})
}

func parseLatLon(s string, min, max float64) ParseResult {
	r := parseFloat(s)
	if r.Err != "" {
		return r
	}
	if r.Value.Float < min || r.Value.Float > max {
		return fail(errs.KindOutOfRange, "%v outside [%v, %v]", r.Value.Float, min, max)
	}
	return r
}

var hexColorRE = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

func parseColor(s string) ParseResult {
	if s == "" {
		return ok(StrValue(""))
	}
	if !hexColorRE.MatchString(s) {
		return fail(errs.KindInvalidColor, "%q is not a 6 digit hex color", s)
	}
	return ok(StrValue(strings.ToUpper(s)))
}

var currencyRE = regexp.MustCompile(`^[A-Z]{3}$`)

func parseCurrency(s string) ParseResult {
	if !currencyRE.MatchString(s) {
		return fail(errs.KindInvalidCurrency, "%q is not a 3 letter ISO 4217 code", s)
	}
	return ok(StrValue(s))
}

func parseLanguage(s string) ParseResult {
	if s == "" {
		return ok(StrValue(""))
	}
	if len(s) < 2 || len(s) > 35 {
		return fail(errs.KindInvalidLanguageCode, "%q is not a plausible BCP-47 tag", s)
	}
	return ok(StrValue(s))
}

func parseTimezone(s string) ParseResult {
	if s == "" {
		return ok(StrValue(""))
	}
	if _, err := time.LoadLocation(s); err != nil {
		return fail(errs.KindInvalidTimezone, "%q: %s", s, err)
	}
	return ok(StrValue(s))
}

func parseURL(s string) ParseResult {
	if s == "" {
		return ok(StrValue(""))
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fail(errs.KindInvalidURL, "%q is not an absolute URL", s)
	}
	return ok(StrValue(s))
}

func parseEmail(s string) ParseResult {
	if s == "" {
		return ok(StrValue(""))
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fail(errs.KindInvalidEmail, "%q: %s", s, err)
	}
	return ok(StrValue(s))
}

var phoneRE = regexp.MustCompile(`^[0-9+().\-\s]{3,20}$`)

func parsePhone(s string) ParseResult {
	if s == "" {
		return ok(StrValue(""))
	}
	if !phoneRE.MatchString(s) {
		return fail(errs.KindInvalidPhoneNumber, "%q does not look like a phone number", s)
	}
	return ok(StrValue(s))
}

func parseDate(s string) ParseResult {
	if len(s) != 8 {
		return fail(errs.KindInvalidDateFormat, "%q is not YYYYMMDD", s)
	}
	if _, err := time.Parse("20060102", s); err != nil {
		return fail(errs.KindInvalidDateFormat, "%q: %s", s, err)
	}
	return ok(StrValue(s))
}

// parseTimeOfDay accepts three colon-separated integer parts with any
// number of digits each (hours may exceed 24, which is valid GTFS for
// service past midnight) and normalizes to zero-padded HH:MM:SS.
func parseTimeOfDay(s string) ParseResult {
	if s == "" {
		return ok(Value{Present: false})
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return fail(errs.KindInvalidTimeFormat, "%q is not HH:MM:SS", s)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	sec, errS := strconv.Atoi(parts[2])
	if errH != nil || errM != nil || errS != nil || m < 0 || m > 59 || sec < 0 || sec > 59 || h < 0 {
		return fail(errs.KindInvalidTimeFormat, "%q is not a valid time of day", s)
	}
	return ok(Value{Raw: fmt.Sprintf("%02d:%02d:%02d", h, m, sec), Str: fmt.Sprintf("%02d:%02d:%02d", h, m, sec), Present: true})
}
