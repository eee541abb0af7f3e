package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/sitetracker/internal/domain"
)

// Column positions of the activity sheet.
const (
	colID = iota
	colCategory
	colName
	colProvider
	colResponsible
	colStatus
	colProgress
	colCost
	colStartDate
	colEndDate
)

const minFields = 3

// Profile holds the fallbacks applied to empty fields for one kind of source.
type Profile struct {
	Source          string
	DefaultCategory string
	DefaultName     string
	// DatesDefaultToday fills empty start/end dates with the current date.
	DatesDefaultToday bool
	// SynthesizeID replaces an empty id with a short random token.
	SynthesizeID bool
}

var (
	// FeedProfile is used for the published spreadsheet and the row stream.
	FeedProfile = Profile{Source: "feed"}
	// FileProfile is used for files uploaded by site managers.
	FileProfile = Profile{
		Source:            "file",
		DefaultCategory:   "Importado",
		DefaultName:       "Sin Nombre",
		DatesDefaultToday: true,
		SynthesizeID:      true,
	}
)

// Coercer maps parsed fields onto activities.
type Coercer struct {
	Profile Profile
	Now     func() time.Time
	NewID   func() string
}

// NewCoercer builds a Coercer for p using the wall clock and random ids.
func NewCoercer(p Profile) Coercer {
	return Coercer{Profile: p, Now: time.Now, NewID: ShortID}
}

// ShortID returns a six character lowercase alphanumeric token.
func ShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

var (
	nonDigits   = regexp.MustCompile(`[^0-9]`)
	nonNumeric  = regexp.MustCompile(`[^0-9.\-]`)
	floatPrefix = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// Coerce builds an activity from fields. It reports false when the row has
// fewer than three fields or carries neither an id nor a name.
func (c Coercer) Coerce(fields []string) (domain.Activity, bool) {
	if len(fields) < minFields {
		return domain.Activity{}, false
	}

	id := field(fields, colID)
	if id == "" && c.Profile.SynthesizeID && c.NewID != nil {
		id = c.NewID()
	}

	a := domain.Activity{
		ID:          id,
		Category:    domain.Normalize(orDefault(field(fields, colCategory), c.Profile.DefaultCategory)),
		Name:        domain.Normalize(orDefault(field(fields, colName), c.Profile.DefaultName)),
		Provider:    domain.Normalize(field(fields, colProvider)),
		Responsible: domain.Normalize(field(fields, colResponsible)),
		Status:      domain.ClassifyStatus(field(fields, colStatus)),
		Progress:    ParseProgress(field(fields, colProgress)),
		Cost:        ParseCost(field(fields, colCost)),
		StartDate:   c.date(field(fields, colStartDate)),
		EndDate:     c.date(field(fields, colEndDate)),
	}
	if a.ID == "" && a.Name == "" {
		return domain.Activity{}, false
	}
	return a, true
}

func (c Coercer) date(raw string) string {
	if raw != "" || !c.Profile.DatesDefaultToday {
		return raw
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().UTC().Format(time.DateOnly)
}

// ParseProgress keeps only the digits of raw ("30%" -> 30). Anything
// unparseable is 0.
func ParseProgress(raw string) int {
	digits := nonDigits.ReplaceAllString(raw, "")
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return v
}

// ParseCost keeps digits, dots and minus signs and reads the leading number
// ("$1000" -> 1000). Anything unparseable is 0.
func ParseCost(raw string) float64 {
	cleaned := nonNumeric.ReplaceAllString(raw, "")
	prefix := floatPrefix.FindString(cleaned)
	if prefix == "" {
		return 0
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0
	}
	return v
}

func field(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return fields[i]
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
