package domain

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Activity is a single line item of the build-out plan.
type Activity struct {
	ID          string  `json:"id" yaml:"id"`
	Category    string  `json:"category" yaml:"category"`
	Name        string  `json:"name" yaml:"name"`
	Provider    string  `json:"provider" yaml:"provider"`
	Responsible string  `json:"responsible" yaml:"responsible"`
	Status      Status  `json:"status" yaml:"status"`
	Progress    int     `json:"progress" yaml:"progress"`
	Cost        float64 `json:"cost" yaml:"cost"`
	StartDate   string  `json:"start_date" yaml:"start_date"`
	EndDate     string  `json:"end_date" yaml:"end_date"`
}

// Status is the closed set of execution states an activity can be in.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Label returns the display label shown to site managers.
func (s Status) Label() string {
	switch s {
	case StatusInProgress:
		return "En proceso"
	case StatusCompleted:
		return "Realizada"
	default:
		return "Por hacer"
	}
}

var (
	inProgressKeywords = []string{"proceso", "progress"}
	completedKeywords  = []string{"realizada", "completada", "completed"}
)

// ClassifyStatus maps free status text onto a Status. In-progress keywords are
// checked before completion keywords; anything unrecognised is pending.
func ClassifyStatus(text string) Status {
	lower := strings.ToLower(text)
	if containsAny(lower, inProgressKeywords) {
		return StatusInProgress
	}
	if containsAny(lower, completedKeywords) {
		return StatusCompleted
	}
	return StatusPending
}

func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

// CompareIDs orders dotted identifiers numerically segment by segment, so
// "3.2" < "10.1" and "2" < "2.1". Missing or non-numeric segments count as 0.
func CompareIDs(a, b string) int {
	partsA := strings.Split(a, ".")
	partsB := strings.Split(b, ".")

	n := max(len(partsA), len(partsB))
	for i := 0; i < n; i++ {
		if c := cmp.Compare(segment(partsA, i), segment(partsB, i)); c != 0 {
			return c
		}
	}
	return 0
}

func segment(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return v
}

// Dedupe keeps one record per non-empty id. The last occurrence supplies the
// value while the first occurrence fixes the position in the output.
func Dedupe(activities []Activity) []Activity {
	index := make(map[string]int, len(activities))
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if a.ID == "" {
			continue
		}
		if pos, ok := index[a.ID]; ok {
			out[pos] = a
			continue
		}
		index[a.ID] = len(out)
		out = append(out, a)
	}
	return out
}

// Categories returns the distinct categories of the set in ascending order.
func Categories(activities []Activity) []string {
	seen := make(map[string]struct{}, len(activities))
	out := make([]string, 0)
	for _, a := range activities {
		if _, ok := seen[a.Category]; ok {
			continue
		}
		seen[a.Category] = struct{}{}
		out = append(out, a.Category)
	}
	slices.Sort(out)
	return out
}
