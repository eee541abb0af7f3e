package domain

import (
	"slices"
	"strings"
)

// StatusFilter selects which statuses a view includes.
type StatusFilter string

const (
	FilterAll        StatusFilter = "all"
	FilterPending    StatusFilter = "pending"
	FilterInProgress StatusFilter = "in_progress"
	FilterCompleted  StatusFilter = "completed"
)

// ParseStatusFilter accepts the canonical filter names as well as the labels
// used on the planning board. Unknown values select everything.
func ParseStatusFilter(raw string) StatusFilter {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "por hacer":
		return FilterPending
	case "in_progress", "en proceso":
		return FilterInProgress
	case "completed", "realizadas", "realizada":
		return FilterCompleted
	default:
		return FilterAll
	}
}

func (f StatusFilter) matches(s Status) bool {
	switch f {
	case FilterPending:
		return s == StatusPending
	case FilterInProgress:
		return s == StatusInProgress
	case FilterCompleted:
		return s == StatusCompleted
	default:
		return true
	}
}

// Query carries the inputs of a derived view.
type Query struct {
	Search string
	Filter StatusFilter
}

func (q Query) matches(a Activity, term string) bool {
	if !q.Filter.matches(a.Status) {
		return false
	}
	if term == "" {
		return true
	}
	for _, field := range []string{a.Name, a.Provider, a.Responsible, a.Category} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Group is one category section of a view.
type Group struct {
	Category   string     `json:"category"`
	Activities []Activity `json:"activities"`
}

// BuildView filters the set, orders it by hierarchical id and partitions it
// into category groups. Groups are ordered by the id of their first member.
func BuildView(activities []Activity, q Query) []Group {
	term := strings.ToLower(q.Search)

	matched := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if q.matches(a, term) {
			matched = append(matched, a)
		}
	}
	slices.SortStableFunc(matched, func(a, b Activity) int {
		return CompareIDs(a.ID, b.ID)
	})

	groups := make([]Group, 0)
	index := make(map[string]int)
	for _, a := range matched {
		pos, ok := index[a.Category]
		if !ok {
			pos = len(groups)
			index[a.Category] = pos
			groups = append(groups, Group{Category: a.Category})
		}
		groups[pos].Activities = append(groups[pos].Activities, a)
	}
	slices.SortStableFunc(groups, func(a, b Group) int {
		return CompareIDs(a.Activities[0].ID, b.Activities[0].ID)
	})
	return groups
}
