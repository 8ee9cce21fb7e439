package queueview

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"genfity-staff-queue/internal/orders"
)

// FromQuery reads a filter and sort from URL parameters. List parameters accept either
// repeated keys or comma separated values.
func FromQuery(q url.Values) (Filter, Sort, error) {
	var f Filter
	f.Search = q.Get("search")
	f.TableNumber = q.Get("table")

	for _, raw := range listParam(q, "status") {
		s, ok := orders.ParseStatus(raw)
		if !ok {
			return Filter{}, Sort{}, fmt.Errorf("invalid status %q", raw)
		}
		f.Statuses = append(f.Statuses, s)
	}
	for _, raw := range listParam(q, "priority") {
		p, ok := orders.ParsePriority(raw)
		if !ok {
			return Filter{}, Sort{}, fmt.Errorf("invalid priority %q", raw)
		}
		f.Priorities = append(f.Priorities, p)
	}
	for _, raw := range listParam(q, "urgency") {
		u, ok := orders.ParseUrgency(raw)
		if !ok {
			return Filter{}, Sort{}, fmt.Errorf("invalid urgency %q", raw)
		}
		f.Urgencies = append(f.Urgencies, u)
	}
	f.Sources = listParam(q, "source")

	var err error
	flags := map[string]*bool{
		"assignedToMe":    &f.AssignedToMe,
		"overdue":         &f.OverdueOnly,
		"delayed":         &f.DelayedOnly,
		"specialRequests": &f.SpecialRequestsOnly,
		"allergyWarnings": &f.AllergyWarningsOnly,
	}
	for key, dst := range flags {
		if *dst, err = boolParam(q, key); err != nil {
			return Filter{}, Sort{}, err
		}
	}

	if f.MinAmount, err = floatParam(q, "minAmount"); err != nil {
		return Filter{}, Sort{}, err
	}
	if f.MaxAmount, err = floatParam(q, "maxAmount"); err != nil {
		return Filter{}, Sort{}, err
	}
	if f.MinWaitMinutes, err = intParam(q, "minWait"); err != nil {
		return Filter{}, Sort{}, err
	}
	if f.MaxWaitMinutes, err = intParam(q, "maxWait"); err != nil {
		return Filter{}, Sort{}, err
	}

	var s Sort
	if raw := strings.TrimSpace(q.Get("sortBy")); raw != "" {
		field, ok := ParseSortField(raw)
		if !ok {
			return Filter{}, Sort{}, fmt.Errorf("invalid sortBy %q", raw)
		}
		s.Field = field
	}
	switch strings.ToLower(strings.TrimSpace(q.Get("sortOrder"))) {
	case "", "asc":
	case "desc":
		s.Descending = true
	default:
		return Filter{}, Sort{}, fmt.Errorf("invalid sortOrder %q", q.Get("sortOrder"))
	}
	return f, s, nil
}

func listParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func boolParam(q url.Values, key string) (bool, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func floatParam(q url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", key, raw)
	}
	return &v, nil
}

func intParam(q url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", key, raw)
	}
	return &v, nil
}
