package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinly/internal/core"
)

func dates(ds []core.Date) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

func TestUpcomingOccurrences(t *testing.T) {
	end := core.NewDate(2024, 2, 5)

	tests := []struct {
		name string
		rule core.RecurringRule
		from core.Date
		n    int
		want []string
	}{
		{
			name: "weekly from start",
			rule: rule(core.Weekly, core.NewDate(2024, 1, 1)),
			from: core.NewDate(2024, 1, 1),
			n:    3,
			want: []string{"2024-01-01", "2024-01-08", "2024-01-15"},
		},
		{
			name: "monthly on the 31st skips short months",
			rule: rule(core.Monthly, core.NewDate(2024, 1, 31)),
			from: core.NewDate(2024, 2, 1),
			n:    3,
			want: []string{"2024-03-31", "2024-05-31", "2024-07-31"},
		},
		{
			name: "yearly leap day",
			rule: rule(core.Yearly, core.NewDate(2020, 2, 29)),
			from: core.NewDate(2021, 1, 1),
			n:    2,
			want: []string{"2024-02-29", "2028-02-29"},
		},
		{
			name: "daily stops at end date",
			rule: func() core.RecurringRule {
				r := rule(core.Daily, core.NewDate(2024, 2, 1))
				r.EndDate = &end
				return r
			}(),
			from: core.NewDate(2024, 2, 3),
			n:    10,
			want: []string{"2024-02-03", "2024-02-04", "2024-02-05"},
		},
		{
			name: "from before start",
			rule: rule(core.Monthly, core.NewDate(2024, 6, 10)),
			from: core.NewDate(2024, 1, 1),
			n:    2,
			want: []string{"2024-06-10", "2024-07-10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UpcomingOccurrences(tt.rule, tt.from, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dates(got))
		})
	}
}

func TestUpcomingOccurrences_Inactive(t *testing.T) {
	r := rule(core.Daily, core.NewDate(2024, 1, 1))
	r.Active = false

	got, err := UpcomingOccurrences(r, core.NewDate(2024, 1, 1), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpcomingOccurrences_UnknownFrequency(t *testing.T) {
	_, err := UpcomingOccurrences(rule("hourly", core.NewDate(2024, 1, 1)), core.NewDate(2024, 1, 1), 5)
	assert.ErrorIs(t, err, core.ErrInvalidFrequency)
}

// Projected dates are exactly the days IsDueToday accepts.
func TestUpcomingOccurrences_AgreesWithIsDueToday(t *testing.T) {
	from := core.NewDate(2024, 1, 1)
	until := core.NewDate(2026, 1, 1)
	starts := []core.Date{core.NewDate(2023, 12, 31), core.NewDate(2024, 1, 29), core.NewDate(2020, 2, 29)}

	for _, freq := range []core.Frequency{core.Daily, core.Weekly, core.Monthly, core.Yearly} {
		for _, start := range starts {
			r := rule(freq, start)
			projected, err := UpcomingOccurrences(r, from, MaxUpcoming)
			require.NoError(t, err)

			got := []string{}
			for _, d := range projected {
				if d.Before(until) {
					got = append(got, d.String())
				}
			}

			want := []string{}
			for d := from; d.Before(until) && len(want) < MaxUpcoming; d = core.DateOf(d.AddDate(0, 0, 1)) {
				if IsDueToday(r, d) {
					want = append(want, d.String())
				}
			}
			assert.Equal(t, want, got, "%s from %s", freq, start)
		}
	}
}
