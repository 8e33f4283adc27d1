package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFiscalPeriod(t *testing.T) {
	cases := []struct {
		date    time.Time
		year    int
		quarter string
	}{
		{time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), 2024, "Q1"},
		{time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC), 2024, "Q1"},
		{time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), 2024, "Q2"},
		{time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), 2024, "Q3"},
		{time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), 2024, "Q4"},
		{time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC), 2024, "Q4"},
	}
	for _, tc := range cases {
		year, quarter := FiscalPeriod(tc.date)
		require.Equal(t, tc.year, year, tc.date.String())
		require.Equal(t, tc.quarter, quarter, tc.date.String())
	}
}

func TestParseQuarterAndInPeriod(t *testing.T) {
	q, err := ParseQuarter("q4")
	require.NoError(t, err)
	require.Equal(t, "Q4", q)

	q, err = ParseQuarter("")
	require.NoError(t, err)
	require.Empty(t, q)

	_, err = ParseQuarter("Q5")
	require.Error(t, err)

	feb := time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)
	require.True(t, InPeriod(feb, 2024, "Q4"))
	require.False(t, InPeriod(feb, 2025, "Q4"))
	require.False(t, InPeriod(feb, 0, "Q1"))
	require.True(t, InPeriod(feb, 0, ""))
}

func TestMonthRange(t *testing.T) {
	from, to := monthRange(time.Date(2024, time.December, 17, 13, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), to)
}
