package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPointsScheduleScanFlatAndMap(t *testing.T) {
	var flat PointsSchedule
	require.NoError(t, flat.Scan([]byte("25")))
	require.True(t, flat.IsFlat())
	require.Equal(t, 25, *flat.Flat)

	var quoted PointsSchedule
	require.NoError(t, quoted.Scan(`"40"`))
	require.Equal(t, 40, *quoted.Flat)

	var graded PointsSchedule
	require.NoError(t, graded.Scan([]byte(`{"L1": 10, "l2": 20, "L3": 0}`)))
	require.False(t, graded.IsFlat())

	v, ok := graded.ForGrade("L1")
	require.True(t, ok)
	require.Equal(t, 10, v)

	v, ok = graded.ForGrade("L2")
	require.True(t, ok)
	require.Equal(t, 20, v)

	v, ok = graded.ForGrade("l3")
	require.True(t, ok, "zero entries are still present")
	require.Equal(t, 0, v)
	_, ok = graded.ForGrade("L4")
	require.False(t, ok)
}

func TestPointsScheduleJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(GradePoints(map[string]int{"L2": 15}))
	require.NoError(t, err)
	require.JSONEq(t, `{"L2":15}`, string(raw))

	val, err := FlatPoints(5).Value()
	require.NoError(t, err)
	require.Equal(t, "5", val)
}

func TestParseGradePolicy(t *testing.T) {
	require.Equal(t, GradePolicyBaseFallback, ParseGradePolicy(" BASE_FALLBACK "))
	require.Equal(t, GradePolicyStrict, ParseGradePolicy("anything"))
}

func TestCategoryActive(t *testing.T) {
	require.True(t, (&Category{Status: "Active"}).Active())
	require.False(t, (&Category{Status: CategoryStatusInactive}).Active())
	var nilCategory *Category
	require.False(t, nilCategory.Active())
}
