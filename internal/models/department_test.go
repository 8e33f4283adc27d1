package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDepartmentPrefixes(t *testing.T) {
	cases := map[string]Department{
		"hr":          DepartmentHR,
		"HR Ops":      DepartmentHR,
		"pmo":         DepartmentPMO,
		"PMO_team":    DepartmentPMO,
		"pm":          DepartmentPM,
		"PM-Delivery": DepartmentPM,
		"TA":          DepartmentTA,
		"L&D":         DepartmentLD,
		"ld":          DepartmentLD,
		"Learning":    DepartmentLD,
	}
	for raw, want := range cases {
		got, ok := ParseDepartment(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}

	_, ok := ParseDepartment("finance")
	require.False(t, ok)
	_, ok = ParseDepartment("  ")
	require.False(t, ok)
}

func TestDepartmentRoleTags(t *testing.T) {
	require.Equal(t, "pmo_validator", DepartmentPMO.ValidatorRole())
	require.Equal(t, "ld_updater", DepartmentLD.UpdaterRole())
	require.Equal(t, SubmitterField("created_by_ta_id"), DepartmentTA.CreatedByField())
	require.Equal(t, "hr_updater", Role{Department: DepartmentHR, Kind: RoleKindUpdater}.Tag())
}

func TestDepartmentScan(t *testing.T) {
	var d Department
	require.NoError(t, d.Scan([]byte("pmo")))
	require.Equal(t, DepartmentPMO, d)
	require.NoError(t, d.Scan("unknown"))
	require.Equal(t, Department(""), d)
	require.NoError(t, d.Scan(nil))
	require.Error(t, d.Scan(42))
}
