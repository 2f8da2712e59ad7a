package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceRecordSummary(t *testing.T) {
	record := AttendanceRecord{Students: StudentAttendanceList{
		{StudentID: "s1"},
		{StudentID: "s2", IsAbsent: true},
		{StudentID: "s3"},
	}}

	summary := record.Summary()
	assert.Equal(t, AttendanceSummary{PresentNumber: 2, AbsentNumber: 1, TotalStudents: 3}, summary)
	assert.True(t, record.Taught())

	allAbsent := AttendanceRecord{Students: StudentAttendanceList{{StudentID: "s1", IsAbsent: true}}}
	assert.False(t, allAbsent.Taught())
	assert.True(t, AttendanceRecord{}.Taught())
}

func TestStudentAttendanceListRoundTrip(t *testing.T) {
	list := StudentAttendanceList{{StudentID: "s1", IsAbsent: true}, {StudentID: "s2"}}
	raw, err := list.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"studentId":"s1","isAbsent":true},{"studentId":"s2","isAbsent":false}]`, string(raw.([]byte)))

	var decoded StudentAttendanceList
	require.NoError(t, decoded.Scan(raw))
	assert.Equal(t, list, decoded)

	require.NoError(t, decoded.Scan(nil))
	assert.Empty(t, decoded)
}

func TestAttendanceRecordJSONKeys(t *testing.T) {
	record := AttendanceRecord{
		ID:           "r-1",
		LedgerID:     "l-1",
		ClassID:      "c-1",
		Date:         time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		LessonNumber: 2,
		Students:     StudentAttendanceList{{StudentID: "s1"}},
	}
	raw, err := json.Marshal(record)
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	for _, key := range []string{"id", "ledgerId", "classId", "date", "lessonNumber", "students", "createdAt", "updatedAt"} {
		assert.Contains(t, keys, key)
	}
	assert.NotContains(t, keys, "ledger_id")
	assert.NotContains(t, keys, "class_id")

	raw, err = json.Marshal(AttendanceLedger{ID: "l-1", ClassID: "c-1", CreatedBy: "admin-1"})
	require.NoError(t, err)
	keys = nil
	require.NoError(t, json.Unmarshal(raw, &keys))
	assert.Contains(t, keys, "classId")
	assert.Contains(t, keys, "createdBy")
}

func TestWeekdaysScan(t *testing.T) {
	var days Weekdays
	require.NoError(t, days.Scan([]byte("{3,1,1,9}")))
	assert.Equal(t, Weekdays{3, 1, 1, 9}, days)
	assert.Equal(t, []int{1, 3}, days.Sorted())

	raw, err := Weekdays{1, 3}.Value()
	require.NoError(t, err)
	assert.Equal(t, "{1,3}", raw)
}
