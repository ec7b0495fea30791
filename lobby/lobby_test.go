package lobby

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("teacher")
	require.NoError(t, err)
	require.Equal(t, RoleTeacher, role)

	role, err = ParseRole("student")
	require.NoError(t, err)
	require.Equal(t, RoleStudent, role)

	_, err = ParseRole("admin")
	require.Error(t, err)
}

func TestSessionStatusCanAdvanceTo(t *testing.T) {
	require.True(t, StatusWaiting.CanAdvanceTo(StatusActive))
	require.True(t, StatusActive.CanAdvanceTo(StatusCompleted))
	require.True(t, StatusActive.CanAdvanceTo(StatusActive))
	require.False(t, StatusActive.CanAdvanceTo(StatusWaiting))
	require.False(t, StatusCompleted.CanAdvanceTo(StatusActive))
}

func TestSessionStudentsOrdering(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewSession()
	s.Participants["u2"] = Participant{UserID: "u2", JoinedAt: base.Add(time.Minute)}
	s.Participants["u1"] = Participant{UserID: "u1", JoinedAt: base}
	s.Participants["u3"] = Participant{UserID: "u3", JoinedAt: base.Add(time.Minute)}

	students := s.Students()
	require.Len(t, students, 3)
	require.Equal(t, "u1", students[0].UserID)
	// Same join time falls back to user id order.
	require.Equal(t, "u2", students[1].UserID)
	require.Equal(t, "u3", students[2].UserID)
}

func TestSessionCounts(t *testing.T) {
	s := NewSession()
	require.Equal(t, 0, s.StudentCount())

	s.Participants["u1"] = Participant{UserID: "u1", Readiness: ReadinessReady}
	s.Participants["u2"] = Participant{UserID: "u2", Readiness: ReadinessWaiting}
	require.Equal(t, 2, s.StudentCount())
	require.Equal(t, 1, s.ReadyCount())
}

func TestSessionClone(t *testing.T) {
	s := NewSession()
	s.ProjectID = "P1"
	s.Participants["u1"] = Participant{UserID: "u1"}

	clone := s.Clone()
	clone.Participants["u2"] = Participant{UserID: "u2"}

	require.Equal(t, 1, s.StudentCount())
	require.Equal(t, 2, clone.StudentCount())
}

func TestParticipantFullName(t *testing.T) {
	require.Equal(t, "Ada Lovelace", Participant{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	require.Equal(t, "Ada", Participant{FirstName: "Ada"}.FullName())
	require.Equal(t, "u1", Participant{UserID: "u1"}.FullName())
}
