package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/toolgate/toolgate/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func appendDecision(t *testing.T, s *Store, callID, tool string, kind types.DecisionKind, at time.Time) {
	t.Helper()
	dec := types.Decision{Kind: kind}
	require.NoError(t, s.AppendEvent(context.Background(), types.Event{
		ID:        uuid.NewString(),
		Timestamp: at,
		Type:      "decision",
		SessionID: "s1",
		CallID:    callID,
		ToolName:  tool,
		Decision:  &dec,
		Source:    types.SourceToolRule,
	}))
}

func TestAppendAndSearch(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	appendDecision(t, s, "c1", "terminal", types.DecisionDeny, now.Add(-2*time.Minute))
	appendDecision(t, s, "c2", "terminal", types.DecisionAllow, now.Add(-time.Minute))
	appendDecision(t, s, "c3", "edit_file", types.DecisionConfirm, now)

	all, err := s.SearchEvents(context.Background(), types.EventQuery{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Default order is newest first.
	require.Equal(t, "c3", all[0].CallID)

	byTool, err := s.SearchEvents(context.Background(), types.EventQuery{ToolName: "terminal", Asc: true})
	require.NoError(t, err)
	require.Len(t, byTool, 2)
	require.Equal(t, "c1", byTool[0].CallID)

	deny := types.DecisionDeny
	denied, err := s.SearchEvents(context.Background(), types.EventQuery{Kind: &deny})
	require.NoError(t, err)
	require.Len(t, denied, 1)
	require.Equal(t, "c1", denied[0].CallID)

	since := now.Add(-30 * time.Second)
	recent, err := s.SearchEvents(context.Background(), types.EventQuery{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestSearchLimitAndOffset(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		appendDecision(t, s, uuid.NewString(), "terminal", types.DecisionAllow, base.Add(time.Duration(i)*time.Second))
	}
	page, err := s.SearchEvents(context.Background(), types.EventQuery{Limit: 2, Offset: 2, Asc: true})
	require.NoError(t, err)
	require.Len(t, page, 2)
}

func TestPruneBefore(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	appendDecision(t, s, "old", "terminal", types.DecisionAllow, now.Add(-time.Hour))
	appendDecision(t, s, "new", "terminal", types.DecisionAllow, now)

	n, err := s.PruneBefore(context.Background(), now.Add(-time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rest, err := s.SearchEvents(context.Background(), types.EventQuery{})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, "new", rest[0].CallID)
}
