package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_CreateLoadPersist(t *testing.T) {
	store := NewInMemoryStore()
	s := New("session-abc", 5, 80, 30, 1000)

	require.NoError(t, store.Create(s))

	_, err := store.Load("does-not-exist")
	require.Error(t, err)

	loaded, err := store.Load("session-abc")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, loaded.State)

	loaded.State = StateGenerating
	require.NoError(t, store.Persist(loaded))

	reloaded, err := store.Load("session-abc")
	require.NoError(t, err)
	assert.Equal(t, StateGenerating, reloaded.State)
}

func TestInMemoryStore_CreateDuplicateRejected(t *testing.T) {
	store := NewInMemoryStore()
	s := New("session-dup", 5, 80, 30, 1000)
	require.NoError(t, store.Create(s))
	require.Error(t, store.Create(s))
}

func TestInMemoryStore_PersistUnknownSessionFails(t *testing.T) {
	store := NewInMemoryStore()
	s := New("session-ghost", 5, 80, 30, 1000)
	require.Error(t, store.Persist(s))
}

func TestInMemoryStore_AppendArtifactLeavesContentHashesToTheLoopGuard(t *testing.T) {
	store := NewInMemoryStore()
	s := New("session-art", 5, 80, 30, 1000)
	require.NoError(t, store.Create(s))

	require.NoError(t, store.AppendArtifact("session-art", Artifact{
		ID:          "artifact-1",
		Kind:        ArtifactCode,
		Content:     "package main",
		TimestampMs: 1001,
	}))

	loaded, err := store.Load("session-art")
	require.NoError(t, err)
	require.Len(t, loaded.Artifacts, 1)
	// The Loop Guard's oscillation predicate (and the Orchestrator's
	// approve branch) are the only writers of content_hashes, so a bare
	// AppendArtifact must not pre-populate it — doing so would make the
	// very next oscillation check collide with itself.
	_, ok := loaded.ContentHashes[ContentDigest("package main")]
	assert.False(t, ok)
}

func TestInMemoryStore_ListOrderedByStartTime(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Create(New("session-2", 5, 80, 30, 2000)))
	require.NoError(t, store.Create(New("session-1", 5, 80, 30, 1000)))

	all, err := store.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "session-1", all[0].SessionID)
	assert.Equal(t, "session-2", all[1].SessionID)
}

func TestInMemoryStore_EvictOlderThanSkipsNonTerminal(t *testing.T) {
	store := NewInMemoryStore()
	old := New("session-old", 5, 80, 30, 1000)
	old.State = StateGenerating
	require.NoError(t, store.Create(old))

	cutoff := time.UnixMilli(50000)
	n, err := store.EvictOlderThan(cutoff)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "non-terminal sessions must never be evicted")

	idle := New("session-idle", 5, 80, 30, 1000)
	require.NoError(t, store.Create(idle))

	n, err = store.EvictOlderThan(cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Load("session-idle")
	assert.Error(t, err)
}

func TestSessionState_RecordReviewKeepsHistoriesAligned(t *testing.T) {
	s := New("session-rev", 5, 80, 30, 1000)
	s.RecordReview(72, 2000)
	s.RecordReview(88, 3500)

	require.Len(t, s.ScoreHistory, 2)
	require.Len(t, s.TimePerIterationMs, 2)
	assert.Equal(t, []int{72, 88}, s.ScoreHistory)
	require.NotNil(t, s.LastQualityScore)
	assert.Equal(t, 88, *s.LastQualityScore)
}

func TestSessionState_ResetForReuseClearsIterationState(t *testing.T) {
	s := New("session-reset", 5, 80, 30, 1000)
	s.CurrentIteration = 3
	s.RecordReview(60, 2000)
	s.AppendArtifact(Artifact{Kind: ArtifactCode, Content: "x"})

	s.ResetForReuse()

	assert.Equal(t, 0, s.CurrentIteration)
	assert.Empty(t, s.ScoreHistory)
	assert.Empty(t, s.TimePerIterationMs)
	assert.Empty(t, s.ContentHashes)
}

func TestSessionState_CloneIsIndependent(t *testing.T) {
	s := New("session-clone", 5, 80, 30, 1000)
	s.AppendArtifact(Artifact{Kind: ArtifactCode, Content: "a"})

	clone := s.Clone()
	clone.Artifacts[0].Content = "mutated"

	assert.Equal(t, "a", s.Artifacts[0].Content)
}
