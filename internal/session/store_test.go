package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Lifecycle(t *testing.T) {
	s := NewStore()

	id := s.Create()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.True(t, s.Exists(id))

	require.NoError(t, s.Exchange(id, "recommend something", "- Tesla Model3 – 400 km"))
	require.NoError(t, s.Append(id, Entry{Role: RoleUser, Text: "thanks"}))

	entries, err := s.Transcript(id)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, RoleUser, entries[0].Role)
	assert.Equal(t, RoleAssistant, entries[1].Role)
	assert.Equal(t, "thanks", entries[2].Text)
	assert.False(t, entries[2].At.IsZero())

	require.NoError(t, s.Delete(id))
	assert.False(t, s.Exists(id))
	_, err = s.Transcript(id)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_UnknownSession(t *testing.T) {
	s := NewStore()
	assert.True(t, errors.Is(s.Append("nope", Entry{Role: RoleUser}), ErrNotFound))
	assert.True(t, errors.Is(s.Exchange("nope", "a", "b"), ErrNotFound))
	assert.True(t, errors.Is(s.Delete("nope"), ErrNotFound))
}

func TestStore_TranscriptIsACopy(t *testing.T) {
	s := NewStore()
	id := s.Create()
	require.NoError(t, s.Exchange(id, "q", "a"))

	entries, err := s.Transcript(id)
	require.NoError(t, err)
	entries[0].Text = "changed"

	again, err := s.Transcript(id)
	require.NoError(t, err)
	assert.Equal(t, "q", again[0].Text)
}

func TestStore_Isolation(t *testing.T) {
	s := NewStore()
	a, b := s.Create(), s.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.Exchange(a, fmt.Sprintf("a%d", i), "ok")
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = s.Exchange(b, fmt.Sprintf("b%d", i), "ok")
		}(i)
	}
	wg.Wait()

	ta, err := s.Transcript(a)
	require.NoError(t, err)
	tb, err := s.Transcript(b)
	require.NoError(t, err)
	assert.Len(t, ta, 100)
	assert.Len(t, tb, 100)

	for i := 0; i < len(ta); i += 2 {
		assert.Equal(t, RoleUser, ta[i].Role)
		assert.Equal(t, RoleAssistant, ta[i+1].Role, "exchanges are not interleaved")
		assert.Equal(t, "a", ta[i].Text[:1])
	}
}

func TestStore_PruneIdle(t *testing.T) {
	s := NewStore()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	old := s.Create()
	base = base.Add(2 * time.Hour)
	fresh := s.Create()

	assert.Equal(t, 1, s.PruneIdle(time.Hour))
	assert.False(t, s.Exists(old))
	assert.True(t, s.Exists(fresh))
	assert.Equal(t, 1, s.Len())
}
