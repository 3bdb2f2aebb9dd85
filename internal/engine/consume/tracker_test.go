package consume_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/fable/internal/engine/consume"
)

func TestTracker_MarkAndAvailability(t *testing.T) {
	tr := consume.NewTracker()

	assert.True(t, tr.IsAvailable("colors", "story-1", "red"))
	tr.MarkConsumed("colors", "story-1", "red")
	assert.False(t, tr.IsAvailable("colors", "story-1", "red"))
	assert.True(t, tr.IsAvailable("colors", "story-1", "blue"))
}

func TestTracker_KeyIsCaseInsensitiveOnTable(t *testing.T) {
	tr := consume.NewTracker()
	tr.MarkConsumed("Colors", "story-1", "red")
	assert.False(t, tr.IsAvailable("COLORS", "story-1", "red"))
}

func TestTracker_StoriesNeverShareState(t *testing.T) {
	tr := consume.NewTracker()
	tr.MarkConsumed("colors", "story-1", "red")
	assert.True(t, tr.IsAvailable("colors", "story-2", "red"),
		"consumption is scoped per story")
}

func TestTracker_Reset(t *testing.T) {
	tr := consume.NewTracker()
	tr.MarkConsumed("colors", "story-1", "red")
	tr.MarkConsumed("colors", "story-1", "blue")

	tr.Reset("colors", "story-1")
	assert.True(t, tr.IsAvailable("colors", "story-1", "red"))
	assert.True(t, tr.IsAvailable("colors", "story-1", "blue"))
	assert.Equal(t, 0, tr.ConsumedCount("colors", "story-1"))
}

func TestTracker_ResetStory_ClearsAllTablesForStoryOnly(t *testing.T) {
	tr := consume.NewTracker()
	tr.MarkConsumed("colors", "story-1", "red")
	tr.MarkConsumed("weather", "story-1", "rain")
	tr.MarkConsumed("colors", "story-2", "red")

	tr.ResetStory("story-1")
	assert.True(t, tr.IsAvailable("colors", "story-1", "red"))
	assert.True(t, tr.IsAvailable("weather", "story-1", "rain"))
	assert.False(t, tr.IsAvailable("colors", "story-2", "red"),
		"other stories must be untouched")
}

func TestTracker_SnapshotRestore_RoundTrip(t *testing.T) {
	tr := consume.NewTracker()
	tr.MarkConsumed("colors", "story-1", "red")
	tr.MarkConsumed("colors", "story-1", "blue")
	tr.MarkConsumed("weather", "story-2", "rain")

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.ElementsMatch(t, []string{"red", "blue"}, snap["colors_story-1"])

	restored := consume.NewTracker()
	restored.Restore(snap)
	assert.False(t, restored.IsAvailable("colors", "story-1", "red"))
	assert.False(t, restored.IsAvailable("weather", "story-2", "rain"))
	assert.True(t, restored.IsAvailable("colors", "story-2", "rain"))
}

// TestTracker_ConcurrentMarks verifies no updates are lost under
// concurrent resolution of the same (table, story) key.
func TestTracker_ConcurrentMarks(t *testing.T) {
	tr := consume.NewTracker()
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.MarkConsumed("colors", "story-1", fmt.Sprintf("value-%d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, tr.ConsumedCount("colors", "story-1"))
}
