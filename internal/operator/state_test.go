package operator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateLookup(t *testing.T) {
	state := NewState([]Registration{
		{ID: "reg-1", ScriptID: "script-a", ScriptName: "text-model"},
		{ID: "reg-2", ScriptID: "script-b", ScriptName: "image-model"},
	})

	assert.ElementsMatch(t, []string{"script-a", "script-b"}, state.ScriptIDs())

	reg, ok := state.RegistrationFor("script-b")
	require.True(t, ok)
	assert.Equal(t, "reg-2", reg.ID)

	_, ok = state.RegistrationFor("script-c")
	assert.False(t, ok)
}

func TestProcessedSet(t *testing.T) {
	set := NewProcessedSet()
	assert.False(t, set.IsProcessed("a"))

	set.MarkProcessed("a")
	set.MarkSkipped("b")
	assert.True(t, set.IsProcessed("a"))
	assert.True(t, set.IsProcessed("b"))
	assert.Equal(t, 2, set.Size())

	// Marking twice is idempotent.
	set.MarkProcessed("a")
	assert.Equal(t, 2, set.Size())
}

func TestProcessedSetConcurrent(t *testing.T) {
	set := NewProcessedSet()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range []string{"x", "y", "z"} {
				set.MarkProcessed(id)
				_ = set.IsProcessed(id)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, set.Size())
}
