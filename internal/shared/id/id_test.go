package id

import (
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateString(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateString()

	if len(id) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(id))
	}
}

func TestTypedIDsCarryPrefix(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
	}{
		{NewCommandID().String(), CommandPrefix},
		{NewQueueID().String(), QueuePrefix},
		{NewConfirmationID().String(), ConfirmationPrefix},
		{NewDeviceID().String(), DevicePrefix},
	}

	for _, tt := range tests {
		if !strings.HasPrefix(tt.id, tt.prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", tt.prefix, tt.id)
		}
		if !IsValid(tt.id) {
			t.Errorf("ID should parse: %s", tt.id)
		}
	}
}

func TestIDsSortInCreationOrder(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 200)
	for i := range ids {
		ids[i] = gen.GenerateWithPrefix(CommandPrefix)
	}

	if !sort.StringsAreSorted(ids) {
		t.Error("IDs generated in sequence should sort in creation order")
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewCommandID().String())
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("unexpected timestamp %v", ts)
	}
}

func TestIsValidRejectsGarbage(t *testing.T) {
	if IsValid("cmd_not-a-ulid") {
		t.Error("garbage should not parse")
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.GenerateString()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
