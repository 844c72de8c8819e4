package idempotency

import (
	"context"
	"fmt"
	"time"
)

func ExampleManager_Mark() {
	manager, _ := NewManager(newMapStore(), 7*24*time.Hour)
	ctx := context.Background()

	for range 2 {
		seen, _ := manager.Mark(ctx, "square-webhook", "evt_123")
		if seen {
			fmt.Println("already applied")
			continue
		}
		fmt.Println("applying")
	}
	// Output:
	// applying
	// already applied
}
