package store

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore("kpis", "products")
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	// should start empty but warming
	if len(store.GetAll()) != 0 {
		t.Errorf("GetAll() = %v items, want 0", len(store.GetAll()))
	}
	if !store.OverallWarming() {
		t.Error("OverallWarming() = false before any update, want true")
	}
}

func TestMemoryStore_NoExpectedResources(t *testing.T) {
	store := NewMemoryStore()
	if store.OverallWarming() {
		t.Error("OverallWarming() = true with nothing expected, want false")
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore("kpis")

	store.Update(ResourceStatus{
		Name:      "kpis",
		Phase:     "settled",
		Version:   1,
		Data:      json.RawMessage(`[{"_id":"k1"}]`),
		UpdatedAt: time.Now(),
	})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].Name != "kpis" {
		t.Errorf("GetAll()[0].Name = %v, want %v", all[0].Name, "kpis")
	}

	got, ok := store.Get("kpis")
	if !ok {
		t.Fatal("Get(kpis) not found")
	}
	if string(got.Data) != `[{"_id":"k1"}]` {
		t.Errorf("Get(kpis).Data = %s", got.Data)
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("Get(missing) found, want not found")
	}
}

func TestMemoryStore_UpdateOverwrites(t *testing.T) {
	store := NewMemoryStore("kpis")

	store.Update(ResourceStatus{Name: "kpis", Phase: "warming", Version: 1})
	store.Update(ResourceStatus{Name: "kpis", Phase: "settled", Version: 2})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].Phase != "settled" {
		t.Errorf("GetAll()[0].Phase = %v, want %v", all[0].Phase, "settled")
	}
}

func TestMemoryStore_IgnoresOlderVersion(t *testing.T) {
	store := NewMemoryStore("kpis")

	store.Update(ResourceStatus{Name: "kpis", Phase: "settled", Version: 5})
	store.Update(ResourceStatus{Name: "kpis", Phase: "warming", Version: 3})

	got, _ := store.Get("kpis")
	if got.Version != 5 || got.Phase != "settled" {
		t.Errorf("Get(kpis) = version %d phase %s, want 5 settled", got.Version, got.Phase)
	}
}

func TestMemoryStore_RegistrationOrder(t *testing.T) {
	store := NewMemoryStore("kpis", "products", "transactions")

	store.Update(ResourceStatus{Name: "transactions"})
	store.Update(ResourceStatus{Name: "extra"})
	store.Update(ResourceStatus{Name: "kpis"})
	store.Update(ResourceStatus{Name: "products"})

	want := []string{"kpis", "products", "transactions", "extra"}
	all := store.GetAll()
	if len(all) != len(want) {
		t.Fatalf("GetAll() = %v items, want %v", len(all), len(want))
	}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("GetAll()[%d].Name = %v, want %v", i, all[i].Name, name)
		}
	}
}

func TestMemoryStore_OverallWarming(t *testing.T) {
	data := json.RawMessage(`[]`)
	coldStart := &ErrorView{StatusCode: 202, Kind: "cold_start", Message: "loading"}
	notFound := &ErrorView{StatusCode: 404, Kind: "terminal_http", Message: "not found"}

	tests := []struct {
		name     string
		statuses []ResourceStatus
		want     bool
	}{
		{
			name:     "one resource missing",
			statuses: []ResourceStatus{{Name: "a", Data: data}},
			want:     true,
		},
		{
			name:     "one resource has no data yet",
			statuses: []ResourceStatus{{Name: "a", Data: data}, {Name: "b", IsFetching: true}},
			want:     true,
		},
		{
			name:     "cold start error is not resolved",
			statuses: []ResourceStatus{{Name: "a", Data: data}, {Name: "b", Error: coldStart}},
			want:     true,
		},
		{
			name:     "all have data",
			statuses: []ResourceStatus{{Name: "a", Data: data}, {Name: "b", Data: data}},
			want:     false,
		},
		{
			name:     "terminal error resolves",
			statuses: []ResourceStatus{{Name: "a", Data: data}, {Name: "b", Error: notFound}},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore("a", "b")
			for _, s := range tt.statuses {
				store.Update(s)
			}
			if got := store.OverallWarming(); got != tt.want {
				t.Errorf("OverallWarming() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go func() {
		store.Update(ResourceStatus{Name: "kpis"})
	}()

	select {
	case status := <-ch:
		if status.Name != "kpis" {
			t.Errorf("received Name = %v, want %v", status.Name, "kpis")
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	ch3 := store.Subscribe()

	go func() {
		store.Update(ResourceStatus{Name: "kpis"})
	}()

	received := 0
	timeout := time.After(1 * time.Second)

	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	store.Unsubscribe(ch)
	store.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()

	// never read
	_ = store.Subscribe()

	ch2 := store.Subscribe()
	done := make(chan bool)

	go func() {
		for i := 0; i < 2*subscriberBuffer; i++ {
			store.Update(ResourceStatus{Name: "kpis"})
		}
		done <- true
	}()

	go func() {
		for range ch2 {
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Update() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore("kpis")

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				store.Update(ResourceStatus{Name: "kpis", Version: uint64(j)})
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.GetAll()
				_ = store.OverallWarming()
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()
}

func TestResourceStatus_JSON(t *testing.T) {
	status := ResourceStatus{Name: "kpis", Phase: "warming", IntervalMs: 1500}

	b, err := json.Marshal(status)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["data"] != nil {
		t.Errorf("data = %v, want null", decoded["data"])
	}
	if decoded["error"] != nil {
		t.Errorf("error = %v, want null", decoded["error"])
	}
	if decoded["interval_ms"] != float64(1500) {
		t.Errorf("interval_ms = %v, want 1500", decoded["interval_ms"])
	}
}
