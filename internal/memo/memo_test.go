package memo

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGet_CachesUntilInvalidated(t *testing.T) {
	c := New[int]()
	calls := 0
	fn := func() (int, error) {
		calls++
		return calls * 10, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get("k", fn)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != 10 {
			t.Fatalf("Get = %d, want 10", v)
		}
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}

	if !c.Invalidate("k") {
		t.Error("Invalidate should report a present entry")
	}
	if c.Invalidate("k") {
		t.Error("second Invalidate should report absent")
	}
	v, _ := c.Get("k", fn)
	if v != 20 {
		t.Errorf("after invalidate Get = %d, want 20", v)
	}

	entries, hits, misses := c.Stats()
	if entries != 1 || hits != 2 || misses != 2 {
		t.Errorf("Stats = %d/%d/%d, want 1/2/2", entries, hits, misses)
	}
}

func TestGet_ErrorsNotCached(t *testing.T) {
	c := New[string]()
	boom := errors.New("boom")
	if _, err := c.Get("k", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	v, err := c.Get("k", func() (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Fatalf("Get = %q, %v", v, err)
	}
}

func TestGet_ConcurrentMissesShareOneCall(t *testing.T) {
	c := New[int]()
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Get("k", func() (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fn called %d times, want 1", n)
	}
	for i, v := range results {
		if v != 7 {
			t.Errorf("results[%d] = %d, want 7", i, v)
		}
	}
}

func TestPurge(t *testing.T) {
	c := New[int]()
	for _, k := range []string{"a", "b", "c"} {
		c.Get(k, func() (int, error) { return 1, nil })
	}
	if n := c.Purge(); n != 3 {
		t.Errorf("Purge = %d, want 3", n)
	}
	if entries, _, _ := c.Stats(); entries != 0 {
		t.Errorf("entries after purge = %d", entries)
	}
}

func TestInvalidateFunc(t *testing.T) {
	c := New[int]()
	for _, k := range []string{"a/1", "a/2", "b/1"} {
		c.Get(k, func() (int, error) { return 1, nil })
	}
	n := c.InvalidateFunc(func(k string) bool { return k[0] == 'a' })
	if n != 2 {
		t.Errorf("InvalidateFunc = %d, want 2", n)
	}
	if entries, _, _ := c.Stats(); entries != 1 {
		t.Errorf("entries = %d, want 1", entries)
	}
}

func TestInvalidateDuringCompute(t *testing.T) {
	tests := []struct {
		name       string
		invalidate func(c *Cache[int])
	}{
		{"Invalidate", func(c *Cache[int]) { c.Invalidate("k") }},
		{"InvalidateFunc", func(c *Cache[int]) { c.InvalidateFunc(func(k string) bool { return k == "k" }) }},
		{"Purge", func(c *Cache[int]) { c.Purge() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New[int]()
			started := make(chan struct{})
			release := make(chan struct{})
			done := make(chan int)
			go func() {
				v, _ := c.Get("k", func() (int, error) {
					close(started)
					<-release
					return 1, nil
				})
				done <- v
			}()

			<-started
			tt.invalidate(c)
			close(release)
			if v := <-done; v != 1 {
				t.Fatalf("in-flight Get = %d, want 1", v)
			}

			if entries, _, _ := c.Stats(); entries != 0 {
				t.Errorf("entries = %d, want the stale result discarded", entries)
			}
			v, err := c.Get("k", func() (int, error) { return 2, nil })
			if err != nil {
				t.Fatal(err)
			}
			if v != 2 {
				t.Errorf("Get after invalidation = %d, want 2", v)
			}
			if v, _ := c.Get("k", func() (int, error) { return 3, nil }); v != 2 {
				t.Errorf("fresh result not cached: got %d, want 2", v)
			}
		})
	}
}
