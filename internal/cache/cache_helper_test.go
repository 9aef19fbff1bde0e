package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type cachedExam struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func newTestHelper(t *testing.T) *CacheHelper {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheHelper(client, "exam:")
}

func TestCacheHelperSetGet(t *testing.T) {
	helper := newTestHelper(t)
	ctx := context.Background()

	want := cachedExam{ID: 7, Title: "IELTS Academic Mock"}
	if err := helper.Set(ctx, "7", want, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got cachedExam
	if err := helper.Get(ctx, "7", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestCacheHelperGetMiss(t *testing.T) {
	helper := newTestHelper(t)

	var got cachedExam
	err := helper.Get(context.Background(), "missing", &got)
	if !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("Get() error = %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelperDelete(t *testing.T) {
	helper := newTestHelper(t)
	ctx := context.Background()

	for _, key := range []string{"1", "2", "3"} {
		if err := helper.SetString(ctx, key, "v", time.Minute); err != nil {
			t.Fatalf("SetString(%s) error = %v", key, err)
		}
	}

	if err := helper.Delete(ctx, "1", "2"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if exists, _ := helper.Exists(ctx, "1"); exists {
		t.Error("key 1 survived delete")
	}
	if exists, _ := helper.Exists(ctx, "3"); !exists {
		t.Error("key 3 was deleted unexpectedly")
	}
}

func TestCacheHelperNilClientDegradesGracefully(t *testing.T) {
	helper := NewCacheHelper(nil, "exam:")
	ctx := context.Background()

	if err := helper.Set(ctx, "1", cachedExam{}, time.Minute); err != nil {
		t.Errorf("Set() with nil client error = %v", err)
	}
	if err := helper.Delete(ctx, "1"); err != nil {
		t.Errorf("Delete() with nil client error = %v", err)
	}

	var got cachedExam
	if err := helper.Get(ctx, "1", &got); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("Get() error = %v, want ErrCacheNotAvailable", err)
	}
}

func TestCacheOrExecute(t *testing.T) {
	helper := newTestHelper(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return cachedExam{ID: 9, Title: "Fetched"}, nil
	}

	var got cachedExam
	if err := helper.CacheOrExecute(ctx, "9", &got, time.Minute, fetch); err != nil {
		t.Fatalf("CacheOrExecute() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
	if got.Title != "Fetched" {
		t.Errorf("got %+v", got)
	}

	// Cache write happens in the background
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if exists, _ := helper.Exists(ctx, "9"); exists {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	var cached cachedExam
	if err := helper.CacheOrExecute(ctx, "9", &cached, time.Minute, fetch); err != nil {
		t.Fatalf("CacheOrExecute() second call error = %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch ran again despite cache hit: %d calls", calls)
	}
}

func TestCacheOrExecuteFetchError(t *testing.T) {
	helper := newTestHelper(t)

	wantErr := errors.New("db down")
	var got cachedExam
	err := helper.CacheOrExecute(context.Background(), "x", &got, time.Minute, func() (interface{}, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("CacheOrExecute() error = %v, want wrapped %v", err, wantErr)
	}
}
