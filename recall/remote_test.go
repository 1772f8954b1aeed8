package recall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/recserve/core"
)

func listServer(t *testing.T, handle func(req ListRequest) (int, ListResponse)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req ListRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status, resp := handle(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRemoteSimilar_LookupAndCache(t *testing.T) {
	srv, calls := listServer(t, func(req ListRequest) (int, ListResponse) {
		if req.ItemID != "i1" || req.K != 2 {
			return http.StatusOK, ListResponse{ItemIDs: []string{}}
		}
		return http.StatusOK, ListResponse{ItemIDs: []string{"i2", "i3", "i2"}, Scores: []float64{0.9, 0.8, 0.7}}
	})

	r, err := NewRemoteSimilar(srv.URL, 2, 16, RemoteOptions{Timeout: time.Second, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewRemoteSimilar: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := r.Lookup(context.Background(), "i1")
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if want := (core.RankedList{"i2", "i3"}); !reflect.DeepEqual(got, want) {
			t.Errorf("Lookup = %v, want %v", got, want)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("remote calls = %d, want 1 (cached)", n)
	}
}

func TestRemoteHistory_RecentItems(t *testing.T) {
	srv, _ := listServer(t, func(req ListRequest) (int, ListResponse) {
		if req.UserID != "u1" {
			return http.StatusOK, ListResponse{}
		}
		return http.StatusOK, ListResponse{ItemIDs: []string{"h1", "h2", "h3", "h4"}}
	})

	h := NewRemoteHistory(srv.URL, 3, RemoteOptions{Timeout: time.Second, Logger: zerolog.Nop()})
	got, err := h.RecentItems(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RecentItems: %v", err)
	}
	if want := (core.InteractionHistory{"h1", "h2", "h3"}); !reflect.DeepEqual(got, want) {
		t.Errorf("RecentItems = %v, want %v", got, want)
	}

	got, err = h.RecentItems(context.Background(), "nobody")
	if err != nil || len(got) != 0 {
		t.Errorf("RecentItems(nobody) = %v, %v; want empty", got, err)
	}
}

func TestRemote_ErrorsAreUnavailable(t *testing.T) {
	srv, _ := listServer(t, func(ListRequest) (int, ListResponse) {
		return http.StatusInternalServerError, ListResponse{}
	})
	h := NewRemoteHistory(srv.URL, 3, RemoteOptions{Timeout: time.Second, Logger: zerolog.Nop()})
	if _, err := h.RecentItems(context.Background(), "u1"); !core.IsUnavailable(err) {
		t.Errorf("err = %v, want UNAVAILABLE", err)
	}

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer slow.Close()
	s, _ := NewRemoteSimilar(slow.URL, 5, 0, RemoteOptions{Timeout: 20 * time.Millisecond, Logger: zerolog.Nop()})
	if _, err := s.Lookup(context.Background(), "i1"); !core.IsUnavailable(err) {
		t.Errorf("timeout err = %v, want UNAVAILABLE", err)
	}
}

func TestRemote_BreakerOpens(t *testing.T) {
	srv, calls := listServer(t, func(ListRequest) (int, ListResponse) {
		return http.StatusServiceUnavailable, ListResponse{}
	})

	var opened atomic.Bool
	h := NewRemoteHistory(srv.URL, 3, RemoteOptions{
		Timeout: time.Second,
		Logger:  zerolog.Nop(),
		Breaker: BreakerSettings{
			MinRequests:  2,
			FailureRatio: 0.5,
			Timeout:      time.Minute,
			OnStateChange: func(_ string, _, to gobreaker.State) {
				if to == gobreaker.StateOpen {
					opened.Store(true)
				}
			},
		},
	})

	for i := 0; i < 5; i++ {
		_, _ = h.RecentItems(context.Background(), "u1")
	}
	if !opened.Load() {
		t.Fatal("breaker did not open")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("remote calls = %d, want 2 (rest rejected by open breaker)", n)
	}
}
