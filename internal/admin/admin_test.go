package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"verscheduler/internal/scheduler"
)

func TestAdminEvictAndSnapshot(t *testing.T) {
	dbvn := scheduler.NewDbVNManager([]string{"A", "B"}, nil)
	srv := NewServer(dbvn)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/admin/snapshot")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/admin/evict?replica=A", "", nil)
	if err != nil {
		t.Fatalf("post evict: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/admin/evict?replica=A", "", nil)
	if err != nil {
		t.Fatalf("post evict again: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on re-eviction, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if got := dbvn.Replicas(); len(got) != 1 || got[0] != "B" {
		t.Fatalf("expected only B to remain, got %v", got)
	}
}
