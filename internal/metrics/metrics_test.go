package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauges(t *testing.T) {
	m := New()

	m.ConnectionsOpened.Inc()
	m.ConnectionsOpened.Inc()
	m.ActiveConnections.Inc()
	m.Drops.WithLabelValues(DropReasonRoomFull).Inc()

	if got := testutil.ToFloat64(m.ConnectionsOpened); got != 2 {
		t.Fatalf("ConnectionsOpened=%v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ActiveConnections); got != 1 {
		t.Fatalf("ActiveConnections=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Drops.WithLabelValues(DropReasonRoomFull)); got != 1 {
		t.Fatalf("Drops{room_full}=%v, want 1", got)
	}
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.RoomsCreated.Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "webrtcapp_rooms_created_total 1") {
		t.Fatalf("scrape output missing rooms_created counter:\n%s", body)
	}
}

func TestIsolatedRegistries(t *testing.T) {
	// Two instances must not share collectors or panic on double registration.
	a := New()
	b := New()

	a.Joins.Inc()
	if got := testutil.ToFloat64(b.Joins); got != 0 {
		t.Fatalf("b.Joins=%v, want 0", got)
	}
}
