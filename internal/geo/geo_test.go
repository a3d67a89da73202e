package geo_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deidaraiorek/lifeline/internal/geo"
)

func TestIPAPILocate(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if strings.HasSuffix(r.URL.Path, "/8.8.8.8") {
			fmt.Fprint(w, `{"status":"success","city":"Mountain View","regionName":"California"}`)
			return
		}
		fmt.Fprint(w, `{"status":"fail"}`)
	}))
	defer server.Close()

	locator := geo.NewIPAPI(geo.Config{BaseURL: server.URL, Default: "Pune, Maharashtra"}, nil)
	ctx := context.Background()

	assert.Equal(t, "Mountain View, California", locator.Locate(ctx, "8.8.8.8"))
	assert.Equal(t, "Mountain View, California", locator.Locate(ctx, "8.8.8.8"))
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, "Pune, Maharashtra", locator.Locate(ctx, "1.1.1.1"))
}

func TestIPAPISkipsPrivateAddresses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected lookup for %s", r.URL.Path)
	}))
	defer server.Close()

	locator := geo.NewIPAPI(geo.Config{BaseURL: server.URL}, nil)
	for _, ip := range []string{"127.0.0.1", "10.0.0.3", "192.168.1.1", "::1", "not-an-ip", ""} {
		assert.Equal(t, geo.DefaultLocation, locator.Locate(context.Background(), ip), ip)
	}
}

func TestIPAPIServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	locator := geo.NewIPAPI(geo.Config{BaseURL: server.URL}, nil)
	assert.Equal(t, geo.DefaultLocation, locator.Locate(context.Background(), "8.8.4.4"))
}

func TestStatic(t *testing.T) {
	assert.Equal(t, "Chennai, Tamil Nadu", geo.Static("Chennai, Tamil Nadu").Locate(context.Background(), "8.8.8.8"))
}
