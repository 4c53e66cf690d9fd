package settings_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/settings"
)

type fakeSettings struct {
	rows  map[string][]byte
	reads int
}

func (f *fakeSettings) ListSettings(context.Context) ([]db.SiteSetting, error) {
	f.reads++
	out := make([]db.SiteSetting, 0, len(f.rows))
	for k, v := range f.rows {
		out = append(out, db.SiteSetting{Key: k, Value: v})
	}
	return out, nil
}

func (f *fakeSettings) UpsertSetting(_ context.Context, arg db.UpsertSettingParams) error {
	f.rows[arg.Key] = arg.Value
	return nil
}

func newService(t *testing.T) (*settings.Service, *fakeSettings) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	fake := &fakeSettings{rows: map[string][]byte{}}
	return &settings.Service{Queries: fake, Redis: client, TTL: time.Minute}, fake
}

func TestGetFallsBackToDefaultsAndCaches(t *testing.T) {
	svc, fake := newService(t)
	fake.rows["charges"] = []byte(`{"freeShippingThreshold":1500,"shippingCharge":49}`)

	site, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1500.0, site.Charges.FreeShippingThreshold)
	require.Equal(t, "INV", site.Invoice.Prefix)
	require.Equal(t, settings.Defaults().Business.State, site.Business.State)

	_, err = svc.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, fake.reads)
}

func TestUpdateValidatesAndInvalidates(t *testing.T) {
	svc, fake := newService(t)
	_, err := svc.Get(context.Background())
	require.NoError(t, err)

	site := settings.Defaults()
	site.Business = settings.Business{Name: "Attar House", Address: "Kannauj", State: "Uttar Pradesh", GSTIN: "09abcde1234f1z5"}
	site.Invoice.Prefix = "ah"
	saved, err := svc.Update(context.Background(), site)
	require.NoError(t, err)
	require.Equal(t, "09ABCDE1234F1Z5", saved.Business.GSTIN)
	require.Equal(t, "AH", saved.Invoice.Prefix)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Uttar Pradesh", got.Business.State)
	require.Equal(t, 2, fake.reads)

	site.Charges.BulkDiscountPercent = 120
	_, err = svc.Update(context.Background(), site)
	require.Error(t, err)
}

func TestPricingConversion(t *testing.T) {
	site := settings.Defaults()
	site.Charges.BulkDiscountThreshold = 3
	site.Charges.BulkDiscountPercent = 10
	p := site.Pricing()
	require.Equal(t, 3, p.BulkDiscountThreshold)
	require.Equal(t, 99.0, p.ShippingCharge)
}

func TestHandlers(t *testing.T) {
	svc, _ := newService(t)
	h := &settings.Handler{Service: svc}

	rec := httptest.NewRecorder()
	h.Public(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "invoice")

	body := `{"business":{"name":"Parfum","address":"Pune","state":"Maharashtra"},"charges":{"shippingCharge":0},"invoice":{"prefix":"PF"}}`
	rec = httptest.NewRecorder()
	h.Put(rec, httptest.NewRequest(http.MethodPut, "/admin/settings", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/admin/settings", nil))
	var resp struct {
		Data settings.Site `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "PF", resp.Data.Invoice.Prefix)

	rec = httptest.NewRecorder()
	h.Put(rec, httptest.NewRequest(http.MethodPut, "/admin/settings", strings.NewReader(`{"business":{}}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
