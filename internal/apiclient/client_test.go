package apiclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-parfum/internal/apiclient"
	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/guest"
	"github.com/noah-isme/backend-parfum/internal/shopper"
)

func TestClientSendsIdentityAndDecodesEnvelope(t *testing.T) {
	var gotGuest, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGuest = r.Header.Get(shopper.GuestHeader)
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/api/v1/cart", r.URL.Path)
		common.Data(w, http.StatusOK, shopper.Snapshot{Kind: guest.KindCart, Count: 3, Items: []shopper.Item{{ProductID: "p", Quantity: 3}}})
	}))
	defer srv.Close()

	c := apiclient.New(apiclient.Config{BaseURL: srv.URL + "/api/v1/", GuestID: "g-1", Token: "tok"})
	snap, err := c.List(context.Background(), guest.KindCart)
	require.NoError(t, err)
	require.Equal(t, 3, snap.Count)
	require.Equal(t, "g-1", gotGuest)
	require.Equal(t, "Bearer tok", gotAuth)
}

func TestClientMapsDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		common.JSONError(w, http.StatusConflict, "DUPLICATE", "product already in wishlist", nil)
	}))
	defer srv.Close()

	c := apiclient.New(apiclient.Config{BaseURL: srv.URL, GuestID: "g"})
	_, err := c.Add(context.Background(), guest.KindWishlist, "p", 1)
	require.ErrorIs(t, err, shopper.ErrDuplicate)
	require.True(t, apiclient.IsStatus(err, http.StatusConflict))
}

func TestClientRetriesReadsOnly(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		common.Data(w, http.StatusOK, shopper.Snapshot{Kind: guest.KindCart})
	}))
	defer srv.Close()

	c := apiclient.New(apiclient.Config{BaseURL: srv.URL, GuestID: "g"})
	_, err := c.List(context.Background(), guest.KindCart)
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestEnsureGuest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		common.Data(w, http.StatusCreated, map[string]string{"guestId": "fresh"})
	}))
	defer srv.Close()

	c := apiclient.New(apiclient.Config{BaseURL: srv.URL})
	id, err := c.EnsureGuest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh", id)
	require.Equal(t, "fresh", c.GuestID())
}

func TestChangesParsesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(": connected\n\n"))
		_, _ = w.Write([]byte("event: cartUpdated\ndata: {\"topic\":\"cartUpdated\",\"owner\":\"user:1\",\"list\":\"cart\"}\n\n"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := apiclient.New(apiclient.Config{BaseURL: srv.URL, GuestID: "g"})
	changes, err := c.Changes(ctx)
	require.NoError(t, err)
	change, ok := <-changes
	require.True(t, ok)
	require.Equal(t, "cart", change.List)
	require.True(t, strings.HasPrefix(change.Owner, "user:"))

	view := shopper.NewView(c, guest.KindCart)
	require.NotNil(t, view)
}
