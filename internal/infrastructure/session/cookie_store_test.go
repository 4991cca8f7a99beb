package session

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/domain/cart"
	"github.com/example/marketplace/internal/domain/catalog"
)

func testStore() *Store {
	return NewStore([]byte("0123456789abcdef0123456789abcdef"))
}

func savedCookie(t *testing.T, s *Store, c *cart.Cart) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, s.Save(rec, c))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	s := testStore()
	c := cart.New()
	require.NoError(t, c.Add(catalog.Product{
		ID: "prod-1", Price: decimal.RequireFromString("10.00"),
		Stock: 10, Available: true,
	}, 3, false))

	ck := savedCookie(t, s, c)
	assert.True(t, ck.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/cart/details", nil)
	req.AddCookie(ck)

	got := s.Load(req)
	assert.Equal(t, 3, got.Quantity("prod-1"))
	assert.True(t, got.TotalPrice().Equal(decimal.RequireFromString("30.00")))
}

func TestStore_Load_NoCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cart/details", nil)
	assert.True(t, testStore().Load(req).IsEmpty())
}

func TestStore_Load_TamperedPayload(t *testing.T) {
	s := testStore()
	c := cart.New()
	require.NoError(t, c.Add(catalog.Product{
		ID: "prod-1", Price: decimal.RequireFromString("10.00"),
		Stock: 10, Available: true,
	}, 1, false))

	ck := savedCookie(t, s, c)

	// Flip a byte in the signed payload.
	parts := strings.SplitN(ck.Value, ".", 2)
	require.Len(t, parts, 2)
	mutated := []byte(parts[0])
	mutated[0] ^= 0x01
	ck.Value = string(mutated) + "." + parts[1]

	req := httptest.NewRequest(http.MethodGet, "/cart/details", nil)
	req.AddCookie(ck)

	assert.True(t, s.Load(req).IsEmpty(), "tampered cookies yield an empty cart")
}

func TestStore_Load_ForeignSignature(t *testing.T) {
	other := NewStore([]byte("another-secret-another-secret-xx"))
	c := cart.New()
	ck := savedCookie(t, other, c)

	req := httptest.NewRequest(http.MethodGet, "/cart/details", nil)
	req.AddCookie(ck)

	assert.True(t, testStore().Load(req).IsEmpty())
}

func TestStore_Load_GarbageCookie(t *testing.T) {
	s := testStore()
	for _, v := range []string{"", "no-dot", "a.b", "!!!.???"} {
		req := httptest.NewRequest(http.MethodGet, "/cart/details", nil)
		req.AddCookie(&http.Cookie{Name: "cart", Value: v})
		assert.True(t, s.Load(req).IsEmpty(), "cookie %q", v)
	}
}

func TestStore_SessionID_MintsOnce(t *testing.T) {
	s := testStore()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	id := s.SessionID(rec, req)
	require.NotEmpty(t, id)

	// Replay the cookie: same id, no new cookie minted.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range rec.Result().Cookies() {
		req2.AddCookie(ck)
	}
	rec2 := httptest.NewRecorder()
	assert.Equal(t, id, s.SessionID(rec2, req2))
	assert.Empty(t, rec2.Result().Cookies())
}

func TestLocker_SerializesSameKey(t *testing.T) {
	l := NewLocker()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("buyer-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestLocker_IndependentKeys(t *testing.T) {
	l := NewLocker()

	unlockA := l.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := l.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on key b blocked behind key a")
	}
}

func TestLocker_EvictsIdleKeys(t *testing.T) {
	l := NewLocker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "session-" + strconv.Itoa(i%5)
			unlock := l.Lock(key)
			defer unlock()
		}(i)
	}
	wg.Wait()

	// Every key is idle again, so the map must not retain entries.
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}

func TestLocker_KeepsContendedKey(t *testing.T) {
	l := NewLocker()

	unlockA := l.Lock("buyer-1")

	acquired := make(chan struct{})
	go func() {
		unlock := l.Lock("buyer-1")
		close(acquired)
		unlock()
	}()

	// The waiter has registered; releasing the first hold must not
	// evict the entry out from under it.
	for {
		l.mu.Lock()
		e, ok := l.locks["buyer-1"]
		waiting := ok && e.refs == 2
		l.mu.Unlock()
		if waiting {
			break
		}
		time.Sleep(time.Millisecond)
	}
	unlockA()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}
