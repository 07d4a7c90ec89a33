package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/swipewise/authsession"
)

func TestMemoryStoreCreateAndLookup(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a, err := s.CreateAccount(ctx, authsession.NewAccount{
		Name: "Ann", Email: "Ann@Example.com", PasswordHash: "h", Salt: []byte{1, 2},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.AccountByEmail(ctx, "  ann@example.COM ")
	if err != nil {
		t.Fatalf("by email: %v", err)
	}
	if got.ID != a.ID || got.PasswordHash != "h" {
		t.Fatalf("unexpected account %+v", got)
	}

	byID, err := s.AccountByID(ctx, a.ID)
	if err != nil || byID.Email != "Ann@Example.com" {
		t.Fatalf("by id: %+v (%v)", byID, err)
	}

	if _, err := s.CreateAccount(ctx, authsession.NewAccount{Email: "ANN@example.com"}); !errors.Is(err, authsession.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if _, err := s.AccountByID(ctx, "999"); !errors.Is(err, authsession.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	a := s.Put(authsession.Account{Email: "a@b.c", Salt: []byte{1}})

	got, _ := s.AccountByID(context.Background(), a.ID)
	got.Salt[0] = 9
	got.Email = "changed"

	again, _ := s.AccountByID(context.Background(), a.ID)
	if again.Salt[0] != 1 || again.Email != "a@b.c" {
		t.Fatalf("stored account was aliased: %+v", again)
	}
}

func TestMemoryStoreGuestPromotion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	guest, err := s.GuestAccount(ctx, "dev-1")
	if err != nil {
		t.Fatalf("guest: %v", err)
	}
	again, err := s.GuestAccount(ctx, "dev-1")
	if err != nil || again.ID != guest.ID {
		t.Fatalf("expected same guest account, got %+v (%v)", again, err)
	}

	promoted, err := s.CreateAccount(ctx, authsession.NewAccount{Name: "Bo", Email: "bo@x.io", DeviceID: "dev-1", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if promoted.ID != guest.ID || promoted.GuestID != "dev-1" {
		t.Fatalf("expected guest to be promoted in place, got %+v", promoted)
	}

	// The device is claimed; a second registration from it gets a new row.
	other, err := s.CreateAccount(ctx, authsession.NewAccount{Email: "cy@x.io", DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if other.ID == promoted.ID || other.GuestID != "" {
		t.Fatalf("unexpected second account %+v", other)
	}
	if g, _ := s.GuestAccount(ctx, "dev-1"); g.ID != promoted.ID {
		t.Fatalf("guest lookup moved to %s", g.ID)
	}
}

func TestMemoryStoreGuestRequiresDevice(t *testing.T) {
	if _, err := NewMemoryStore().GuestAccount(context.Background(), " "); !errors.Is(err, authsession.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestMemoryStoreCredentialAndLogin(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := s.Put(authsession.Account{Email: "a@b.c"})

	if err := s.UpdateCredential(ctx, a.ID, "new", []byte{7}); err != nil {
		t.Fatalf("update: %v", err)
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := s.TouchLogin(ctx, a.ID, at); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ := s.AccountByID(ctx, a.ID)
	if got.PasswordHash != "new" || !got.LastLoginAt.Equal(at) {
		t.Fatalf("unexpected account %+v", got)
	}

	if err := s.UpdateCredential(ctx, "nope", "x", nil); !errors.Is(err, authsession.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetStatus(a.ID, authsession.AccountDisabled); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if got, _ := s.AccountByID(ctx, a.ID); got.Status != authsession.AccountDisabled {
		t.Fatalf("expected disabled, got %v", got.Status)
	}
}

func TestMemoryStoreDevices(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := s.Put(authsession.Account{Email: "a@b.c"})

	if err := s.UpsertDevice(ctx, authsession.Device{AccountID: "missing", DeviceID: "d"}); !errors.Is(err, authsession.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown account, got %v", err)
	}
	for _, typ := range []string{"ios", "android"} {
		if err := s.UpsertDevice(ctx, authsession.Device{AccountID: a.ID, DeviceID: "d1", DeviceType: typ}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	devices := s.Devices(a.ID)
	if len(devices) != 1 || devices[0].DeviceType != "android" {
		t.Fatalf("unexpected devices %+v", devices)
	}

	if err := s.DeleteDevice(ctx, a.ID, "d1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteDevice(ctx, a.ID, "d1"); !errors.Is(err, authsession.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStoreConcurrentGuestLogins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ids := make(chan string, 16)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := s.GuestAccount(ctx, "shared")
			if err != nil {
				t.Errorf("guest: %v", err)
				return
			}
			ids <- a.ID
		}()
	}
	wg.Wait()
	close(ids)

	first := ""
	for id := range ids {
		if first == "" {
			first = id
		}
		if id != first {
			t.Fatalf("expected one guest account, saw %s and %s", first, id)
		}
	}
}

func TestMemoryStoreHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryStore().AccountByEmail(ctx, "a@b.c"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
