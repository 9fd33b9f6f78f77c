package picker_test

import (
	"context"
	"testing"
	"time"

	"photokiosk/internal/auth"
	"photokiosk/internal/picker"
	"photokiosk/internal/testsupport"
)

func newClient(t *testing.T, fake *testsupport.FakeGoogle) *picker.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithGoogle(fake))
	fake.SeedValidCredential(t, cfg)
	store := auth.NewFileStore(cfg.TokenPath())
	refresher, err := auth.NewRefresher(cfg, store, auth.WithHTTPClient(fake.Client()))
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}
	exec, err := auth.NewExecutor(cfg, store, refresher, auth.WithHTTPClient(fake.Client()))
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return picker.NewClient(cfg, exec)
}

func TestClientSessionLifecycle(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.PollInterval = "3s"
	client := newClient(t, fake)
	ctx := context.Background()

	info, err := client.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if info.ID != "session-1" || info.PickerURI == "" {
		t.Fatalf("unexpected session info %#v", info)
	}
	if until := time.Until(info.ExpireTime); until < 25*time.Minute {
		t.Fatalf("expire time not parsed: %v", info.ExpireTime)
	}
	if info.PollInterval != 3*time.Second || info.TimeoutIn != 30*time.Minute {
		t.Fatalf("polling config not parsed: %#v", info)
	}

	got, err := client.GetSession(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.MediaItemsSet {
		t.Fatal("selection should not be set yet")
	}

	if err := client.DeleteSession(ctx, info.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := client.GetSession(ctx, info.ID); auth.StatusCode(err) != 404 {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestClientListsAllPages(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.PageSize = 2
	fake.Items = []testsupport.FakeItem{
		{ID: "a", MimeType: "image/jpeg", Filename: "a.jpg"},
		{ID: "b", MimeType: "video/mp4", Filename: "b.mp4", TopLevel: true},
		{ID: "c", MimeType: "image/png", Filename: "c.png"},
	}
	client := newClient(t, fake)
	ctx := context.Background()

	info, err := client.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	items, err := client.ListAllMediaItems(ctx, info.ID)
	if err != nil {
		t.Fatalf("ListAllMediaItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	fake.Lock()
	listCalls := fake.ListRequests
	fake.Unlock()
	if listCalls != 2 {
		t.Fatalf("expected 2 list requests, got %d", listCalls)
	}
	top := items[1]
	if top.Locator() != fake.URL()+"/media/b" || top.ContentType() != "video/mp4" || top.DisplayName() != "b.mp4" {
		t.Fatalf("top-level fallbacks not applied: %#v", top)
	}
}
