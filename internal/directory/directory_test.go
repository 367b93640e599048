package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"taskdeck/api/internal/store"
)

type fakeUserLookup struct {
	users map[string]store.User
	calls int
}

func (f *fakeUserLookup) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	f.calls++
	if user, ok := f.users[userID]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func TestDisplayResolvesName(t *testing.T) {
	users := &fakeUserLookup{users: map[string]store.User{
		"usr_bob": {ID: "usr_bob", DisplayName: "Bob Miller"},
	}}
	dir := New(users, nil, zerolog.Nop())

	display, err := dir.Display(context.Background(), "usr_bob")
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if display.Name != "Bob Miller" || display.AvatarURL != "" {
		t.Fatalf("display = %+v", display)
	}
}

func TestDisplayCachesLookups(t *testing.T) {
	users := &fakeUserLookup{users: map[string]store.User{
		"usr_bob": {ID: "usr_bob", DisplayName: "Bob Miller"},
	}}
	dir := New(users, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if _, err := dir.Display(context.Background(), "usr_bob"); err != nil {
			t.Fatalf("Display round %d: %v", i, err)
		}
	}
	if users.calls != 1 {
		t.Fatalf("lookup calls = %d, want 1", users.calls)
	}
}

func TestDisplayUnknownUserFails(t *testing.T) {
	users := &fakeUserLookup{users: map[string]store.User{}}
	dir := New(users, nil, zerolog.Nop())

	if _, err := dir.Display(context.Background(), "usr_ghost"); err == nil {
		t.Fatal("unknown user should return an error")
	}
	// Failures are not cached; a later lookup retries.
	if users.calls != 1 {
		t.Fatalf("lookup calls = %d, want 1", users.calls)
	}
	if _, err := dir.Display(context.Background(), "usr_ghost"); err == nil {
		t.Fatal("unknown user should keep failing")
	}
	if users.calls != 2 {
		t.Fatalf("lookup calls = %d, want 2", users.calls)
	}
}
