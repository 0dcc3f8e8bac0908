package core

import (
	"context"
	"testing"
	"time"
)

// allowAll admits every join; denyChannels denies specific channel ids.
type fakeAccess struct {
	deniedChannels map[int64]bool
}

func (f *fakeAccess) CanAccessChannel(_ context.Context, _, channelID int64) (bool, error) {
	return !f.deniedChannels[channelID], nil
}

func (f *fakeAccess) CanAccessWorkspace(_ context.Context, _, _ int64) (bool, error) {
	return true, nil
}

func startHub(t *testing.T, access Access, typingTTL time.Duration) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(access, typingTTL, nil)
	go hub.Run(ctx)
	return hub
}

func TestHubJoinBroadcastAndLeave(t *testing.T) {
	hub := startHub(t, nil, 0)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	room := ChannelRoom(7)
	hub.Submit(alice, &Command{Kind: CommandJoinChannel, ChannelID: 7})
	hub.Submit(bob, &Command{Kind: CommandJoinChannel, ChannelID: 7})

	// Alice sees bob join; join notices exclude the joiner itself.
	joinEv := mustEvent(t, alice.Events, EventMemberJoined)
	if joinEv.UserName != "bob" || joinEv.Room != room {
		t.Fatalf("unexpected join event: %+v", joinEv)
	}

	msg := &Message{ID: 42, Content: "hello", UserName: "alice", UserID: 1}
	hub.BroadcastMessageCreated(room, msg)

	// Both room members receive message broadcasts, sender included.
	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventMessageCreated)
		if ev.Message == nil || ev.Message.ID != 42 || ev.Message.Content != "hello" {
			t.Fatalf("unexpected message event for %s: %+v", c.Name, ev)
		}
	}

	hub.Submit(alice, &Command{Kind: CommandLeaveChannel, ChannelID: 7})
	leftEv := mustEvent(t, bob.Events, EventMemberLeft)
	if leftEv.UserName != "alice" || leftEv.Room != room {
		t.Fatalf("unexpected leave event: %+v", leftEv)
	}
}

func TestHubJoinDeniedForNonMember(t *testing.T) {
	hub := startHub(t, &fakeAccess{deniedChannels: map[int64]bool{9: true}}, 0)

	mallory := NewClient("m", 3, "mallory")
	hub.RegisterClient(mallory)

	hub.Submit(mallory, &Command{Kind: CommandJoinChannel, ChannelID: 9})

	ev := mustEvent(t, mallory.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeForbidden {
		t.Fatalf("expected forbidden error, got %+v", ev)
	}

	// Broadcasts to the denied room must not reach the client.
	hub.BroadcastMessageCreated(ChannelRoom(9), &Message{ID: 1, Content: "secret"})
	mustNoEvent(t, mallory.Events, EventMessageCreated, 150*time.Millisecond)
}

func TestHubJoinIsIdempotent(t *testing.T) {
	hub := startHub(t, nil, 0)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	hub.Submit(alice, &Command{Kind: CommandJoinChannel, ChannelID: 7})
	hub.Submit(bob, &Command{Kind: CommandJoinChannel, ChannelID: 7})
	mustEvent(t, alice.Events, EventMemberJoined)

	// Second join is a no-op: no duplicate notice, no duplicate delivery.
	hub.Submit(bob, &Command{Kind: CommandJoinChannel, ChannelID: 7})
	mustNoEvent(t, alice.Events, EventMemberJoined, 150*time.Millisecond)

	hub.BroadcastMessageDeleted(ChannelRoom(7), 5)
	ev := mustEvent(t, bob.Events, EventMessageDeleted)
	if ev.MessageID != 5 {
		t.Fatalf("unexpected deleted event: %+v", ev)
	}
	mustNoEvent(t, bob.Events, EventMessageDeleted, 150*time.Millisecond)
}

func TestHubTypingExcludesOriginator(t *testing.T) {
	hub := startHub(t, nil, 0)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	hub.Submit(alice, &Command{Kind: CommandJoinChannel, ChannelID: 7})
	hub.Submit(bob, &Command{Kind: CommandJoinChannel, ChannelID: 7})
	mustEvent(t, alice.Events, EventMemberJoined)

	hub.Submit(alice, &Command{Kind: CommandTypingStart, ChannelID: 7, UserName: "alice"})

	ev := mustEvent(t, bob.Events, EventTypingStart)
	if ev.UserName != "alice" {
		t.Fatalf("unexpected typing event: %+v", ev)
	}
	mustNoEvent(t, alice.Events, EventTypingStart, 150*time.Millisecond)

	// Repeated starts within the same burst do not re-broadcast.
	hub.Submit(alice, &Command{Kind: CommandTypingStart, ChannelID: 7, UserName: "alice"})
	mustNoEvent(t, bob.Events, EventTypingStart, 150*time.Millisecond)

	hub.Submit(alice, &Command{Kind: CommandTypingStop, ChannelID: 7, UserName: "alice"})
	stopEv := mustEvent(t, bob.Events, EventTypingStop)
	if stopEv.UserName != "alice" {
		t.Fatalf("unexpected stop event: %+v", stopEv)
	}
}

func TestHubTypingStopOnDisconnect(t *testing.T) {
	hub := startHub(t, nil, 0)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	hub.Submit(alice, &Command{Kind: CommandJoinChannel, ChannelID: 7})
	hub.Submit(bob, &Command{Kind: CommandJoinChannel, ChannelID: 7})
	mustEvent(t, alice.Events, EventMemberJoined)

	hub.Submit(alice, &Command{Kind: CommandTypingStart, ChannelID: 7, UserName: "alice"})
	mustEvent(t, bob.Events, EventTypingStart)

	// Abrupt disconnect mid-typing: peers still get the stop event.
	hub.UnregisterClient(alice)
	stopEv := mustEvent(t, bob.Events, EventTypingStop)
	if stopEv.UserName != "alice" {
		t.Fatalf("unexpected stop event: %+v", stopEv)
	}
}

func TestHubTypingExpiresAfterTTL(t *testing.T) {
	hub := startHub(t, nil, 100*time.Millisecond)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	hub.Submit(alice, &Command{Kind: CommandJoinChannel, ChannelID: 7})
	hub.Submit(bob, &Command{Kind: CommandJoinChannel, ChannelID: 7})
	mustEvent(t, alice.Events, EventMemberJoined)

	hub.Submit(alice, &Command{Kind: CommandTypingStart, ChannelID: 7, UserName: "alice"})
	mustEvent(t, bob.Events, EventTypingStart)

	// No stop signal; the sweep expires the entry.
	stopEv := mustEvent(t, bob.Events, EventTypingStop)
	if stopEv.UserName != "alice" {
		t.Fatalf("unexpected stop event: %+v", stopEv)
	}
}

func TestHubLegacyWorkspaceRoom(t *testing.T) {
	hub := startHub(t, nil, 0)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	hub.Submit(alice, &Command{Kind: CommandJoinWorkspace, WorkspaceID: 3})
	hub.Submit(bob, &Command{Kind: CommandJoinWorkspace, WorkspaceID: 3})
	mustEvent(t, alice.Events, EventMemberJoined)

	hub.BroadcastMessageUpdated(WorkspaceRoom(3), &Message{ID: 8, Content: "edited"})
	ev := mustEvent(t, bob.Events, EventMessageUpdated)
	if ev.Message == nil || ev.Message.Content != "edited" {
		t.Fatalf("unexpected update event: %+v", ev)
	}
}
