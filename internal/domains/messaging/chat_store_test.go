package messaging

import (
	"testing"
	"time"

	"linkgrid/go-client/pkg/models"
)

var storeBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore() *ChatStore {
	store := NewChatStore("alice")
	store.UpsertChat(models.Chat{ID: "chat-1", ParticipantIDs: [2]string{"alice", "bob"}})
	return store
}

func remoteMsg(id string, offset time.Duration) models.Message {
	return models.Message{
		ID:             id,
		ChatID:         "chat-1",
		SenderID:       "bob",
		Content:        "hello " + id,
		Type:           models.MessageTypeText,
		DeliveryStatus: models.DeliveryStatusDelivered,
		SentAt:         storeBase.Add(offset),
	}
}

func localMsg(id string, offset time.Duration) models.Message {
	return models.Message{
		ID:             id,
		ChatID:         "chat-1",
		SenderID:       "alice",
		Content:        "hi " + id,
		Type:           models.MessageTypeText,
		DeliveryStatus: models.DeliveryStatusSending,
		SentAt:         storeBase.Add(offset),
	}
}

func TestReconcileSendSwapsInPlace(t *testing.T) {
	store := newTestStore()
	store.ApplyRemote(remoteMsg("m1", 0))
	if err := store.AppendLocal(localMsg("tmp-msg-1", time.Minute)); err != nil {
		t.Fatalf("AppendLocal: %v", err)
	}
	store.ApplyRemote(remoteMsg("m2", 2*time.Minute))

	server := models.Message{
		ID:             "srv-77",
		ChatID:         "chat-1",
		SenderID:       "alice",
		Content:        "hi tmp-msg-1",
		Type:           models.MessageTypeText,
		DeliveryStatus: models.DeliveryStatusSent,
		SentAt:         storeBase.Add(time.Minute + time.Second),
	}
	if err := store.ReconcileSend("chat-1", "tmp-msg-1", server); err != nil {
		t.Fatalf("ReconcileSend: %v", err)
	}

	msgs := store.Messages("chat-1")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages after reconcile, got %d", len(msgs))
	}
	if msgs[1].ID != "srv-77" {
		t.Fatalf("server record should occupy the temp record position, got %s at index 1", msgs[1].ID)
	}
	for _, msg := range msgs {
		if msg.ID == "tmp-msg-1" {
			t.Fatal("temp record still present after reconcile")
		}
	}
	if _, ok := store.Message("chat-1", "tmp-msg-1"); ok {
		t.Fatal("temp id still resolvable")
	}
	if got, _ := store.Message("chat-1", "srv-77"); got.DeliveryStatus != models.DeliveryStatusSent {
		t.Fatalf("reconciled status = %s, want sent", got.DeliveryStatus)
	}
}

func TestReconcileSendDefaultsStatusToSent(t *testing.T) {
	store := newTestStore()
	if err := store.AppendLocal(localMsg("tmp-msg-1", 0)); err != nil {
		t.Fatalf("AppendLocal: %v", err)
	}
	server := localMsg("srv-1", 0)
	server.DeliveryStatus = ""
	if err := store.ReconcileSend("chat-1", "tmp-msg-1", server); err != nil {
		t.Fatalf("ReconcileSend: %v", err)
	}
	if got, _ := store.Message("chat-1", "srv-1"); got.DeliveryStatus != models.DeliveryStatusSent {
		t.Fatalf("status = %s, want sent", got.DeliveryStatus)
	}
}

func TestReconcileSendRekeysTempChat(t *testing.T) {
	store := NewChatStore("alice")
	chat := store.EnsureDirectChat("bob", func() string { return "tmp-chat-1" })
	if chat.ID != "tmp-chat-1" {
		t.Fatalf("placeholder chat id = %s", chat.ID)
	}
	temp := localMsg("tmp-msg-1", 0)
	temp.ChatID = "tmp-chat-1"
	if err := store.AppendLocal(temp); err != nil {
		t.Fatalf("AppendLocal: %v", err)
	}

	server := models.Message{
		ID:             "srv-1",
		ChatID:         "chat-real",
		SenderID:       "alice",
		Content:        temp.Content,
		Type:           models.MessageTypeText,
		DeliveryStatus: models.DeliveryStatusSent,
		SentAt:         temp.SentAt,
	}
	if err := store.ReconcileSend("tmp-chat-1", "tmp-msg-1", server); err != nil {
		t.Fatalf("ReconcileSend: %v", err)
	}

	if _, ok := store.Chat("tmp-chat-1"); ok {
		t.Fatal("placeholder chat survived rekey")
	}
	real, ok := store.Chat("chat-real")
	if !ok {
		t.Fatal("rekeyed chat missing")
	}
	if real.LastMessage == nil || real.LastMessage.ID != "srv-1" {
		t.Fatal("last message not carried over to rekeyed chat")
	}
	if got, ok := store.ChatWithUser("bob"); !ok || got.ID != "chat-real" {
		t.Fatalf("pair lookup after rekey = %+v ok=%v", got, ok)
	}
}

func TestReconcileSendAfterPushEcho(t *testing.T) {
	store := newTestStore()
	if err := store.AppendLocal(localMsg("tmp-msg-1", 0)); err != nil {
		t.Fatalf("AppendLocal: %v", err)
	}

	// The push echo of the send arrives before the HTTP ack.
	echo := models.Message{
		ID:             "srv-1",
		ChatID:         "chat-1",
		SenderID:       "alice",
		Content:        "hi tmp-msg-1",
		Type:           models.MessageTypeText,
		DeliveryStatus: models.DeliveryStatusDelivered,
		SentAt:         storeBase,
	}
	store.ApplyRemote(echo)

	ack := echo
	ack.DeliveryStatus = models.DeliveryStatusSent
	if err := store.ReconcileSend("chat-1", "tmp-msg-1", ack); err != nil {
		t.Fatalf("ReconcileSend: %v", err)
	}

	msgs := store.Messages("chat-1")
	count := 0
	for _, msg := range msgs {
		if msg.ID == "srv-1" {
			count++
		}
		if msg.ID == "tmp-msg-1" {
			t.Fatal("temp record still present after reconcile")
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one srv-1 record, got %d (total %d)", count, len(msgs))
	}
	got, ok := store.Message("chat-1", "srv-1")
	if !ok {
		t.Fatal("index lost the server record")
	}
	if got.DeliveryStatus != models.DeliveryStatusDelivered {
		t.Fatalf("echoed status regressed to %s", got.DeliveryStatus)
	}
}

func TestApplyRemoteInsertsSorted(t *testing.T) {
	store := newTestStore()
	store.ApplyRemote(remoteMsg("m3", 3*time.Minute))
	store.ApplyRemote(remoteMsg("m1", time.Minute))
	store.ApplyRemote(remoteMsg("m2", 2*time.Minute))

	msgs := store.Messages("chat-1")
	want := []string{"m1", "m2", "m3"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, msgs[i].ID, id)
		}
	}
}

func TestApplyRemoteTieBreaksOnID(t *testing.T) {
	store := newTestStore()
	store.ApplyRemote(remoteMsg("b", 0))
	store.ApplyRemote(remoteMsg("a", 0))
	msgs := store.Messages("chat-1")
	if msgs[0].ID != "a" || msgs[1].ID != "b" {
		t.Fatalf("tie-break order = %s,%s", msgs[0].ID, msgs[1].ID)
	}
}

func TestApplyRemoteDuplicateKeepsDeliveryStatus(t *testing.T) {
	store := newTestStore()
	store.ApplyRemote(remoteMsg("m1", 0))
	if !store.AdvanceDelivery("chat-1", "m1", models.DeliveryStatusRead) {
		t.Fatal("AdvanceDelivery to read refused")
	}

	again := remoteMsg("m1", 0)
	again.DeliveryStatus = models.DeliveryStatusDelivered
	store.ApplyRemote(again)

	if got, _ := store.Message("chat-1", "m1"); got.DeliveryStatus != models.DeliveryStatusRead {
		t.Fatalf("delivery status regressed to %s", got.DeliveryStatus)
	}
	if len(store.Messages("chat-1")) != 1 {
		t.Fatal("duplicate id created a second record")
	}
}

func TestApplyRemoteUnreadOwnership(t *testing.T) {
	store := newTestStore()
	store.ApplyRemote(remoteMsg("m1", 0))
	store.ApplyRemote(remoteMsg("m2", time.Minute))

	own := remoteMsg("m3", 2*time.Minute)
	own.SenderID = "alice"
	store.ApplyRemote(own)

	chat, _ := store.Chat("chat-1")
	if chat.UnreadCount != 2 {
		t.Fatalf("unread = %d, want 2 (own messages never count)", chat.UnreadCount)
	}

	// Re-delivery of a known message must not double count.
	store.ApplyRemote(remoteMsg("m1", 0))
	chat, _ = store.Chat("chat-1")
	if chat.UnreadCount != 2 {
		t.Fatalf("unread after duplicate = %d, want 2", chat.UnreadCount)
	}

	prev, err := store.MarkChatRead("chat-1")
	if err != nil {
		t.Fatalf("MarkChatRead: %v", err)
	}
	if prev != 2 {
		t.Fatalf("previous unread = %d, want 2", prev)
	}
	chat, _ = store.Chat("chat-1")
	if chat.UnreadCount != 0 {
		t.Fatalf("unread after read = %d", chat.UnreadCount)
	}
}

func TestApplyRemoteSkipsAlreadyReadMessages(t *testing.T) {
	store := newTestStore()
	old := remoteMsg("m1", 0)
	old.DeliveryStatus = models.DeliveryStatusRead
	store.ApplyRemote(old)

	chat, _ := store.Chat("chat-1")
	if chat.UnreadCount != 0 {
		t.Fatalf("read message raised unread: %d", chat.UnreadCount)
	}
}

func TestHistoryReplayKeepsServerUnread(t *testing.T) {
	store := NewChatStore("alice")
	store.UpsertChat(models.Chat{
		ID:             "chat-1",
		ParticipantIDs: [2]string{"alice", "bob"},
		UnreadCount:    1,
	})

	read1 := remoteMsg("m1", 0)
	read1.DeliveryStatus = models.DeliveryStatusRead
	read2 := remoteMsg("m2", time.Minute)
	read2.DeliveryStatus = models.DeliveryStatusRead
	store.ApplyHistory(read1)
	store.ApplyHistory(read2)
	store.ApplyHistory(remoteMsg("m3", 2*time.Minute))
	store.AdoptUnread("chat-1", 1)

	chat, _ := store.Chat("chat-1")
	if chat.UnreadCount != 1 {
		t.Fatalf("unread after history replay = %d, want 1", chat.UnreadCount)
	}
	if len(store.Messages("chat-1")) != 3 {
		t.Fatal("history messages not applied")
	}

	// A live event after the replay still counts.
	store.ApplyRemote(remoteMsg("m4", 3*time.Minute))
	chat, _ = store.Chat("chat-1")
	if chat.UnreadCount != 2 {
		t.Fatalf("unread after live event = %d, want 2", chat.UnreadCount)
	}
}

func TestApplyRemoteCreatesImplicitChat(t *testing.T) {
	store := NewChatStore("alice")
	msg := remoteMsg("m1", 0)
	msg.ChatID = "chat-new"
	store.ApplyRemote(msg)

	chat, ok := store.Chat("chat-new")
	if !ok {
		t.Fatal("implicit chat not created")
	}
	if chat.UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1", chat.UnreadCount)
	}
	if got, ok := store.ChatWithUser("bob"); !ok || got.ID != "chat-new" {
		t.Fatal("pair index not populated for implicit chat")
	}
}

func TestUpsertChatPreservesUnread(t *testing.T) {
	store := newTestStore()
	store.ApplyRemote(remoteMsg("m1", 0))
	store.UpsertChat(models.Chat{ID: "chat-1", ParticipantIDs: [2]string{"alice", "bob"}, UnreadCount: 0})
	chat, _ := store.Chat("chat-1")
	if chat.UnreadCount != 1 {
		t.Fatalf("server refresh clobbered local unread: %d", chat.UnreadCount)
	}
}

func TestMarkSendFailedOnlyFromSending(t *testing.T) {
	store := newTestStore()
	if err := store.AppendLocal(localMsg("tmp-1", 0)); err != nil {
		t.Fatalf("AppendLocal: %v", err)
	}
	if !store.MarkSendFailed("chat-1", "tmp-1") {
		t.Fatal("sending message should be failable")
	}
	if store.MarkSendFailed("chat-1", "tmp-1") {
		t.Fatal("failed is terminal")
	}

	store.ApplyRemote(remoteMsg("m1", time.Minute))
	if store.MarkSendFailed("chat-1", "m1") {
		t.Fatal("delivered message must not become failed")
	}
}

func TestAdvanceDeliveryMonotonic(t *testing.T) {
	store := newTestStore()
	msg := remoteMsg("m1", 0)
	msg.SenderID = "alice"
	msg.DeliveryStatus = models.DeliveryStatusSent
	store.ApplyRemote(msg)

	if !store.AdvanceDelivery("chat-1", "m1", models.DeliveryStatusDelivered) {
		t.Fatal("sent -> delivered refused")
	}
	if !store.AdvanceDelivery("chat-1", "m1", models.DeliveryStatusRead) {
		t.Fatal("delivered -> read refused")
	}
	if store.AdvanceDelivery("chat-1", "m1", models.DeliveryStatusDelivered) {
		t.Fatal("read regressed to delivered")
	}
	if store.AdvanceDelivery("chat-1", "m1", models.DeliveryStatusRead) {
		t.Fatal("self-transition accepted")
	}
}

func TestApplyEditAndDelete(t *testing.T) {
	store := newTestStore()
	store.ApplyRemote(remoteMsg("m1", 0))

	if !store.ApplyEdit("chat-1", "m1", "edited") {
		t.Fatal("edit refused")
	}
	got, _ := store.Message("chat-1", "m1")
	if got.Content != "edited" || !got.IsEdited {
		t.Fatalf("after edit: %+v", got)
	}

	if !store.ApplyDelete("chat-1", "m1", true) {
		t.Fatal("delete refused")
	}
	got, _ = store.Message("chat-1", "m1")
	if !got.IsDeleted || got.Content != "" {
		t.Fatalf("delete for all kept content: %+v", got)
	}
	if store.ApplyEdit("chat-1", "m1", "late edit") {
		t.Fatal("deleted message accepted an edit")
	}
}

func TestApplyDeleteLocalKeepsContent(t *testing.T) {
	store := newTestStore()
	store.ApplyRemote(remoteMsg("m1", 0))
	store.ApplyDelete("chat-1", "m1", false)
	got, _ := store.Message("chat-1", "m1")
	if !got.IsDeleted || got.Content == "" {
		t.Fatalf("local delete should hide, not clear: %+v", got)
	}
}

func TestRemoveMessageReindexes(t *testing.T) {
	store := newTestStore()
	store.ApplyRemote(remoteMsg("m1", 0))
	store.ApplyRemote(remoteMsg("m2", time.Minute))
	store.ApplyRemote(remoteMsg("m3", 2*time.Minute))

	if !store.RemoveMessage("chat-1", "m2") {
		t.Fatal("RemoveMessage refused")
	}
	if got, _ := store.Message("chat-1", "m3"); got.ID != "m3" {
		t.Fatal("index stale after removal")
	}
	msgs := store.Messages("chat-1")
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m3" {
		t.Fatalf("messages after removal: %+v", msgs)
	}
}

func TestPendingSends(t *testing.T) {
	store := newTestStore()
	store.UpsertChat(models.Chat{ID: "chat-2", ParticipantIDs: [2]string{"alice", "carol"}})
	if err := store.AppendLocal(localMsg("tmp-1", time.Minute)); err != nil {
		t.Fatalf("AppendLocal: %v", err)
	}
	other := localMsg("tmp-2", 0)
	other.ChatID = "chat-2"
	if err := store.AppendLocal(other); err != nil {
		t.Fatalf("AppendLocal: %v", err)
	}
	store.ApplyRemote(remoteMsg("m1", 2*time.Minute))

	pending := store.PendingSends()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].ID != "tmp-2" || pending[1].ID != "tmp-1" {
		t.Fatalf("pending order: %s, %s", pending[0].ID, pending[1].ID)
	}
}

func TestImportStateParksInFlightSends(t *testing.T) {
	store := newTestStore()
	if err := store.AppendLocal(localMsg("tmp-1", 0)); err != nil {
		t.Fatalf("AppendLocal: %v", err)
	}
	store.ApplyRemote(remoteMsg("m1", time.Minute))
	chats, messages := store.ExportState()

	restored := NewChatStore("alice")
	restored.ImportState(chats, messages)

	got, ok := restored.Message("chat-1", "tmp-1")
	if !ok {
		t.Fatal("in-flight message lost on import")
	}
	if got.DeliveryStatus != models.DeliveryStatusFailed {
		t.Fatalf("imported in-flight status = %s, want failed", got.DeliveryStatus)
	}
	if got, _ := restored.Message("chat-1", "m1"); got.DeliveryStatus != models.DeliveryStatusDelivered {
		t.Fatalf("settled message status changed on import: %s", got.DeliveryStatus)
	}
}

func TestChatsOrderedByActivity(t *testing.T) {
	store := newTestStore()
	store.UpsertChat(models.Chat{ID: "chat-2", ParticipantIDs: [2]string{"alice", "carol"}})
	store.ApplyRemote(remoteMsg("m1", 0))

	fresh := remoteMsg("m2", time.Hour)
	fresh.ChatID = "chat-2"
	fresh.SenderID = "carol"
	store.ApplyRemote(fresh)

	chats := store.Chats()
	if chats[0].ID != "chat-2" || chats[1].ID != "chat-1" {
		t.Fatalf("chat order: %s, %s", chats[0].ID, chats[1].ID)
	}
}
