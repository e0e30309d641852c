package domain

import (
	"testing"
)

func TestTableNames(t *testing.T) {
	if (Member{}).TableName() != "group_members" {
		t.Fatalf("Member.TableName() = %q", (Member{}).TableName())
	}
	if (StoredRecord{}).TableName() != "records" {
		t.Fatalf("StoredRecord.TableName() = %q", (StoredRecord{}).TableName())
	}
	if (ProcessedEvent{}).TableName() != "processed_events" {
		t.Fatalf("ProcessedEvent.TableName() = %q", (ProcessedEvent{}).TableName())
	}
}

func TestDefaultFortuneWeights(t *testing.T) {
	ws := DefaultFortuneWeights()
	if len(ws) != 6 {
		t.Fatalf("want 6 categories, got %d", len(ws))
	}
	sum := 0
	seen := map[string]bool{}
	for _, w := range ws {
		if w.Weight <= 0 {
			t.Fatalf("non-positive weight for %q", w.Name)
		}
		if seen[w.Name] {
			t.Fatalf("duplicate category %q", w.Name)
		}
		seen[w.Name] = true
		sum += w.Weight
	}
	if sum != 12 {
		t.Fatalf("weights sum = %d; want 12", sum)
	}

	// Callers get a fresh slice.
	ws[0].Weight = 99
	if DefaultFortuneWeights()[0].Weight == 99 {
		t.Fatalf("DefaultFortuneWeights must not share backing storage")
	}
}

func TestRecordIs(t *testing.T) {
	f := FortuneRecord{UserID: 1, GroupID: 2, Date: "2024-05-01", FortuneType: "平"}
	if !f.Is(1, 2, "2024-05-01") || f.Is(1, 2, "2024-05-02") || f.Is(2, 2, "2024-05-01") {
		t.Fatalf("FortuneRecord.Is mismatch")
	}

	l := LotteryRecord{InitiatorID: 1, GroupID: 2, Date: "2024-05-01", SelectedID: 3, DrawnIDs: []int64{3, 4}}
	if !l.Is(1, 2, "2024-05-01") || l.Is(1, 3, "2024-05-01") {
		t.Fatalf("LotteryRecord.Is mismatch")
	}
	if !l.HasDrawn(4) || l.HasDrawn(5) {
		t.Fatalf("HasDrawn mismatch")
	}
}

func TestMember_DisplayName(t *testing.T) {
	if got := (Member{Nickname: "nick", Card: "card"}).DisplayName(); got != "card" {
		t.Fatalf("got %q; want card", got)
	}
	if got := (Member{Nickname: "nick"}).DisplayName(); got != "nick" {
		t.Fatalf("got %q; want nick", got)
	}
}

func TestInbound_IsGroup(t *testing.T) {
	if (Inbound{SenderID: 1}).IsGroup() {
		t.Fatalf("private message reported as group")
	}
	if !(Inbound{SenderID: 1, GroupID: 5}).IsGroup() {
		t.Fatalf("group message not reported as group")
	}
}

func TestSegmentConstructors(t *testing.T) {
	cases := []struct {
		got  Segment
		want Segment
	}{
		{Text("hi"), Segment{Type: SegmentText, Text: "hi"}},
		{Image("a.png"), Segment{Type: SegmentImage, File: "a.png"}},
		{Reply(9), Segment{Type: SegmentReply, MessageID: 9}},
	}
	for i, c := range cases {
		if c.got != c.want {
			t.Fatalf("case %d: got %+v; want %+v", i, c.got, c.want)
		}
	}
}
