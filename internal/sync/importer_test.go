package sync

import (
	"context"
	"strings"
	"testing"

	"github.com/matheus3301/chatline/internal/bus"
)

const export = `{"chat":"a@s","id":"1","sender":"x@s","body":"one","ts":1000}
{"chat":"a@s","id":"2","sender":"x@s","body":"two","ts":2000}
{"chat":"b@s","id":"3","body":"mine","from_me":true,"ts":3000}
`

func TestImportResumesFromCheckpoint(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), "main", nil)
	im := NewImporter(e, NewReconciler(db, nil), 2, nil)

	res, err := im.Import(context.Background(), "export.jsonl", strings.NewReader(export))
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 3 || res.Skipped != 0 {
		t.Errorf("first run = %+v, want 3 imported", res)
	}

	longer := export + `{"chat":"b@s","id":"4","body":"later","ts":4000}` + "\n"
	res, err = im.Import(context.Background(), "export.jsonl", strings.NewReader(longer))
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 1 || res.Skipped != 3 {
		t.Errorf("second run = %+v, want 1 imported 3 skipped", res)
	}

	msgs, _ := db.ListMessages("b@s", 0, 10)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages in b@s, want 2", len(msgs))
	}
	if !msgs[1].FromMe || msgs[1].State != "sent" {
		t.Errorf("own message = %+v, want from_me with state sent", msgs[1])
	}
}

func TestImportRejectsBadLine(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), "main", nil)
	im := NewImporter(e, NewReconciler(db, nil), 10, nil)

	_, err := im.Import(context.Background(), "bad.jsonl", strings.NewReader(`{"chat":"a@s"}`+"\n"))
	if err == nil || !strings.Contains(err.Error(), "bad.jsonl:1") {
		t.Errorf("err = %v, want line reference", err)
	}
}
