package keycheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const fpr = "ABCDEF0123456789ABCDEF0123456789ABCDEF01"

func TestKeycheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/keycheck/"+fpr {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"uids":[{"name":"Alice <alice@example.org>","sigs_ok":3,"sigs_no_key":12}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.Keycheck(context.Background(), fpr)
	if err != nil {
		t.Fatalf("keycheck: %v", err)
	}
	if len(res.UIDs) != 1 || res.UIDs[0].SigsOK != 3 {
		t.Fatalf("result = %+v", res)
	}
}

func TestKeycheckErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such key", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Keycheck(context.Background(), fpr); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestKeycheckBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Keycheck(context.Background(), fpr); err == nil {
		t.Fatal("expected decode error")
	}
}
