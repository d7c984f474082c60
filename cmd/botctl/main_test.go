package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmerrifield20/campusbot/internal/identity"
	"github.com/jmerrifield20/campusbot/internal/users"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	serverURL, token = "", ""
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateBroadcast(t *testing.T) {
	tests := []struct {
		text    string
		wantErr bool
	}{
		{"@all Hello", false},
		{"@user:42 Hi $user", false},
		{"Hello everyone", true},
		{"@nobody Hello", true},
		{"@all   ", true},
	}
	for _, tc := range tests {
		if err := validateBroadcast(tc.text); (err != nil) != tc.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tc.text, err, tc.wantErr)
		}
	}
}

func TestRenderPreview(t *testing.T) {
	var out bytes.Buffer
	u := &users.User{FirstName: "Ada", Locale: "en_US"}
	now := time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

	if err := renderPreview(&out, "@registered Hi $user.first_name, it is $date.weekday $unknown", u, now); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "target: registered") {
		t.Errorf("target line missing:\n%s", got)
	}
	if !strings.Contains(got, "Hi Ada, it is Monday $unknown") {
		t.Errorf("rendered body missing:\n%s", got)
	}
}

func TestHashPasswordCmd(t *testing.T) {
	out, err := execute(t, "s3cret\n", "hash-password")
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	hash := strings.TrimSpace(out)
	if err := identity.CheckPassword(hash, "s3cret"); err != nil {
		t.Errorf("printed hash does not match: %v", err)
	}

	if _, err := execute(t, "\n", "hash-password"); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestBroadcastCmd(t *testing.T) {
	var got struct {
		Text      string `json:"text"`
		AdminPSID string `json:"admin_psid"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/broadcast" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "target": "all"})
	}))
	defer srv.Close()

	out, err := execute(t, "", "--server", srv.URL, "--token", "tok", "broadcast", "--admin", "42", "@all", "Hello", "$user")
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if got.Text != "@all Hello $user" || got.AdminPSID != "42" {
		t.Errorf("request = %+v", got)
	}
	if auth != "Bearer tok" {
		t.Errorf("Authorization = %q", auth)
	}
	if !strings.Contains(out, "broadcast to @all accepted") {
		t.Errorf("output = %q", out)
	}
}

func TestBroadcastCmd_rejectsMissingTarget(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	if _, err := execute(t, "", "--server", srv.URL, "broadcast", "--admin", "42", "Hello"); err == nil {
		t.Error("expected error for a message without @target")
	}
	if called {
		t.Error("invalid broadcast reached the server")
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "botctl dev") {
		t.Errorf("output = %q", out)
	}
}
