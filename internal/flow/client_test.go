package flow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name        string
		creds       Credentials
		handler     http.HandlerFunc
		wantUser    string
		wantErr     bool
		errContains string
	}{
		{
			name:  "user login succeeds",
			creds: Credentials{SiteURL: "https://studio.example.com", AuthMethod: model.AuthUser, Login: "ana", Password: "pw"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				var body Credentials
				_ = json.NewDecoder(r.Body).Decode(&body)
				if body.Login != "ana" || body.Password != "pw" {
					writeJSON(w, http.StatusOK, LoginResponse{Envelope: Envelope{Error: "bad body"}})
					return
				}
				writeJSON(w, http.StatusOK, LoginResponse{Envelope: Envelope{Success: true}, UserName: "Ana Lima", UserID: 7})
			},
			wantUser: "Ana Lima",
		},
		{
			name:  "script login falls back to script name",
			creds: Credentials{SiteURL: "https://studio.example.com", AuthMethod: model.AuthScript, ScriptName: "comfy", APIKey: "k"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, LoginResponse{Envelope: Envelope{Success: true}})
			},
			wantUser: "comfy",
		},
		{
			name:  "remote rejects credentials",
			creds: Credentials{SiteURL: "https://studio.example.com", AuthMethod: model.AuthUser, Login: "ana", Password: "nope"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, LoginResponse{Envelope: Envelope{Error: "Invalid credentials"}})
			},
			wantErr:     true,
			errContains: "Invalid credentials",
		},
		{
			name:  "missing password never reaches the server",
			creds: Credentials{SiteURL: "https://studio.example.com", AuthMethod: model.AuthUser, Login: "ana"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				t.Errorf("unexpected request to %s", r.URL.Path)
			},
			wantErr:     true,
			errContains: "password is required",
		},
		{
			name:  "server error",
			creds: Credentials{SiteURL: "https://studio.example.com", AuthMethod: model.AuthScript, ScriptName: "comfy", APIKey: "k"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			wantErr:     true,
			errContains: "HTTP 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			session, err := c.Login(context.Background(), tt.creds)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got session %+v", session)
				}
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("expected *AuthError, got %T", err)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if session.UserName != tt.wantUser {
				t.Errorf("UserName = %q, want %q", session.UserName, tt.wantUser)
			}
			if session.SiteURL != tt.creds.SiteURL {
				t.Errorf("SiteURL = %q, want %q", session.SiteURL, tt.creds.SiteURL)
			}
		})
	}
}

func TestListShotsQuery(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shots" {
			t.Errorf("path = %s, want /shots", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
		writeJSON(w, http.StatusOK, ShotsResponse{
			Envelope: Envelope{Success: true},
			Shots:    []model.Entity{{ID: 10, Name: "SH010", Sequence: &model.EntityRef{ID: 2, Name: "SQ01"}}},
		})
	})

	shots, err := c.ListShots(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "projectId=1&sequenceId=2" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(shots) != 1 || shots[0].SequenceName() != "SQ01" {
		t.Errorf("unexpected shots: %+v", shots)
	}

	if _, err := c.ListShots(context.Background(), 1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "projectId=1" {
		t.Errorf("unfiltered query = %q", gotQuery)
	}
}

func TestListWithoutUpstreamReturnsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})
	ctx := context.Background()

	seqs, err := c.ListSequences(ctx, 0)
	if err != nil || seqs == nil || len(seqs) != 0 {
		t.Errorf("ListSequences(0) = %v, %v", seqs, err)
	}
	shots, err := c.ListShots(ctx, 0, 0)
	if err != nil || shots == nil || len(shots) != 0 {
		t.Errorf("ListShots(0) = %v, %v", shots, err)
	}
	tasks, err := c.ListTasks(ctx, 0)
	if err != nil || tasks == nil || len(tasks) != 0 {
		t.Errorf("ListTasks(0) = %v, %v", tasks, err)
	}
}

func TestListFailuresAreFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "unsuccessful envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, Envelope{Error: "No Flow session"})
			},
			want: "list projects: No Flow session",
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			},
			want: "unmarshal response",
		},
		{
			name: "non-2xx with envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, Envelope{Error: "not logged in"})
			},
			want: "HTTP 401: not logged in",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.ListProjects(context.Background())
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected *FetchError, got %T (%v)", err, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestTimeoutSurfacesAsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTimeout(20*time.Millisecond))
	_, err := c.ListTasks(context.Background(), 3)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T (%v)", err, err)
	}
}

func TestSetSelectionStatus(t *testing.T) {
	var got SelectRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/select" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, Envelope{Success: true})
	})

	err := c.SetSelectionStatus(context.Background(), model.KindTask, 42, SelectOptions{SetInProgress: true, AssignToMe: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := SelectRequest{Kind: model.KindTask, ID: 42, SetInProgress: true, AssignToMe: true}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}

	if err := c.SetSelectionStatus(context.Background(), model.KindProject, 1, SelectOptions{}); err == nil {
		t.Error("expected validation error for project kind")
	}
}

func TestPublish(t *testing.T) {
	valid := PublishRequest{ProjectID: 1, ShotID: 10, Code: "X_SH010_v001", FilePath: "/renders/x.exr", Status: PublishPendingReview}

	tests := []struct {
		name    string
		req     PublishRequest
		body    string
		wantID  string
		wantErr string
	}{
		{name: "numeric id", req: valid, body: `{"versionId": 901}`, wantID: "901"},
		{name: "string id", req: valid, body: `{"versionId": "902"}`, wantID: "902"},
		{name: "remote rejects", req: valid, body: `{"error": "Shot is locked"}`, wantErr: "Shot is locked"},
		{name: "missing id", req: valid, body: `{}`, wantErr: "no version id returned"},
		{
			name:    "invalid status",
			req:     PublishRequest{ProjectID: 1, ShotID: 10, Code: "c", FilePath: "/f", Status: "wip"},
			wantErr: "status must be one of [rev vwd apr]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			})
			id, err := c.Publish(context.Background(), tt.req)
			if tt.wantErr != "" {
				var pubErr *PublishError
				if !errors.As(err, &pubErr) {
					t.Fatalf("expected *PublishError, got %T (%v)", err, err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantID {
				t.Errorf("id = %q, want %q", id, tt.wantID)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	var loggedIn atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !loggedIn.Load() {
			writeJSON(w, http.StatusOK, StatusResponse{})
			return
		}
		writeJSON(w, http.StatusOK, StatusResponse{LoggedIn: true, UserName: "Ana", SiteURL: "https://s"})
	})

	session, err := c.Status(context.Background())
	if err != nil || session != nil {
		t.Fatalf("Status() = %+v, %v; want nil, nil", session, err)
	}

	loggedIn.Store(true)
	session, err = c.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session == nil || session.UserName != "Ana" {
		t.Errorf("Status() = %+v", session)
	}
}

func TestCredentialsLogValueMasksSecrets(t *testing.T) {
	creds := Credentials{SiteURL: "https://s", AuthMethod: model.AuthScript, ScriptName: "comfy", APIKey: "super-secret"}
	v := creds.LogValue().String()
	if strings.Contains(v, "super-secret") {
		t.Errorf("log value leaks api key: %s", v)
	}
	if Mask("") != "" {
		t.Error("empty secret should stay empty")
	}
	if Mask("a") != Mask("a much longer secret") {
		t.Error("mask should not reveal length")
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "quota", 10, "quota"},
		{"ascii", "abcdefgh", 5, "abcd…"},
		{"split rune", "abécd", 4, "ab…"},
		{"rune boundary", "abécd", 5, "abé…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.max)
			}
		})
	}
}
