package meloapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"melo/internal/domain"
)

func testPayload() domain.AudioPayload {
	return domain.AudioPayload{Data: []byte("RIFF....WAVE"), ContentType: "audio/wav", Filename: "recording.wav"}
}

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{})
	if c.BaseURL() != "http://localhost:8000/api" {
		t.Fatalf("unexpected base url: %q", c.BaseURL())
	}
	if c.http.Timeout != 0 {
		t.Fatalf("expected transport default timeout, got %s", c.http.Timeout)
	}

	c = NewClient(Config{BaseURL: "http://example.com/api/ "})
	if c.BaseURL() != "http://example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.BaseURL())
	}
}

func TestSubmitAnonymousUsesSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/search" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, ok := r.MultipartForm.Value["user_id"]; ok {
			t.Errorf("anonymous search must not send user_id")
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("anonymous search must not send a token")
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("missing audio part: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "RIFF....WAVE" || header.Filename != "recording.wav" {
				t.Errorf("unexpected audio part %q %q", header.Filename, string(data))
			}
		}
		_, _ = io.WriteString(w, `{"title":"X","artist":"Y","confidence":0.92}`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL + "/api"})
	result, err := c.Submit(context.Background(), domain.RecognitionRequest{Payload: testPayload()})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Title != "X" || result.Artist != "Y" || result.Confidence != 0.92 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Tier() != domain.ConfidenceTierSuccess {
		t.Fatalf("expected success tier, got %s", result.Tier())
	}
}

func TestSubmitAuthenticatedUsesRecognize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/recognize" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization: %q", got)
		}
		if got := r.FormValue("user_id"); got != "12" {
			t.Errorf("unexpected user_id: %q", got)
		}
		_, _ = io.WriteString(w, `{
			"title":"Song","artist":"Band","album":"LP","lyrics":"la la",
			"confidence":0.5,"youtube_url":"https://youtu.be/x",
			"yamnet_prediction":[{"label":"Music","score":0.8},{"label":"Singing","score":0.1}]
		}`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL + "/api"})
	identity := &domain.Identity{Token: "tok", User: domain.User{ID: "12"}}
	result, err := c.Submit(context.Background(), domain.RecognitionRequest{Payload: testPayload(), Identity: identity})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Album != "LP" || result.Lyrics != "la la" || result.YouTubeURL != "https://youtu.be/x" {
		t.Fatalf("unexpected optional fields: %+v", result)
	}
	if len(result.Predictions) != 2 || result.Predictions[0].Label != "Music" || result.Predictions[0].Score != 0.8 {
		t.Fatalf("unexpected predictions: %+v", result.Predictions)
	}
	if result.Tier() != domain.ConfidenceTierError {
		t.Fatalf("expected low-confidence tier, got %s", result.Tier())
	}
}

func TestSubmitErrorMessages(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "server message", status: http.StatusInternalServerError, body: `{"message":"server error"}`, want: "server error"},
		{name: "error field", status: http.StatusNotFound, body: `{"error":"aucune correspondance"}`, want: "aucune correspondance"},
		{name: "not json", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, want: "Échec de l'identification"},
		{name: "empty", status: http.StatusBadRequest, body: ``, want: "Échec de l'identification"},
		{name: "ok but not json", status: http.StatusOK, body: `nope`, want: "Échec de l'identification"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer server.Close()

			c := NewClient(Config{BaseURL: server.URL})
			_, err := c.Submit(context.Background(), domain.RecognitionRequest{Payload: testPayload()})
			if !errors.Is(err, domain.ErrRecognitionFailed) {
				t.Fatalf("expected recognition failure, got %v", err)
			}
			if err.Error() != tc.want {
				t.Fatalf("unexpected message: %q", err.Error())
			}
		})
	}
}

func TestSubmitNetworkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(Config{BaseURL: url})
	_, err := c.Submit(context.Background(), domain.RecognitionRequest{Payload: testPayload()})
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestSubmitRejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Submit(context.Background(), domain.RecognitionRequest{})
	if !errors.Is(err, domain.ErrRecognitionFailed) {
		t.Fatalf("expected recognition failure, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/login" || body["email"] != "a@b.c" || body["password"] != "secret" {
			t.Errorf("unexpected login request: %s %v", r.URL.Path, body)
		}
		if body["password"] == "wrong" {
			w.WriteHeader(http.StatusUnauthorized)
		}
		_, _ = io.WriteString(w, `{"message":"Connexion réussie","token":"jwt","user":{"id":3,"email":"a@b.c","name":"Ana"}}`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	identity, err := c.Login(context.Background(), "a@b.c", "secret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if identity.Token != "jwt" || identity.User.ID != "3" || identity.User.Name != "Ana" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "rejected", status: http.StatusUnauthorized, body: `{"message":"Email ou mot de passe invalide"}`, want: "Email ou mot de passe invalide"},
		{name: "rejected without message", status: http.StatusUnauthorized, body: `{}`, want: "Login failed"},
		{name: "missing token", status: http.StatusOK, body: `{"user_id":3}`, want: "Login failed"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer server.Close()

			_, err := NewClient(Config{BaseURL: server.URL}).Login(context.Background(), "a@b.c", "pw")
			if domain.CodeOf(err, "") != domain.ErrorCodeAuth || err.Error() != tc.want {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "taken@b.c" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"Email déjà utilisé"}`)
			return
		}
		if body["name"] != "Ana" {
			t.Errorf("unexpected register body: %v", body)
		}
		_, _ = io.WriteString(w, `{"message":"Inscription réussie"}`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	if err := c.Register(context.Background(), "Ana", "a@b.c", "secret"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	err := c.Register(context.Background(), "Ana", "taken@b.c", "secret")
	if err == nil || err.Error() != "Email déjà utilisé" {
		t.Fatalf("expected server message, got %v", err)
	}
}

func TestHistoryCRUD(t *testing.T) {
	t.Parallel()

	var saved map[string]string
	var deletedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/history/42":
			_, _ = io.WriteString(w, `[
				{"title":"A - One","paroles":"one","date":"2024-01-01T10:00:00"},
				{"id":9,"title":"B - Two","lyrics":"two","date":"2024-01-02T10:00:00","confidence":0.8,"artist":"B"}
			]`)
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/history/"):
			deletedPath = r.URL.Path
			if r.URL.Path == "/history/404" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{}`)
				return
			}
			_, _ = io.WriteString(w, `{"message":"ok"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/history":
			_ = json.NewDecoder(r.Body).Decode(&saved)
			_, _ = io.WriteString(w, `{"message":"Ajout réussi"}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})

	entries, err := c.ListHistory(context.Background(), "42")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "1" || entries[0].Lyrics != "one" || entries[0].Confidence != 1.0 || entries[0].Timestamp != "2024-01-01T10:00:00" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].ID != "9" || entries[1].Lyrics != "two" || entries[1].Confidence != 0.8 || entries[1].Artist != "B" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}

	if err := c.DeleteHistory(context.Background(), "9"); err != nil || deletedPath != "/history/9" {
		t.Fatalf("delete failed: %v path=%s", err, deletedPath)
	}
	err = c.DeleteHistory(context.Background(), "404")
	if err == nil || err.Error() != "Échec de la suppression" {
		t.Fatalf("expected delete fallback message, got %v", err)
	}

	if err := c.SaveHistory(context.Background(), domain.RecognitionResult{Title: "Song", Artist: "Band"}, "42"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if saved["title"] != "Band - Song" || saved["paroles"] != "Paroles non disponibles" || saved["user_id"] != "42" {
		t.Fatalf("unexpected save payload: %v", saved)
	}
}
