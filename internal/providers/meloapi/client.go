package meloapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"melo/internal/domain"
)

const (
	defaultBaseURL = "http://localhost:8000/api"

	maxErrorBody = 64 << 10

	missingLyrics = "Paroles non disponibles"

	registerFailed = "Échec de l'inscription"
	deleteFailed   = "Échec de la suppression"
	saveFailed     = "Échec de l'enregistrement dans l'historique"
)

// Config controls the remote API endpoint.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements the recognition, auth and history ports over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	return NewClientWithHTTP(cfg, nil)
}

func NewClientWithHTTP(cfg Config, httpClient *http.Client) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{baseURL: base, http: httpClient}
}

// BaseURL is the resolved API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit posts the capture to /recognize when an identity is given, else /search.
func (c *Client) Submit(ctx context.Context, req domain.RecognitionRequest) (domain.RecognitionResult, error) {
	body, contentType, err := buildRecognitionForm(req)
	if err != nil {
		return domain.RecognitionResult{}, domain.NewError(domain.ErrorCodeRecognitionFailed, err)
	}

	endpoint := "/search"
	if req.Identity != nil {
		endpoint = "/recognize"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return domain.RecognitionResult{}, domain.NewError(domain.ErrorCodeRecognitionFailed, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if req.Identity != nil && req.Identity.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Identity.Token)
	}

	var result domain.RecognitionResult
	if err := c.do(httpReq, domain.ErrorCodeRecognitionFailed, "", &result); err != nil {
		return domain.RecognitionResult{}, err
	}
	return result, nil
}

func buildRecognitionForm(req domain.RecognitionRequest) (*bytes.Buffer, string, error) {
	if len(req.Payload.Data) == 0 {
		return nil, "", errors.New("empty audio payload")
	}

	filename := req.Payload.Filename
	if filename == "" {
		filename = "recording.wav"
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	part, err := form.CreateFormFile("audio", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(req.Payload.Data); err != nil {
		return nil, "", fmt.Errorf("write audio part: %w", err)
	}
	if req.Identity != nil {
		if err := form.WriteField("user_id", req.Identity.User.ID.String()); err != nil {
			return nil, "", fmt.Errorf("write user_id: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return body, form.FormDataContentType(), nil
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Login exchanges credentials for a bearer token and profile.
func (c *Client) Login(ctx context.Context, email string, password string) (domain.Identity, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp loginResponse
	if err := c.postJSON(ctx, "/login", payload, domain.ErrorCodeAuth, "", &resp); err != nil {
		return domain.Identity{}, err
	}
	if resp.Token == "" || resp.User == nil || resp.User.ID == "" {
		return domain.Identity{}, domain.NewError(domain.ErrorCodeAuth, errors.New("login response is missing token or user"))
	}
	return domain.Identity{Token: resp.Token, User: *resp.User}, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, name string, email string, password string) error {
	payload := map[string]string{"name": name, "email": email, "password": password}
	return c.postJSON(ctx, "/register", payload, domain.ErrorCodeAuth, registerFailed, nil)
}

type historyItem struct {
	ID         domain.ID `json:"id"`
	Title      string    `json:"title"`
	Paroles    string    `json:"paroles"`
	Lyrics     string    `json:"lyrics"`
	Date       string    `json:"date"`
	Confidence *float64  `json:"confidence"`
	Artist     string    `json:"artist"`
}

// ListHistory fetches a user's past searches.
func (c *Client) ListHistory(ctx context.Context, userID domain.ID) ([]domain.HistoryEntry, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+url.PathEscape(userID.String()), nil)
	if err != nil {
		return nil, domain.NewError(domain.ErrorCodeHistory, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	var items []historyItem
	if err := c.do(httpReq, domain.ErrorCodeHistory, "", &items); err != nil {
		return nil, err
	}

	entries := make([]domain.HistoryEntry, 0, len(items))
	for index, item := range items {
		entries = append(entries, toHistoryEntry(index, item))
	}
	return entries, nil
}

func toHistoryEntry(index int, item historyItem) domain.HistoryEntry {
	entry := domain.HistoryEntry{
		ID:         item.ID,
		Title:      item.Title,
		Lyrics:     item.Paroles,
		Timestamp:  item.Date,
		Confidence: 1.0,
		Artist:     item.Artist,
	}
	if entry.ID == "" {
		entry.ID = domain.ID(fmt.Sprintf("%d", index+1))
	}
	if entry.Lyrics == "" {
		entry.Lyrics = item.Lyrics
	}
	if item.Confidence != nil {
		entry.Confidence = *item.Confidence
	}
	return entry
}

// DeleteHistory removes one history entry.
func (c *Client) DeleteHistory(ctx context.Context, id domain.ID) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/history/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return domain.NewError(domain.ErrorCodeHistory, err)
	}
	return c.do(httpReq, domain.ErrorCodeHistory, deleteFailed, nil)
}

// SaveHistory records a recognized track for a user.
func (c *Client) SaveHistory(ctx context.Context, result domain.RecognitionResult, userID domain.ID) error {
	lyrics := result.Lyrics
	if lyrics == "" {
		lyrics = missingLyrics
	}
	payload := map[string]string{
		"title":   fmt.Sprintf("%s - %s", result.Artist, result.Title),
		"paroles": lyrics,
		"user_id": userID.String(),
	}
	return c.postJSON(ctx, "/history", payload, domain.ErrorCodeHistory, saveFailed, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, code domain.ErrorCode, fallback string, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return domain.NewError(code, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return domain.NewError(code, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	return c.do(httpReq, code, fallback, out)
}

// do sends the request and decodes a JSON body into out. Transport failures
// are network errors; non-2xx responses carry the server message, else fallback,
// else the code's default message.
func (c *Client) do(httpReq *http.Request, code domain.ErrorCode, fallback string, out any) error {
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.NewError(domain.ErrorCodeNetwork, fmt.Errorf("%s %s: %w", httpReq.Method, httpReq.URL.Path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		message := serverMessage(raw)
		if message == "" {
			message = fallback
		}
		return domain.NewErrorMessage(code, message, fmt.Errorf("%s %s: status %d", httpReq.Method, httpReq.URL.Path, resp.StatusCode))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewError(code, fmt.Errorf("decode %s response: %w", httpReq.URL.Path, err))
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func serverMessage(raw []byte) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(body.Error)
}
