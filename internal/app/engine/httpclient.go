package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
)

// APIClient is the Backend that talks to the mentorlink REST API.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ Backend = (*APIClient)(nil)

// NewAPIClient returns a client for baseURL authenticating with token. A nil httpClient
// uses a client with a 15 second timeout.
func NewAPIClient(baseURL, token string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: unreadable response (HTTP %d): %w", method, path, res.StatusCode, err)
	}
	if env.Code != 0 {
		return errs.FromWire(env.Code, env.Message, res.StatusCode)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: HTTP %d", method, path, res.StatusCode)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

func (c *APIClient) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

func (c *APIClient) postJSON(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(data), "application/json", out)
}

func studentQuery(studentID string) url.Values {
	if studentID == "" {
		return nil
	}
	return url.Values{"studentId": {studentID}}
}

func (c *APIClient) AvailableMentors(ctx context.Context) ([]user.User, error) {
	var out []user.User
	err := c.get(ctx, "/api/mentorship/available-mentors", nil, &out)
	return out, err
}

func (c *APIClient) AvailableStudents(ctx context.Context) ([]user.User, error) {
	var out []user.User
	err := c.get(ctx, "/api/mentorship/available-students", nil, &out)
	return out, err
}

func (c *APIClient) Mentees(ctx context.Context) ([]mentorship.Relationship, error) {
	var out []mentorship.Relationship
	err := c.get(ctx, "/api/mentorship/mentees", nil, &out)
	return out, err
}

func (c *APIClient) StudentMentor(ctx context.Context) (*mentorship.Relationship, error) {
	var out *mentorship.Relationship
	err := c.get(ctx, "/api/mentorship/student/mentor", nil, &out)
	return out, err
}

func (c *APIClient) Start(ctx context.Context, studentIDs []string, capacity int) ([]mentorship.Relationship, error) {
	in := map[string]any{"studentIds": studentIDs, "capacity": capacity}
	var out []mentorship.Relationship
	err := c.postJSON(ctx, "/api/mentorship/start", in, &out)
	return out, err
}

func (c *APIClient) End(ctx context.Context, menteeID string) (mentorship.Relationship, error) {
	var out mentorship.Relationship
	err := c.postJSON(ctx, "/api/mentorship/end", map[string]string{"menteeId": menteeID}, &out)
	return out, err
}

func (c *APIClient) Messages(ctx context.Context, studentID string) ([]mentorship.Message, error) {
	var out []mentorship.Message
	err := c.get(ctx, "/api/mentorship/messages", studentQuery(studentID), &out)
	return out, err
}

// Send posts JSON for text-only messages and a multipart form when a file is attached.
func (c *APIClient) Send(ctx context.Context, r SendRequest) (mentorship.Message, error) {
	var out mentorship.Message

	if r.Attachment == nil {
		in := map[string]string{"message": r.Body}
		if r.StudentID != "" {
			in["studentId"] = r.StudentID
		}
		err := c.postJSON(ctx, "/api/mentorship/messages", in, &out)
		return out, err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if r.Body != "" {
		if err := form.WriteField("message", r.Body); err != nil {
			return out, err
		}
	}
	if r.StudentID != "" {
		if err := form.WriteField("studentId", r.StudentID); err != nil {
			return out, err
		}
	}
	part, err := form.CreateFormFile("file", r.Attachment.Name)
	if err != nil {
		return out, err
	}
	if _, err := part.Write(r.Attachment.Data); err != nil {
		return out, err
	}
	if err := form.Close(); err != nil {
		return out, err
	}

	err = c.do(ctx, http.MethodPost, "/api/mentorship/messages", nil, &buf, form.FormDataContentType(), &out)
	return out, err
}

func (c *APIClient) React(ctx context.Context, messageID, emoji string) (mentorship.Message, error) {
	var out mentorship.Message
	path := "/api/mentorship/messages/" + url.PathEscape(messageID) + "/reactions"
	err := c.postJSON(ctx, path, map[string]string{"emoji": emoji}, &out)
	return out, err
}

func (c *APIClient) Delete(ctx context.Context, messageID string) error {
	path := "/api/mentorship/messages/" + url.PathEscape(messageID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, "", nil)
}

func (c *APIClient) MarkRead(ctx context.Context, studentID string) error {
	return c.do(ctx, http.MethodPost, "/api/mentorship/messages/read", studentQuery(studentID), nil, "", nil)
}

// Download streams an attachment to w. The server redirects to object storage, which the
// HTTP client follows.
func (c *APIClient) Download(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/mentorship/files/"+url.PathEscape(fileID), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", fileID, err)
	}
	defer res.Body.Close()

	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		var env envelope
		if err := json.NewDecoder(res.Body).Decode(&env); err == nil && env.Code != 0 {
			return 0, errs.FromWire(env.Code, env.Message, res.StatusCode)
		}
	}
	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: HTTP %d", fileID, res.StatusCode)
	}
	return io.Copy(w, res.Body)
}

// DevToken asks a development server to register u and issue a token for it.
func (c *APIClient) DevToken(ctx context.Context, u user.User) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.postJSON(ctx, "/api/auth/token", u, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}
