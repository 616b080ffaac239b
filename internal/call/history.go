package call

import (
	"context"
	"net/http"
	"time"

	"github.com/carlmjohnson/requests"
)

// Meeting is one entry of the signed-in user's meeting history.
type Meeting struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	MeetingCode string    `json:"meetingCode"`
	CreatedAt   time.Time `json:"createdAt"`
}

// History talks to the server's meeting history API.
type History struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// Add records that the user joined code.
func (h *History) Add(ctx context.Context, code string) (Meeting, error) {
	var m Meeting
	err := h.builder().
		BodyJSON(map[string]string{"meeting_code": code}).
		CheckStatus(http.StatusCreated).
		ToJSON(&m).
		Fetch(ctx)
	if err != nil {
		return Meeting{}, newError("record meeting", err, code)
	}
	return m, nil
}

// List returns the user's meetings, newest first.
func (h *History) List(ctx context.Context) ([]Meeting, error) {
	var out []Meeting
	if err := h.builder().ToJSON(&out).Fetch(ctx); err != nil {
		return nil, newError("list meetings", err, "")
	}
	return out, nil
}

func (h *History) builder() *requests.Builder {
	b := requests.URL(h.BaseURL).
		Path("/api/v1/history").
		Bearer(h.Token)
	if h.Client != nil {
		b = b.Client(h.Client)
	}
	return b
}
