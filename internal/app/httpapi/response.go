package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/fritterhq/fritter/internal/app/domain/freet"
	"github.com/fritterhq/fritter/internal/app/domain/interaction"
	"github.com/fritterhq/fritter/internal/app/domain/nest"
	"github.com/fritterhq/fritter/internal/app/domain/user"
)

// Response DTOs. Ids are strings, author fields carry the populated
// username, and dates use the frontend's display format.

type userResponse struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	DateJoined string `json:"dateJoined"`
}

type freetResponse struct {
	ID           string `json:"_id"`
	Author       string `json:"author"`
	Content      string `json:"content"`
	DateCreated  string `json:"dateCreated"`
	DateModified string `json:"dateModified"`
	ExpiringDate string `json:"expiringDate"`
}

type draftResponse struct {
	ID           string `json:"_id"`
	Author       string `json:"author"`
	Content      string `json:"content"`
	DateCreated  string `json:"dateCreated"`
	DateModified string `json:"dateModified"`
}

type interactionResponse struct {
	ID            string `json:"_id"`
	Author        string `json:"author"`
	OriginalFreet string `json:"originalFreet"`
	DateCreated   string `json:"dateCreated"`
	ExpiringDate  string `json:"expiringDate"`
	Nest          string `json:"bookmarknest,omitempty"`
}

type nestResponse struct {
	ID              string                `json:"_id"`
	Nestname        string                `json:"nestname"`
	Author          string                `json:"author"`
	DateCreated     string                `json:"dateCreated"`
	DefaultRootNest bool                  `json:"defaultRootNest"`
	Bookmarks       []interactionResponse `json:"bookmarks,omitempty"`
}

func (h *handler) userDTO(u user.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Username:   u.Username,
		DateJoined: formatDate(u.CreatedAt),
	}
}

func (h *handler) freetDTO(ctx context.Context, f freet.Freet) freetResponse {
	return freetResponse{
		ID:           f.ID,
		Author:       h.username(ctx, f.AuthorID),
		Content:      f.Content,
		DateCreated:  formatDate(f.DateCreated),
		DateModified: formatDate(f.DateModified),
		ExpiringDate: formatDatePtr(f.ExpiringDate),
	}
}

func (h *handler) freetDTOs(ctx context.Context, freets []freet.Freet) []freetResponse {
	out := make([]freetResponse, 0, len(freets))
	for _, f := range freets {
		out = append(out, h.freetDTO(ctx, f))
	}
	return out
}

func (h *handler) draftDTO(ctx context.Context, d freet.Draft) draftResponse {
	return draftResponse{
		ID:           d.ID,
		Author:       h.username(ctx, d.AuthorID),
		Content:      d.Content,
		DateCreated:  formatDate(d.DateCreated),
		DateModified: formatDate(d.DateModified),
	}
}

func (h *handler) draftDTOs(ctx context.Context, drafts []freet.Draft) []draftResponse {
	out := make([]draftResponse, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, h.draftDTO(ctx, d))
	}
	return out
}

func (h *handler) interactionDTO(ctx context.Context, rec interaction.Interaction) interactionResponse {
	return interactionResponse{
		ID:            rec.ID,
		Author:        h.username(ctx, rec.AuthorID),
		OriginalFreet: rec.OriginalFreet,
		DateCreated:   formatDate(rec.DateCreated),
		ExpiringDate:  formatDatePtr(rec.ExpiringDate),
		Nest:          rec.NestID,
	}
}

func (h *handler) interactionDTOs(ctx context.Context, recs []interaction.Interaction) []interactionResponse {
	out := make([]interactionResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, h.interactionDTO(ctx, rec))
	}
	return out
}

func (h *handler) nestDTO(ctx context.Context, n nest.Nest, bookmarks []interaction.Interaction) nestResponse {
	return nestResponse{
		ID:              n.ID,
		Nestname:        n.Nestname,
		Author:          h.username(ctx, n.AuthorID),
		DateCreated:     formatDate(n.DateCreated),
		DefaultRootNest: n.DefaultRootNest,
		Bookmarks:       h.interactionDTOs(ctx, bookmarks),
	}
}

// username resolves a user id for display; a vanished author falls back to
// the raw id rather than failing the whole response.
func (h *handler) username(ctx context.Context, userID string) string {
	u, err := h.app.Users.Get(ctx, userID)
	if err != nil {
		return userID
	}
	return u.Username
}

// formatDate renders the display format the web client expects, e.g.
// "January 2nd 2006, 3:04:05 pm".
func formatDate(t time.Time) string {
	t = t.UTC()
	meridiem := "am"
	if t.Hour() >= 12 {
		meridiem = "pm"
	}
	return fmt.Sprintf("%s %s %d, %s %s",
		t.Format("January"), ordinal(t.Day()), t.Year(), t.Format("3:04:05"), meridiem)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

func ordinal(day int) string {
	suffix := "th"
	if day%100 < 11 || day%100 > 13 {
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", day, suffix)
}
