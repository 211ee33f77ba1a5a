// Package httpapi exposes the REST API over gorilla/mux.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	svcerrors "github.com/fritterhq/fritter/internal/errors"
	"github.com/fritterhq/fritter/internal/metrics"
	"github.com/fritterhq/fritter/internal/middleware"

	app "github.com/fritterhq/fritter/internal/app"
	"github.com/fritterhq/fritter/internal/app/domain/interaction"
)

// handler bundles the HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the REST API.
func NewHandler(application *app.Application) *mux.Router {
	h := &handler{app: application}
	r := mux.NewRouter()

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/users", h.register).Methods(http.MethodPost)
	api.HandleFunc("/users", h.deleteAccount).Methods(http.MethodDelete)
	api.HandleFunc("/session", h.login).Methods(http.MethodPost)
	api.HandleFunc("/session", h.currentSession).Methods(http.MethodGet)
	api.HandleFunc("/session", h.logout).Methods(http.MethodDelete)

	api.HandleFunc("/freets", h.listFreets).Methods(http.MethodGet)
	api.HandleFunc("/freets", h.createFreet).Methods(http.MethodPost)
	api.HandleFunc("/freets/{freetId}", h.deleteFreet).Methods(http.MethodDelete)

	api.HandleFunc("/freetdrafts", h.listDrafts).Methods(http.MethodGet)
	api.HandleFunc("/freetdrafts", h.createDraft).Methods(http.MethodPost)
	api.HandleFunc("/freetdrafts/{draftId}", h.updateDraft).Methods(http.MethodPut)
	api.HandleFunc("/freetdrafts/{draftId}", h.deleteDraft).Methods(http.MethodDelete)

	for _, kind := range interaction.Kinds {
		kind := kind
		resource := "/" + string(kind) + "s"
		api.HandleFunc(resource, func(w http.ResponseWriter, r *http.Request) {
			h.listInteractions(w, r, kind)
		}).Methods(http.MethodGet)
		api.HandleFunc(resource, func(w http.ResponseWriter, r *http.Request) {
			h.createInteraction(w, r, kind)
		}).Methods(http.MethodPost)
		api.HandleFunc(resource+"/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.deleteInteraction(w, r, kind)
		}).Methods(http.MethodDelete)
	}

	api.HandleFunc("/bookmarknests", h.listNests).Methods(http.MethodGet)
	api.HandleFunc("/bookmarknests", h.createNest).Methods(http.MethodPost)
	api.HandleFunc("/bookmarknests/{nestId}", h.deleteNest).Methods(http.MethodDelete)

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- users and sessions ----

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerrors.Validation("Request body is not valid JSON."))
		return
	}

	u, err := h.app.Users.Register(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	// Registration logs the new account in.
	sess, _, err := h.app.Users.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	setSessionCookie(w, sess.Token, sess.ExpiresAt)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": fmt.Sprintf("Your account was created successfully. You have been logged in as %s.", u.Username),
		"user":    h.userDTO(u),
	})
}

func (h *handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Users.DeleteAccount(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Your account has been deleted successfully.",
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerrors.Validation("Request body is not valid JSON."))
		return
	}

	sess, u, err := h.app.Users.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	setSessionCookie(w, sess.Token, sess.ExpiresAt)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "You have logged in successfully.",
		"user":    h.userDTO(u),
	})
}

func (h *handler) currentSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Your session info was found successfully.",
			"user":    nil,
		})
		return
	}
	u, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Your session info was found successfully.",
		"user":    h.userDTO(u),
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookie); err == nil && cookie.Value != "" {
		if err := h.app.Users.Logout(r.Context(), cookie.Value); err != nil {
			writeError(w, err)
			return
		}
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "You have been logged out successfully.",
	})
}

// ---- freets ----

func (h *handler) listFreets(w http.ResponseWriter, r *http.Request) {
	if author, present := queryParam(r, "author"); present {
		if strings.TrimSpace(author) == "" {
			writeError(w, svcerrors.Validation("Provided author username must be nonempty."))
			return
		}
		freets, err := h.app.Freets.ListByUsername(r.Context(), author)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.freetDTOs(r.Context(), freets))
		return
	}

	freets, err := h.app.Freets.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.freetDTOs(r.Context(), freets))
}

func (h *handler) createFreet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Content      string `json:"content"`
		ExpiringDate string `json:"expiringDate"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerrors.Validation("Request body is not valid JSON."))
		return
	}

	expiring, err := parseExpiration(payload.ExpiringDate)
	if err != nil {
		writeError(w, err)
		return
	}

	f, err := h.app.Freets.Create(r.Context(), userID, payload.Content, expiring)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Your freet was created successfully.",
		"freet":   h.freetDTO(r.Context(), f),
	})
}

func (h *handler) deleteFreet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Freets.Delete(r.Context(), userID, mux.Vars(r)["freetId"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Your freet was deleted successfully.",
	})
}

// ---- freet drafts ----

func (h *handler) listDrafts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	drafts, err := h.app.Drafts.ListByAuthor(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.draftDTOs(r.Context(), drafts))
}

func (h *handler) createDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerrors.Validation("Request body is not valid JSON."))
		return
	}

	d, err := h.app.Drafts.Create(r.Context(), userID, payload.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Your freet draft was created successfully.",
		"draft":   h.draftDTO(r.Context(), d),
	})
}

func (h *handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerrors.Validation("Request body is not valid JSON."))
		return
	}

	d, err := h.app.Drafts.Update(r.Context(), userID, mux.Vars(r)["draftId"], payload.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Your freet draft was updated successfully.",
		"draft":   h.draftDTO(r.Context(), d),
	})
}

func (h *handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Drafts.Delete(r.Context(), userID, mux.Vars(r)["draftId"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Your freet draft was deleted successfully.",
	})
}

// ---- timed interactions ----

func (h *handler) listInteractions(w http.ResponseWriter, r *http.Request, kind interaction.Kind) {
	ctx := r.Context()

	if author, present := queryParam(r, "author"); present {
		if strings.TrimSpace(author) == "" {
			writeError(w, svcerrors.Validation("Provided author username must be nonempty."))
			return
		}
		recs, err := h.app.Interactions.ListByUsername(ctx, kind, author)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.interactionDTOs(ctx, recs))
		return
	}

	// Likes are browsable anonymously; the other kinds list the caller's
	// own records.
	if kind == interaction.KindLike {
		recs, err := h.app.Interactions.List(ctx, kind)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.interactionDTOs(ctx, recs))
		return
	}

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	recs, err := h.app.Interactions.ListByAuthorID(ctx, kind, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.interactionDTOs(ctx, recs))
}

func (h *handler) createInteraction(w http.ResponseWriter, r *http.Request, kind interaction.Kind) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		FreetID string `json:"freetid"`
		NestID  string `json:"bookmarknestid"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerrors.Validation("Request body is not valid JSON."))
		return
	}

	result, err := h.app.Interactions.Add(r.Context(), kind, userID, payload.FreetID, payload.NestID)
	if err != nil {
		writeError(w, err)
		return
	}

	message := fmt.Sprintf("Your %s was created successfully.", kind)
	if result.CanceledOpposite {
		opposite, _ := kind.Opposite()
		message += fmt.Sprintf(" Your %s on this freet was removed.", opposite)
	}
	body := map[string]interface{}{"message": message}
	body[string(kind)] = h.interactionDTO(r.Context(), result.Record)
	writeJSON(w, http.StatusCreated, body)
}

func (h *handler) deleteInteraction(w http.ResponseWriter, r *http.Request, kind interaction.Kind) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Interactions.Delete(r.Context(), kind, userID, mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Your %s was deleted successfully.", kind),
	})
}

// ---- bookmark nests ----

func (h *handler) listNests(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	author, present := queryParam(r, "author")
	if !present {
		author = middleware.GetUsername(r.Context())
	}
	if strings.TrimSpace(author) == "" {
		writeError(w, svcerrors.Validation("Provided author username must be nonempty."))
		return
	}

	nests, err := h.app.Nests.ListByUsername(r.Context(), userID, author)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]nestResponse, 0, len(nests))
	for _, n := range nests {
		out = append(out, h.nestDTO(r.Context(), n.Nest, n.Bookmarks))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) createNest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Nestname string `json:"nestname"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerrors.Validation("Request body is not valid JSON."))
		return
	}

	n, err := h.app.Nests.Create(r.Context(), userID, payload.Nestname)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "Your bookmarknest was created successfully.",
		"bookmarknest": h.nestDTO(r.Context(), n, nil),
	})
}

func (h *handler) deleteNest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	emptiedRoot, err := h.app.Nests.Delete(r.Context(), userID, mux.Vars(r)["nestId"])
	if err != nil {
		writeError(w, err)
		return
	}
	message := "Your bookmarknest was deleted successfully."
	if emptiedRoot {
		message = "Your root bookmarknest was emptied successfully."
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// ---- helpers ----

// requireUser extracts the authenticated user id or responds with 403.
// Logged-out access to a guarded route is forbidden, the same status as
// touching another user's resource.
func (h *handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, svcerrors.Forbidden("You must be logged in to complete this action."))
		return "", false
	}
	return userID, true
}

// queryParam distinguishes an absent parameter from a blank one.
func queryParam(r *http.Request, name string) (string, bool) {
	values, present := r.URL.Query()[name]
	if !present || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// parseExpiration accepts RFC3339 or the web form's date/time shape. An
// empty value means the freet never expires.
func parseExpiration(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02T15:04Z", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, svcerrors.Validation("Provided expiring date is not a valid date.")
}

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcerrors.StatusOf(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
