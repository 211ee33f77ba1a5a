package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	app "github.com/fritterhq/fritter/internal/app"
	"github.com/fritterhq/fritter/internal/middleware"
)

// newServer wires the application on memory storage behind the session
// middleware, the way main assembles it.
func newServer(t *testing.T) http.Handler {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Options{SessionTTL: time.Hour}, nil)
	require.NoError(t, err)

	auth := middleware.NewAuthMiddleware(application.Users, nil)
	return auth.Handler(NewHandler(application))
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func decodeList(t *testing.T, resp *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func sessionCookie(t *testing.T, resp *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range resp.Result().Cookies() {
		if c.Name == middleware.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func registerUser(t *testing.T, handler http.Handler, username string) *http.Cookie {
	t.Helper()
	resp := doJSON(t, handler, http.MethodPost, "/api/users",
		map[string]string{"username": username, "password": "hunter2"}, nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return sessionCookie(t, resp)
}

func TestRegistrationAndSession(t *testing.T) {
	handler := newServer(t)

	cookie := registerUser(t, handler, "alice")

	resp := doJSON(t, handler, http.MethodGet, "/api/session", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode(t, resp)
	user := body["user"].(map[string]interface{})
	require.Equal(t, "alice", user["username"])

	// Duplicate username conflicts.
	resp = doJSON(t, handler, http.MethodPost, "/api/users",
		map[string]string{"username": "alice", "password": "pw"}, nil)
	require.Equal(t, http.StatusConflict, resp.Code)

	// Logout revokes the session server-side.
	resp = doJSON(t, handler, http.MethodDelete, "/api/session", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, handler, http.MethodGet, "/api/session", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Nil(t, decode(t, resp)["user"])

	// And login opens a new one.
	resp = doJSON(t, handler, http.MethodPost, "/api/session",
		map[string]string{"username": "alice", "password": "hunter2"}, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	sessionCookie(t, resp)

	resp = doJSON(t, handler, http.MethodPost, "/api/session",
		map[string]string{"username": "alice", "password": "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestFreetEndpoints(t *testing.T) {
	handler := newServer(t)
	alice := registerUser(t, handler, "alice")
	bob := registerUser(t, handler, "bob")

	// Posting while logged out is forbidden.
	resp := doJSON(t, handler, http.MethodPost, "/api/freets",
		map[string]string{"content": "hello"}, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = doJSON(t, handler, http.MethodPost, "/api/freets",
		map[string]string{"content": "   "}, alice)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, handler, http.MethodPost, "/api/freets",
		map[string]string{"content": strings.Repeat("a", 141)}, alice)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)

	resp = doJSON(t, handler, http.MethodPost, "/api/freets",
		map[string]string{"content": "hello fritter"}, alice)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	created := decode(t, resp)["freet"].(map[string]interface{})
	require.Equal(t, "alice", created["author"])
	freetID := created["_id"].(string)

	// Listing is public.
	resp = doJSON(t, handler, http.MethodGet, "/api/freets", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, decodeList(t, resp), 1)

	resp = doJSON(t, handler, http.MethodGet, "/api/freets?author=alice", nil, nil)
	require.Len(t, decodeList(t, resp), 1)

	resp = doJSON(t, handler, http.MethodGet, "/api/freets?author=", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, handler, http.MethodGet, "/api/freets?author=nobody", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	// Only the author may delete.
	resp = doJSON(t, handler, http.MethodDelete, "/api/freets/"+freetID, nil, bob)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = doJSON(t, handler, http.MethodDelete, "/api/freets/"+freetID, nil, alice)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, handler, http.MethodDelete, "/api/freets/"+freetID, nil, alice)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestExpiredFreetHiddenFromAPI(t *testing.T) {
	handler := newServer(t)
	alice := registerUser(t, handler, "alice")

	past := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	resp := doJSON(t, handler, http.MethodPost, "/api/freets",
		map[string]string{"content": "gone already", "expiringDate": past}, alice)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = doJSON(t, handler, http.MethodGet, "/api/freets", nil, nil)
	require.Empty(t, decodeList(t, resp))

	resp = doJSON(t, handler, http.MethodPost, "/api/freets",
		map[string]string{"content": "bad date", "expiringDate": "tomorrow-ish"}, alice)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestLikesAndMutualExclusion(t *testing.T) {
	handler := newServer(t)
	alice := registerUser(t, handler, "alice")
	bob := registerUser(t, handler, "bob")

	resp := doJSON(t, handler, http.MethodPost, "/api/freets",
		map[string]string{"content": "rate me"}, alice)
	require.Equal(t, http.StatusCreated, resp.Code)
	freetID := decode(t, resp)["freet"].(map[string]interface{})["_id"].(string)

	resp = doJSON(t, handler, http.MethodPost, "/api/downfreets",
		map[string]string{"freetid": freetID}, bob)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = doJSON(t, handler, http.MethodPost, "/api/likes",
		map[string]string{"freetid": freetID}, bob)
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Contains(t, decode(t, resp)["message"], "downfreet")
	likeID := decode(t, resp)["like"].(map[string]interface{})["_id"].(string)

	// The downfreet was canceled by the like.
	resp = doJSON(t, handler, http.MethodGet, "/api/downfreets", nil, bob)
	require.Empty(t, decodeList(t, resp))

	// At most one like per freet per user.
	resp = doJSON(t, handler, http.MethodPost, "/api/likes",
		map[string]string{"freetid": freetID}, bob)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	// Likes are browsable anonymously, other kinds are not.
	resp = doJSON(t, handler, http.MethodGet, "/api/likes", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, decodeList(t, resp), 1)

	resp = doJSON(t, handler, http.MethodGet, "/api/refreets", nil, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = doJSON(t, handler, http.MethodDelete, "/api/likes/"+likeID, nil, alice)
	require.Equal(t, http.StatusForbidden, resp.Code)
	resp = doJSON(t, handler, http.MethodDelete, "/api/likes/"+likeID, nil, bob)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestBookmarkNests(t *testing.T) {
	handler := newServer(t)
	alice := registerUser(t, handler, "alice")
	bob := registerUser(t, handler, "bob")

	// Every account starts with its root nest.
	resp := doJSON(t, handler, http.MethodGet, "/api/bookmarknests", nil, alice)
	require.Equal(t, http.StatusOK, resp.Code)
	nests := decodeList(t, resp)
	require.Len(t, nests, 1)
	require.Equal(t, true, nests[0]["defaultRootNest"])
	rootID := nests[0]["_id"].(string)

	// Nests are private to their owner.
	resp = doJSON(t, handler, http.MethodGet, "/api/bookmarknests?author=alice", nil, bob)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = doJSON(t, handler, http.MethodPost, "/api/bookmarknests",
		map[string]string{"nestname": "recipes"}, alice)
	require.Equal(t, http.StatusCreated, resp.Code)
	resp = doJSON(t, handler, http.MethodPost, "/api/bookmarknests",
		map[string]string{"nestname": "recipes"}, alice)
	require.Equal(t, http.StatusConflict, resp.Code)
	resp = doJSON(t, handler, http.MethodPost, "/api/bookmarknests",
		map[string]string{"nestname": "not a name"}, alice)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, handler, http.MethodPost, "/api/freets",
		map[string]string{"content": "file me"}, alice)
	require.Equal(t, http.StatusCreated, resp.Code)
	freetID := decode(t, resp)["freet"].(map[string]interface{})["_id"].(string)

	resp = doJSON(t, handler, http.MethodPost, "/api/bookmarks",
		map[string]string{"freetid": freetID, "bookmarknestid": rootID}, alice)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	// Filing into a foreign nest is forbidden.
	resp = doJSON(t, handler, http.MethodPost, "/api/bookmarks",
		map[string]string{"freetid": freetID, "bookmarknestid": rootID}, bob)
	require.Equal(t, http.StatusForbidden, resp.Code)

	// Deleting the root nest empties it but keeps the record.
	resp = doJSON(t, handler, http.MethodDelete, "/api/bookmarknests/"+rootID, nil, alice)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, decode(t, resp)["message"], "emptied")

	resp = doJSON(t, handler, http.MethodGet, "/api/bookmarknests", nil, alice)
	nests = decodeList(t, resp)
	require.Len(t, nests, 2)
	for _, n := range nests {
		require.Empty(t, n["bookmarks"])
	}
}

func TestDraftEndpoints(t *testing.T) {
	handler := newServer(t)
	alice := registerUser(t, handler, "alice")
	bob := registerUser(t, handler, "bob")

	resp := doJSON(t, handler, http.MethodPost, "/api/freetdrafts",
		map[string]string{"content": "rough cut"}, alice)
	require.Equal(t, http.StatusCreated, resp.Code)
	draftID := decode(t, resp)["draft"].(map[string]interface{})["_id"].(string)

	resp = doJSON(t, handler, http.MethodPut, "/api/freetdrafts/"+draftID,
		map[string]string{"content": "polished"}, alice)
	require.Equal(t, http.StatusOK, resp.Code)

	// Drafts never leak across accounts.
	resp = doJSON(t, handler, http.MethodGet, "/api/freetdrafts", nil, bob)
	require.Empty(t, decodeList(t, resp))
	resp = doJSON(t, handler, http.MethodPut, "/api/freetdrafts/"+draftID,
		map[string]string{"content": "stolen"}, bob)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = doJSON(t, handler, http.MethodDelete, "/api/freetdrafts/"+draftID, nil, alice)
	require.Equal(t, http.StatusOK, resp.Code)
}
