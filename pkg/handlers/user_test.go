package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"blognest/pkg/files"
	"blognest/pkg/session"
	"blognest/pkg/user"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var (
	testUser = &user.User{
		ID:          27,
		Username:    "crabby",
		Password:    HashPass([]byte("00000000"), "hunter22"),
		DisplayName: "Crabby",
		About:       "likes the beach",
		Created:     time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	testSession = &session.Session{
		User:      &session.User{ID: testUser.ID, Username: testUser.Username},
		SessionID: "sess-1",
	}
)

func formRequest(method, target string, fields map[string]string) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	writer.Close()

	r := httptest.NewRequest(method, target, body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	return r
}

func bodyError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	resp := &ErrorResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), resp); err != nil {
		t.Fatalf("bad error body %q: %v", w.Body.String(), err)
	}
	return resp.Error
}

func newUserHandler(ctrl *gomock.Controller) (*UserHandler, *MockUsersRepo, *session.MockSessionManager) {
	repo := NewMockUsersRepo(ctrl)
	sm := session.NewMockSessionManager(ctrl)
	h := &UserHandler{
		Sm:     sm,
		Repo:   repo,
		Logger: zap.NewNop().Sugar(),
	}
	return h, repo, sm
}

func TestRegister(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, repo, _ := newUserHandler(ctrl)

	repo.EXPECT().GetByUsername("crabby").Return(nil, nil)
	repo.EXPECT().Add(gomock.Any()).Return(int64(27), nil)

	w := httptest.NewRecorder()
	h.Register(w, formRequest("POST", "/api/register", map[string]string{
		"username":    "crabby",
		"password":    "hunter22",
		"displayName": "Crabby",
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}

	resp := &UserResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.ID != 27 || resp.Username != "crabby" || resp.DisplayName != "Crabby" {
		t.Errorf("unexpected user %+v", resp)
	}
}

func TestRegisterURLEncoded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, repo, _ := newUserHandler(ctrl)

	repo.EXPECT().GetByUsername("crabby").Return(nil, nil)
	repo.EXPECT().Add(gomock.Any()).Return(int64(27), nil)

	r := httptest.NewRequest("POST", "/api/register",
		strings.NewReader("username=crabby&password=hunter22"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	h.Register(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
}

func TestRegisterWithPicture(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, repo, _ := newUserHandler(ctrl)

	storage := files.NewMockStorer(ctrl)
	h.Files = storage

	repo.EXPECT().GetByUsername("crabby").Return(nil, nil)
	storage.EXPECT().Save(gomock.Any(), gomock.Any()).Return("uploads/1622547800.png", nil)
	repo.EXPECT().Add(gomock.Any()).DoAndReturn(func(u *user.User) (int64, error) {
		if u.ProfilePicture != "uploads/1622547800.png" {
			return 0, fmt.Errorf("picture path not stored: %q", u.ProfilePicture)
		}
		return 27, nil
	})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("username", "crabby")
	writer.WriteField("password", "hunter22")
	fw, err := writer.CreateFormFile("profilePicture", "me.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
	fw.Write([]byte("fake image bytes"))
	writer.Close()

	r := httptest.NewRequest("POST", "/api/register", body)
	r.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	h.Register(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}

	resp := &UserResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.ProfilePicture != "uploads/1622547800.png" {
		t.Errorf("unexpected picture %q", resp.ProfilePicture)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, repo, _ := newUserHandler(ctrl)

	repo.EXPECT().GetByUsername("crabby").Return(testUser, nil)

	w := httptest.NewRecorder()
	h.Register(w, formRequest("POST", "/api/register", map[string]string{
		"username": "crabby",
		"password": "hunter22",
	}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := bodyError(t, w); msg != "username already exists" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"short username":      {"username": "ab", "password": "hunter22"},
		"short password":      {"username": "crabby", "password": "hunt"},
		"padded username":     {"username": " crabby", "password": "hunter22"},
		"forbidden character": {"username": "crab by", "password": "hunter22"},
		"missing password":    {"username": "crabby"},
	}

	for name, fields := range cases {
		ctrl := gomock.NewController(t)
		h, _, _ := newUserHandler(ctrl)

		w := httptest.NewRecorder()
		h.Register(w, formRequest("POST", "/api/register", fields))

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, w.Code)
		}
		ctrl.Finish()
	}
}

func TestLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, repo, sm := newUserHandler(ctrl)

	repo.EXPECT().GetByUsername("crabby").Return(testUser, nil)
	sm.EXPECT().Create(gomock.Any(), gomock.Any(), &session.User{ID: 27, Username: "crabby"},
		gomock.Any(), gomock.Any()).Return("token", nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/login",
		strings.NewReader(`{"username": "crabby", "password": "hunter22"}`))
	h.Login(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}

	resp := &LoginResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.ID != 27 || resp.Username != "crabby" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestLoginWrongCredentials(t *testing.T) {
	cases := []struct {
		name string
		user *user.User
		body string
	}{
		{"unknown user", nil, `{"username": "crabby", "password": "hunter22"}`},
		{"wrong password", testUser, `{"username": "crabby", "password": "hunter23"}`},
	}

	for _, c := range cases {
		ctrl := gomock.NewController(t)
		h, repo, _ := newUserHandler(ctrl)
		repo.EXPECT().GetByUsername("crabby").Return(c.user, nil)

		w := httptest.NewRecorder()
		h.Login(w, httptest.NewRequest("POST", "/api/login", strings.NewReader(c.body)))

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", c.name, w.Code)
		}
		if msg := bodyError(t, w); msg != "wrong credentials" {
			t.Errorf("%s: unexpected message %q", c.name, msg)
		}
		ctrl.Finish()
	}
}

func TestLoginBadBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, _, _ := newUserHandler(ctrl)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest("POST", "/api/login", strings.NewReader("{broken")))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestLogout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, _, sm := newUserHandler(ctrl)

	sm.EXPECT().Destroy(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest("POST", "/api/logout", nil))

	if w.Code != http.StatusOK {
		t.Errorf("unexpected status %d", w.Code)
	}
}

func TestMe(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, _, _ := newUserHandler(ctrl)

	r := httptest.NewRequest("GET", "/api/profile", nil)
	r = r.WithContext(session.ContextWithSession(r.Context(), testSession))

	w := httptest.NewRecorder()
	h.Me(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"username":"crabby"`) {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestMeAnonymous(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, _, _ := newUserHandler(ctrl)

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest("GET", "/api/profile", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "null" {
		t.Errorf("expected null, got %q", w.Body.String())
	}
}

func profileRequest(userID int64, sess *session.Session, fields map[string]string) *http.Request {
	r := formRequest("PUT", fmt.Sprintf("/api/profile/%d", userID), fields)
	r = mux.SetURLVars(r, map[string]string{"userId": fmt.Sprint(userID)})
	if sess != nil {
		r = r.WithContext(session.ContextWithSession(r.Context(), sess))
	}
	return r
}

func TestUpdateProfile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, repo, _ := newUserHandler(ctrl)

	stored := *testUser
	repo.EXPECT().GetByID(int64(27)).Return(&stored, nil)
	repo.EXPECT().Update(gomock.Any()).DoAndReturn(func(u *user.User) error {
		if u.DisplayName != "Mr. Crabs" || u.About != "retired" {
			return fmt.Errorf("unexpected update %+v", u)
		}
		return nil
	})

	w := httptest.NewRecorder()
	h.UpdateProfile(w, profileRequest(27, testSession, map[string]string{
		"displayName": "Mr. Crabs",
		"about":       "retired",
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}

	resp := &UserResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.DisplayName != "Mr. Crabs" || resp.About != "retired" {
		t.Errorf("unexpected user %+v", resp)
	}
}

func TestUpdateProfileNotOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, _, _ := newUserHandler(ctrl)

	w := httptest.NewRecorder()
	h.UpdateProfile(w, profileRequest(99, testSession, map[string]string{"about": "hijack"}))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if msg := bodyError(t, w); msg != "you are not allowed to edit this profile" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestUpdateProfileNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h, repo, _ := newUserHandler(ctrl)

	repo.EXPECT().GetByID(int64(27)).Return(nil, nil)

	w := httptest.NewRecorder()
	h.UpdateProfile(w, profileRequest(27, testSession, nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestCheckPass(t *testing.T) {
	hash := HashPass([]byte("saltsalt"), "hunter22")

	if !checkPass(hash, "hunter22") {
		t.Error("valid password rejected")
	}
	if checkPass(hash, "hunter23") {
		t.Error("invalid password accepted")
	}
	if checkPass([]byte("short"), "hunter22") {
		t.Error("truncated hash accepted")
	}
}
