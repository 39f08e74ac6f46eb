package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

var testSecret = []byte("test-signing-secret")
var testUser = &User{ID: 34, Username: "alice"}
var testSessID = "480f0886-bbbb-40e8-9c2b-a47e8aa7a666"

func newTestManager(t *testing.T) *SessionManagerJWT {
	sm, err := NewSessionsJWTManager(testSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
	return sm
}

func createToken(t *testing.T, sm *SessionManagerJWT, expiresAt int64) (string, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	token, err := sm.Create(context.Background(), w, testUser, testSessID, expiresAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
	return token, w
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := NewSessionsJWTManager(nil); err == nil {
		t.Fatal("expected error for empty secret, but was nil")
	}
}

func TestCreateSetsCookie(t *testing.T) {
	sm := newTestManager(t)
	token, w := createToken(t, sm, time.Now().Add(time.Hour).Unix())

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName {
		t.Fatalf("expected a %q cookie, but was %v", CookieName, cookies)
	}
	if cookies[0].Value != token {
		t.Errorf("cookie value differs from the returned token")
	}
	if !cookies[0].HttpOnly {
		t.Errorf("expected an http-only cookie")
	}
}

func TestCheckRoundTrip(t *testing.T) {
	sm := newTestManager(t)
	expiresAt := time.Now().Add(time.Hour).Unix()
	token, _ := createToken(t, sm, expiresAt)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	sess, err := sm.Check(context.Background(), r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	expected := &Session{
		User:           &User{ID: testUser.ID, Username: testUser.Username},
		SessionID:      testSessID,
		StandardClaims: jwt.StandardClaims{ExpiresAt: expiresAt},
	}
	if !reflect.DeepEqual(sess, expected) {
		t.Errorf("expected %v but was %v", expected, sess)
	}
}

func TestCheckBearerFallback(t *testing.T) {
	sm := newTestManager(t)
	token, _ := createToken(t, sm, time.Now().Add(time.Hour).Unix())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	sess, err := sm.Check(context.Background(), r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
	if sess.User.ID != testUser.ID {
		t.Errorf("expected user %d but was %d", testUser.ID, sess.User.ID)
	}
}

func TestCheckNoToken(t *testing.T) {
	sm := newTestManager(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, err := sm.Check(context.Background(), r); err == nil {
		t.Fatal("expected error for a request without token, but was nil")
	}
}

func TestCheckTamperedToken(t *testing.T) {
	sm := newTestManager(t)
	token, _ := createToken(t, sm, time.Now().Add(time.Hour).Unix())

	tampered := token[:len(token)-2] + "xx"
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: tampered})

	if _, err := sm.Check(context.Background(), r); err == nil {
		t.Fatal("expected error for a tampered token, but was nil")
	}
}

func TestCheckWrongSecret(t *testing.T) {
	sm := newTestManager(t)
	token, _ := createToken(t, sm, time.Now().Add(time.Hour).Unix())

	other, err := NewSessionsJWTManager([]byte("another-secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	if _, err := other.Check(context.Background(), r); err == nil {
		t.Fatal("expected error for a foreign signature, but was nil")
	}
}

func TestCheckExpired(t *testing.T) {
	sm := newTestManager(t)
	token, _ := createToken(t, sm, time.Now().Add(-time.Hour).Unix())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	_, err := sm.Check(context.Background(), r)
	if err == nil {
		t.Fatal("expected expired token error, but was nil")
	}

	verr, ok := err.(*jwt.ValidationError)
	if !ok {
		t.Fatalf("expected jwt validation error, but was %v", err)
	}

	if verr.Errors&jwt.ValidationErrorExpired != jwt.ValidationErrorExpired {
		t.Fatalf("expected jwt expired error, but was %v", verr.Errors)
	}
}

func TestDestroyClearsCookie(t *testing.T) {
	sm := newTestManager(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/logout", nil)

	if err := sm.Destroy(context.Background(), w, r); err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName {
		t.Fatalf("expected a cleared %q cookie, but was %v", CookieName, cookies)
	}
	if cookies[0].Value != "" || cookies[0].MaxAge >= 0 {
		t.Errorf("expected an emptied, expired cookie, but was %v", cookies[0])
	}
}
