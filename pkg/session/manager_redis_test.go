package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/elliotchance/redismock/v8"
	"github.com/go-redis/redis/v8"
	"github.com/golang/mock/gomock"
)

func newRedisManager(t *testing.T) (*SessionManagerRedis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	jwtManager, err := NewSessionsJWTManager(testSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	return NewSessionManagerRedis(rdb, jwtManager), mr
}

func TestRedisSessionLifecycle(t *testing.T) {
	sm, _ := newRedisManager(t)
	ctx := context.Background()

	w := httptest.NewRecorder()
	token, err := sm.Create(ctx, w, testUser, testSessID, time.Now().Add(time.Hour).Unix())
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	sess, err := sm.Check(ctx, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
	if sess.User.ID != testUser.ID || sess.SessionID != testSessID {
		t.Fatalf("wrong session: %v", sess)
	}

	// logout revokes the session even though the token itself is still valid
	r = r.WithContext(ContextWithSession(r.Context(), sess))
	if err := sm.Destroy(ctx, httptest.NewRecorder(), r); err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	if _, err := sm.Check(ctx, r); err == nil {
		t.Fatal("expected error after logout, but was nil")
	}
}

func TestRedisDestroyAll(t *testing.T) {
	sm, _ := newRedisManager(t)
	ctx := context.Background()

	for i, sessID := range []string{"sess-a", "sess-b"} {
		w := httptest.NewRecorder()
		expires := time.Now().Add(time.Duration(i+1) * time.Hour).Unix()
		if _, err := sm.Create(ctx, w, testUser, sessID, expires); err != nil {
			t.Fatalf("unexpected error: %v", err.Error())
		}
	}

	if err := sm.DestroyAll(ctx, testUser); err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	w := httptest.NewRecorder()
	token, err := sm.Create(ctx, w, testUser, "sess-a", time.Now().Add(time.Hour).Unix())
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	// only the freshly created session survives
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	if _, err := sm.Check(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
}

func TestRedisCreateStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	jwtMock := NewMockSessionManager(ctrl)

	ctx := context.Background()
	w := httptest.NewRecorder()
	expiresAt := time.Now().Add(time.Hour).Unix()

	jwtMock.EXPECT().Create(ctx, w, testUser, testSessID, expiresAt).Return("signed-token", nil)

	mock := redismock.NewMock()
	sm := NewSessionManagerRedis(mock, jwtMock)

	failed := redis.NewStatusResult("", errors.New("redis down"))
	mock.On("Set", ctx, testSessID, testUser.ID, time.Duration(0)).Return(failed)

	if _, err := sm.Create(ctx, w, testUser, testSessID, expiresAt); err == nil {
		t.Fatal("expected error when the store write fails, but was nil")
	}
}

func TestRedisCheckRejectsForeignSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	jwtMock := NewMockSessionManager(ctrl)

	mock := redismock.NewMock()
	sm := NewSessionManagerRedis(mock, jwtMock)

	ctx := context.Background()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	sess := &Session{User: &User{ID: testUser.ID, Username: testUser.Username}, SessionID: testSessID}
	jwtMock.EXPECT().Check(ctx, r).Return(sess, nil)

	// the stored session belongs to somebody else
	stored := redis.NewStringResult(strconv.FormatInt(testUser.ID+1, 10), nil)
	mock.On("Get", ctx, testSessID).Return(stored)

	if _, err := sm.Check(ctx, r); err == nil {
		t.Fatal("expected error for a session owned by another user, but was nil")
	}
}
