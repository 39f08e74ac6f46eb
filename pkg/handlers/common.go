package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"blognest/pkg/posts"
	"blognest/pkg/user"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type Author struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type PostResponse struct {
	ID      interface{} `json:"id"`
	Title   string      `json:"title"`
	Summary string      `json:"summary"`
	Content string      `json:"content"`
	Cover   string      `json:"cover"`
	Author  *Author     `json:"author"`
	Upvotes int64       `json:"upvotes"`
	Created time.Time   `json:"createdAt"`
	Updated time.Time   `json:"updatedAt"`
}

type UserResponse struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"displayName"`
	About          string    `json:"about"`
	FollowerCount  int64     `json:"followerCount"`
	ProfilePicture string    `json:"profilePicture"`
	Created        time.Time `json:"createdAt"`
}

func WriteError(w http.ResponseWriter, msg string, status int) {
	res, err := json.Marshal(&ErrorResponse{Error: msg})
	if err != nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(res)
}

func WriteJSON(w http.ResponseWriter, v interface{}, status int) {
	res, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(res)
}

func writeValidationErrors(w http.ResponseWriter, errs []*CustomError) {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Param+" "+e.Msg)
	}

	WriteError(w, strings.Join(parts, "; "), http.StatusBadRequest)
}

// statusForError maps domain errors to the API status table; anything
// unrecognized is treated as an internal failure and kept out of the body.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, posts.ErrNotFound):
		return http.StatusNotFound, "post not found"
	case errors.Is(err, posts.ErrVoteLimit):
		return http.StatusBadRequest, "maximum upvotes reached"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func MapToPostResponse(p *posts.Post, author *Author) *PostResponse {
	return &PostResponse{
		ID:      p.ID,
		Title:   p.Title,
		Summary: p.Summary,
		Content: p.Content,
		Cover:   p.Cover,
		Author:  author,
		Upvotes: p.Upvotes,
		Created: p.Created,
		Updated: p.Updated,
	}
}

func MapToUserResponse(u *user.User) *UserResponse {
	return &UserResponse{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		About:          u.About,
		FollowerCount:  u.FollowerCount,
		ProfilePicture: u.ProfilePicture,
		Created:        u.Created,
	}
}
