package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"blognest/pkg/files"
	"blognest/pkg/posts"
	"blognest/pkg/session"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type PostHandler struct {
	Sm           session.SessionManager
	PostsRepo    PostsRepo
	UsersRepo    UsersRepo
	Files        files.Storer
	DefaultCover string
	Logger       *zap.SugaredLogger
}

type PostsRepo interface {
	GetAll(ctx context.Context, order posts.SortOrder) ([]*posts.Post, error)
	GetByAuthorID(ctx context.Context, authorID int64, order posts.SortOrder) ([]*posts.Post, error)
	GetByID(ctx context.Context, id interface{}) (*posts.Post, error)
	Add(ctx context.Context, p *posts.Post) (interface{}, error)
	Update(ctx context.Context, p *posts.Post) error
	Delete(ctx context.Context, id interface{}) error
	Upvote(ctx context.Context, id interface{}, userID int64) (*posts.Post, error)
	Downvote(ctx context.Context, id interface{}, userID int64) (*posts.Post, error)

	ParseID(in string) (interface{}, error)
}

type PostPageResponse struct {
	Post        *PostResponse `json:"post"`
	UserUpvotes int           `json:"userUpvotes"`
}

type ProfileResponse struct {
	User  *UserResponse   `json:"user"`
	Posts []*PostResponse `json:"posts"`
}

func sortFromRequest(r *http.Request) posts.SortOrder {
	if r.URL.Query().Get("sort") == string(posts.SortVotes) {
		return posts.SortVotes
	}

	return posts.SortLatest
}

func validatePostFields(title, summary, content *string) []*CustomError {
	titleV := &Validator{value: title, location: "body", field: "title"}
	titleErr := func() *CustomError {
		err := titleV.Empty()
		if err != nil {
			return err
		}
		return titleV.MaxLength(200)
	}()

	summaryV := &Validator{value: summary, location: "body", field: "summary"}
	contentV := &Validator{value: content, location: "body", field: "content"}

	return mergeErrors(titleErr, summaryV.Empty(), contentV.Empty())
}

func (h *PostHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	postsDb, err := h.PostsRepo.GetAll(ctx, sortFromRequest(r))
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	postsResp, err := h.mapPosts(postsDb)
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, postsResp, http.StatusOK)
}

func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := h.PostsRepo.ParseID(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	post, err := h.PostsRepo.GetByID(ctx, id)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}

	author, err := h.authorOf(post)
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// a valid token personalizes the vote count, anything else reads as anonymous
	userUpvotes := 0
	if sess, err := session.SessionFromContext(r.Context()); err == nil {
		userUpvotes = post.VoterCount(sess.User.ID)
	}

	WriteJSON(w, &PostPageResponse{Post: MapToPostResponse(post, author), UserUpvotes: userUpvotes}, http.StatusOK)
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := session.SessionFromContext(r.Context())
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := parseUploadForm(r); err != nil {
		WriteError(w, "bad request", http.StatusBadRequest)
		return
	}

	title := r.FormValue("title")
	summary := r.FormValue("summary")
	content := r.FormValue("content")

	if validationErrors := validatePostFields(&title, &summary, &content); len(validationErrors) > 0 {
		writeValidationErrors(w, validationErrors)
		return
	}

	cover, err := h.savedCover(r)
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "could not save the cover", http.StatusBadRequest)
		return
	}
	if cover == "" {
		cover = h.DefaultCover
	}

	now := time.Now()
	post := &posts.Post{
		Title:    title,
		Summary:  summary,
		Content:  content,
		Cover:    cover,
		AuthorID: sess.User.ID,
		Votes:    map[string]int{},
		Created:  now,
		Updated:  now,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id, err := h.PostsRepo.Add(ctx, post)
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	post.ID = id

	WriteJSON(w, MapToPostResponse(post, &Author{ID: sess.User.ID, Username: sess.User.Username}), http.StatusOK)
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, err := session.SessionFromContext(r.Context())
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := parseUploadForm(r); err != nil {
		WriteError(w, "bad request", http.StatusBadRequest)
		return
	}

	id, err := h.PostsRepo.ParseID(r.FormValue("id"))
	if err != nil {
		WriteError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	title := r.FormValue("title")
	summary := r.FormValue("summary")
	content := r.FormValue("content")

	if validationErrors := validatePostFields(&title, &summary, &content); len(validationErrors) > 0 {
		writeValidationErrors(w, validationErrors)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	post, err := h.PostsRepo.GetByID(ctx, id)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}

	if post.AuthorID != sess.User.ID {
		WriteError(w, "you are not the author", http.StatusForbidden)
		return
	}

	cover, err := h.savedCover(r)
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "could not save the cover", http.StatusBadRequest)
		return
	}

	post.Title = title
	post.Summary = summary
	post.Content = content
	if cover != "" {
		post.Cover = cover
	}
	post.Updated = time.Now()

	if err := h.PostsRepo.Update(ctx, post); err != nil {
		h.writeRepoError(w, err)
		return
	}

	WriteJSON(w, MapToPostResponse(post, &Author{ID: sess.User.ID, Username: sess.User.Username}), http.StatusOK)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, err := session.SessionFromContext(r.Context())
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	id, err := h.PostsRepo.ParseID(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	post, err := h.PostsRepo.GetByID(ctx, id)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}

	if post.AuthorID != sess.User.ID {
		WriteError(w, "you are not the author", http.StatusForbidden)
		return
	}

	if err := h.PostsRepo.Delete(ctx, id); err != nil {
		h.writeRepoError(w, err)
		return
	}

	WriteJSON(w, "post deleted", http.StatusOK)
}

func (h *PostHandler) Upvote(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, h.PostsRepo.Upvote)
}

func (h *PostHandler) Downvote(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, h.PostsRepo.Downvote)
}

// Profile returns the public user record together with their posts.
func (h *PostHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		WriteError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	profile, err := h.UsersRepo.GetByID(userID)
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if profile == nil {
		WriteError(w, "user not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	postsDb, err := h.PostsRepo.GetByAuthorID(ctx, userID, sortFromRequest(r))
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	postsResp, err := h.mapPosts(postsDb)
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, &ProfileResponse{User: MapToUserResponse(profile), Posts: postsResp}, http.StatusOK)
}

func (h *PostHandler) vote(w http.ResponseWriter, r *http.Request,
	voteFn func(context.Context, interface{}, int64) (*posts.Post, error)) {
	id, err := h.PostsRepo.ParseID(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	sess, err := session.SessionFromContext(r.Context())
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	post, err := voteFn(ctx, id, sess.User.ID)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}

	author, err := h.authorOf(post)
	if err != nil {
		h.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, MapToPostResponse(post, author), http.StatusOK)
}

func (h *PostHandler) writeRepoError(w http.ResponseWriter, err error) {
	status, msg := statusForError(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(err.Error())
	}

	WriteError(w, msg, status)
}

func (h *PostHandler) authorOf(p *posts.Post) (*Author, error) {
	u, err := h.UsersRepo.GetByID(p.AuthorID)
	if err != nil {
		return nil, err
	}

	if u == nil {
		// the author account is gone, keep the post readable
		return &Author{ID: p.AuthorID}, nil
	}

	return &Author{ID: u.ID, Username: u.Username}, nil
}

func (h *PostHandler) mapPosts(postsDb []*posts.Post) ([]*PostResponse, error) {
	authors := make(map[int64]*Author)

	result := make([]*PostResponse, 0, len(postsDb))
	for _, p := range postsDb {
		author, ok := authors[p.AuthorID]
		if !ok {
			var err error
			author, err = h.authorOf(p)
			if err != nil {
				return nil, err
			}
			authors[p.AuthorID] = author
		}

		result = append(result, MapToPostResponse(p, author))
	}

	return result, nil
}

func (h *PostHandler) savedCover(r *http.Request) (string, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	return h.Files.Save(file, header)
}
