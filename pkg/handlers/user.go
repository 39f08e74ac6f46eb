package handlers

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"blognest/pkg/files"
	"blognest/pkg/session"
	"blognest/pkg/user"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

const (
	maxUploadBytes = 10 << 20
	sessionTTL     = 72 * time.Hour
)

type UserHandler struct {
	Sm     session.SessionManager
	Repo   UsersRepo
	Files  files.Storer
	Logger *zap.SugaredLogger
}

type UsersRepo interface {
	GetByID(id int64) (*user.User, error)
	GetByUsername(username string) (*user.User, error)
	Add(u *user.User) (int64, error)
	Update(u *user.User) error
}

type LoginReq struct {
	Password *string `json:"password"`
	Username *string `json:"username"`
}

type LoginResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func validateCredentials(username, password *string) []*CustomError {
	usr := &Validator{value: username, location: "body", field: "username"}
	usrErr := func() *CustomError {
		err := usr.Required()
		if err != nil {
			return err
		}
		err = usr.Empty()
		if err != nil {
			return err
		}
		err = usr.MinLength(4)
		if err != nil {
			return err
		}
		err = usr.MaxLength(32)
		if err != nil {
			return err
		}
		err = usr.Custom(func(value string) bool {
			return strings.TrimSpace(value) == value
		}, "cannot start or end with whitespace")

		if err != nil {
			return err
		}

		return usr.Matches("^[a-zA-Z0-9_-]+$")
	}()

	pwd := &Validator{value: password, location: "body", field: "password"}
	pwdErr := func() *CustomError {
		err := pwd.Required()
		if err != nil {
			return err
		}
		err = pwd.Empty()
		if err != nil {
			return err
		}
		err = pwd.MinLength(8)
		if err != nil {
			return err
		}
		return pwd.MaxLength(72)
	}()

	return mergeErrors(usrErr, pwdErr)
}

func validateAbout(about *string) []*CustomError {
	v := &Validator{value: about, location: "body", field: "about"}
	return mergeErrors(v.MaxLength(1000))
}

// parseUploadForm accepts either a multipart form (the frontend sends
// uploads this way) or a plain urlencoded body.
func parseUploadForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxUploadBytes)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}

	return nil
}

// savedUpload stores the named file when it was sent; no file, or a plain
// urlencoded body, is not an error.
func (u *UserHandler) savedUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	return u.Files.Save(file, header)
}

func (u *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := parseUploadForm(r); err != nil {
		WriteError(w, "bad request", http.StatusBadRequest)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	about := r.FormValue("about")

	validationErrors := validateCredentials(&username, &password)
	validationErrors = append(validationErrors, validateAbout(&about)...)
	if len(validationErrors) > 0 {
		writeValidationErrors(w, validationErrors)
		return
	}

	existUser, err := u.Repo.GetByUsername(username)
	if err != nil {
		u.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if existUser != nil {
		WriteError(w, "username already exists", http.StatusBadRequest)
		return
	}

	picture, err := u.savedUpload(r, "profilePicture")
	if err != nil {
		u.Logger.Error(err.Error())
		WriteError(w, "could not save the picture", http.StatusBadRequest)
		return
	}

	salt := make([]byte, 8)
	rand.Read(salt)

	newUser := &user.User{
		Username:       username,
		Password:       HashPass(salt, password),
		DisplayName:    r.FormValue("displayName"),
		About:          about,
		ProfilePicture: picture,
		Created:        time.Now(),
	}

	id, err := u.Repo.Add(newUser)
	if err != nil {
		u.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	newUser.ID = id

	WriteJSON(w, MapToUserResponse(newUser), http.StatusOK)
}

func (u *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		u.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var req LoginReq
	err = json.Unmarshal(body, &req)
	if err != nil {
		WriteError(w, "bad request", http.StatusBadRequest)
		return
	}

	validationErrors := validateCredentials(req.Username, req.Password)
	if len(validationErrors) > 0 {
		writeValidationErrors(w, validationErrors)
		return
	}

	loggedIn, err := u.Repo.GetByUsername(*req.Username)
	if err != nil {
		u.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if loggedIn == nil || !checkPass(loggedIn.Password, *req.Password) {
		WriteError(w, "wrong credentials", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	sessID := uuid.New().String()
	expiresAt := time.Now().Add(sessionTTL).Unix()
	_, err = u.Sm.Create(ctx, w, &session.User{ID: loggedIn.ID, Username: loggedIn.Username}, sessID, expiresAt)
	if err != nil {
		u.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, &LoginResponse{ID: loggedIn.ID, Username: loggedIn.Username}, http.StatusOK)
}

func (u *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := u.Sm.Destroy(ctx, w, r); err != nil {
		u.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, "ok", http.StatusOK)
}

// Me reports the caller's identity, null for anonymous visitors.
func (u *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, err := session.SessionFromContext(r.Context())
	if err != nil {
		WriteJSON(w, nil, http.StatusOK)
		return
	}

	WriteJSON(w, sess.User, http.StatusOK)
}

func (u *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		WriteError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	sess, err := session.SessionFromContext(r.Context())
	if err != nil {
		u.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if sess.User.ID != userID {
		WriteError(w, "you are not allowed to edit this profile", http.StatusForbidden)
		return
	}

	if err := parseUploadForm(r); err != nil {
		WriteError(w, "bad request", http.StatusBadRequest)
		return
	}

	about := r.FormValue("about")
	if validationErrors := validateAbout(&about); len(validationErrors) > 0 {
		writeValidationErrors(w, validationErrors)
		return
	}

	profile, err := u.Repo.GetByID(userID)
	if err != nil {
		u.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if profile == nil {
		WriteError(w, "user not found", http.StatusNotFound)
		return
	}

	picture, err := u.savedUpload(r, "file")
	if err != nil {
		u.Logger.Error(err.Error())
		WriteError(w, "could not save the picture", http.StatusBadRequest)
		return
	}

	profile.DisplayName = r.FormValue("displayName")
	profile.About = about
	if picture != "" {
		profile.ProfilePicture = picture
	}

	if err := u.Repo.Update(profile); err != nil {
		u.Logger.Error(err.Error())
		WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, MapToUserResponse(profile), http.StatusOK)
}

func HashPass(salt []byte, plainPassword string) []byte {
	hashedPass := argon2.IDKey([]byte(plainPassword), salt, 1, 64*1024, 4, 32)
	return append(salt, hashedPass...)
}

func checkPass(passHash []byte, plainPassword string) bool {
	if len(passHash) < 8 {
		return false
	}

	salt := make([]byte, 8)
	copy(salt, passHash[0:8])
	return bytes.Equal(HashPass(salt, plainPassword), passHash)
}
