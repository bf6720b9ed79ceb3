package httpx

import (
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"warbler/internal/app"
	"warbler/internal/auth"
	"warbler/internal/metrics"
	"warbler/internal/models"
	"warbler/internal/store"
	"warbler/internal/util"
	"warbler/web"
)

type Server struct {
	DB     *sql.DB
	Cfg    app.Config
	Router *mux.Router
}

func NewServer(db *sql.DB, cfg app.Config) *Server {
	s := &Server{DB: db, Cfg: cfg, Router: mux.NewRouter()}
	r := s.Router
	r.Use(withAccessLog, s.withSession)

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.PathPrefix("/static/").Handler(http.FileServer(http.FS(web.Static)))

	r.HandleFunc("/", s.handleHome).Methods("GET")
	r.HandleFunc("/signup", s.handleSignup).Methods("GET", "POST")
	r.HandleFunc("/login", s.handleLogin).Methods("GET", "POST")
	r.HandleFunc("/logout", s.handleLogout).Methods("GET")

	r.HandleFunc("/users", s.handleUsersList).Methods("GET")
	r.Handle("/users/profile", s.requireAuth(http.HandlerFunc(s.handleProfile))).Methods("GET", "POST")
	r.Handle("/users/delete", s.requireAuth(http.HandlerFunc(s.handleUserDelete))).Methods("POST")
	r.Handle("/users/follow/{id:[0-9]+}", s.requireAuth(http.HandlerFunc(s.handleFollow))).Methods("POST")
	r.Handle("/users/stop-following/{id:[0-9]+}", s.requireAuth(http.HandlerFunc(s.handleUnfollow))).Methods("POST")
	r.HandleFunc("/users/{id:[0-9]+}", s.handleUserShow).Methods("GET")
	r.Handle("/users/{id:[0-9]+}/following", s.requireAuth(http.HandlerFunc(s.handleFollowing))).Methods("GET")
	r.Handle("/users/{id:[0-9]+}/followers", s.requireAuth(http.HandlerFunc(s.handleFollowers))).Methods("GET")
	r.Handle("/users/{id:[0-9]+}/likes", s.requireAuth(http.HandlerFunc(s.handleUserLikes))).Methods("GET")

	r.Handle("/messages/new", s.requireAuth(http.HandlerFunc(s.handleMessageNew))).Methods("GET", "POST")
	r.Handle("/messages/{id:[0-9]+}", s.requireAuth(http.HandlerFunc(s.handleMessageShow))).Methods("GET")
	r.Handle("/messages/{id:[0-9]+}/delete", s.requireAuth(http.HandlerFunc(s.handleMessageDelete))).Methods("POST")
	r.Handle("/messages/{id:[0-9]+}/like", s.requireAuth(http.HandlerFunc(s.handleMessageLike))).Methods("POST")

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.Router.ServeHTTP(w, r) }

type userVM struct {
	ID       int64
	Username string
	ImageURL string
	Bio      string
	Location string
	Stats    models.UserStats
}

type msgVM struct {
	ID      int64
	UserID  int64
	Author  string
	Text    string
	Created string
	Likes   int
}

type pageData struct {
	Title    string
	Flash    string
	FlashOK  bool
	UserID   int64
	Username string
	Query    string
	User     userVM
	Users    []userVM
	Messages []msgVM
	Message  msgVM
}

func (s *Server) newPageData(r *http.Request, title string) pageData {
	data := pageData{Title: title}
	if uid, ok := auth.UserIDFrom(r.Context()); ok {
		data.UserID = uid
		var name string
		_ = s.DB.QueryRow(`SELECT username FROM users WHERE id = $1`, uid).Scan(&name)
		data.Username = name
	}
	if msg := r.URL.Query().Get("err"); msg != "" {
		data.Flash = msg
	}
	if msg := r.URL.Query().Get("ok"); msg != "" {
		data.Flash = msg
		data.FlashOK = true
	}
	return data
}

func toUserVM(u models.User, st models.UserStats) userVM {
	return userVM{
		ID:       u.ID,
		Username: u.Username,
		ImageURL: u.ImageURL,
		Bio:      u.Bio,
		Location: u.Location,
		Stats:    st,
	}
}

func toMsgVMs(msgs []models.Message) []msgVM {
	out := make([]msgVM, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, msgVM{
			ID:      m.ID,
			UserID:  m.UserID,
			Author:  m.Author,
			Text:    m.Text,
			Created: util.FormatDateTime(m.CreatedAt),
			Likes:   m.Likes,
		})
	}
	return out
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// forbidden is the 403 page shown when an owner tries to like their own
// message. The wording matches the stock permission-denied page users see.
func forbidden(w http.ResponseWriter) {
	http.Error(w, "Forbidden: You don't have the permission to access the requested resource. It is either read-protected or not readable by the server.", http.StatusForbidden)
}

// ------------------------------------------------------------------
// Home
// ------------------------------------------------------------------

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFrom(r.Context())
	if !ok {
		data := s.newPageData(r, "Warbler")
		util.Render(w, "home_anon.html", data)
		return
	}

	msgs, err := store.Timeline(s.DB, uid)
	if err != nil {
		http.Error(w, "timeline query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := s.newPageData(r, "Warbler")
	data.Messages = toMsgVMs(msgs)
	util.Render(w, "home.html", data)
}

// ------------------------------------------------------------------
// Signup / login / logout
// ------------------------------------------------------------------

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		util.Render(w, "signup.html", map[string]any{
			"Title":    "Join Warbler",
			"Error":    r.URL.Query().Get("err"),
			"Username": r.URL.Query().Get("username"),
			"Email":    r.URL.Query().Get("email"),
		})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	imageURL := strings.TrimSpace(r.FormValue("image_url"))

	_, err := auth.Register(s.DB, username, email, password, imageURL)
	if err != nil {
		msg := "Internal error"
		switch {
		case errors.Is(err, auth.ErrMissingFields),
			errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrShortPassword):
			msg = err.Error()
		case errors.Is(err, auth.ErrUsernameTaken):
			msg = "Username already taken"
		case errors.Is(err, auth.ErrEmailTaken):
			msg = "Email already taken"
		default:
			log.Error().Err(err).Msg("signup failed")
		}
		http.Redirect(w, r, "/signup?err="+url.QueryEscape(msg)+
			"&username="+url.QueryEscape(username)+
			"&email="+url.QueryEscape(email), http.StatusFound)
		return
	}

	// Signup logs the new user straight in.
	sid, _, err := auth.Login(s.DB, username, password, s.Cfg.SessionLifetime)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	s.setSessionCookie(w, sid)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		util.Render(w, "login.html", map[string]any{
			"Title": "Log in",
			"Bye":   r.URL.Query().Get("bye") == "1",
			"Error": r.URL.Query().Get("err"),
		})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	sid, uid, err := auth.Login(s.DB, username, password, s.Cfg.SessionLifetime)
	if err != nil {
		http.Redirect(w, r, "/login?err="+url.QueryEscape("Invalid credentials."), http.StatusFound)
		return
	}

	log.Info().Int64("uid", uid).Msg("login OK")
	s.setSessionCookie(w, sid)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil {
		_ = auth.Logout(s.DB, c.Value)
		c.MaxAge = -1
		c.Path = "/"
		http.SetCookie(w, c)
	}
	http.Redirect(w, r, "/login?bye=1", http.StatusFound)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.Cfg.SessionLifetime),
	})
}

// ------------------------------------------------------------------
// Users
// ------------------------------------------------------------------

func (s *Server) handleUsersList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	users, err := store.ListUsers(s.DB, q)
	if err != nil {
		http.Error(w, "users query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := s.newPageData(r, "Users")
	data.Query = q
	for _, u := range users {
		data.Users = append(data.Users, toUserVM(u, models.UserStats{}))
	}
	util.Render(w, "users_index.html", data)
}

// loadUserPage pulls the pieces every profile-ish page needs: the user, their
// stats, and a 404 when the id is unknown.
func (s *Server) loadUserPage(w http.ResponseWriter, r *http.Request) (userVM, bool) {
	u, err := store.GetUser(s.DB, pathID(r))
	if err == sql.ErrNoRows {
		http.NotFound(w, r)
		return userVM{}, false
	}
	if err != nil {
		http.Error(w, "user query: "+err.Error(), http.StatusInternalServerError)
		return userVM{}, false
	}
	st, err := store.UserStats(s.DB, u.ID)
	if err != nil {
		http.Error(w, "stats query: "+err.Error(), http.StatusInternalServerError)
		return userVM{}, false
	}
	return toUserVM(u, st), true
}

func (s *Server) handleUserShow(w http.ResponseWriter, r *http.Request) {
	vm, ok := s.loadUserPage(w, r)
	if !ok {
		return
	}
	msgs, err := store.UserMessages(s.DB, vm.ID, 100)
	if err != nil {
		http.Error(w, "messages query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := s.newPageData(r, "@"+vm.Username)
	data.User = vm
	data.Messages = toMsgVMs(msgs)
	util.Render(w, "user_show.html", data)
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request) {
	vm, ok := s.loadUserPage(w, r)
	if !ok {
		return
	}
	users, err := store.Following(s.DB, vm.ID)
	if err != nil {
		http.Error(w, "following query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := s.newPageData(r, "Following")
	data.User = vm
	for _, u := range users {
		data.Users = append(data.Users, toUserVM(u, models.UserStats{}))
	}
	util.Render(w, "following.html", data)
}

func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) {
	vm, ok := s.loadUserPage(w, r)
	if !ok {
		return
	}
	users, err := store.Followers(s.DB, vm.ID)
	if err != nil {
		http.Error(w, "followers query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := s.newPageData(r, "Followers")
	data.User = vm
	for _, u := range users {
		data.Users = append(data.Users, toUserVM(u, models.UserStats{}))
	}
	util.Render(w, "followers.html", data)
}

func (s *Server) handleUserLikes(w http.ResponseWriter, r *http.Request) {
	vm, ok := s.loadUserPage(w, r)
	if !ok {
		return
	}
	msgs, err := store.LikedMessages(s.DB, vm.ID)
	if err != nil {
		http.Error(w, "likes query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := s.newPageData(r, "Liked warbles")
	data.User = vm
	data.Messages = toMsgVMs(msgs)
	util.Render(w, "likes.html", data)
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFrom(r.Context())
	target, err := store.GetUser(s.DB, pathID(r))
	if err == sql.ErrNoRows {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "user query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := store.Follow(s.DB, uid, target.ID); err != nil {
		http.Error(w, "follow: "+err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.FollowToggles.WithLabelValues("follow").Inc()
	http.Redirect(w, r, "/users/"+strconv.FormatInt(uid, 10)+"/following", http.StatusFound)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFrom(r.Context())
	target, err := store.GetUser(s.DB, pathID(r))
	if err == sql.ErrNoRows {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "user query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := store.Unfollow(s.DB, uid, target.ID); err != nil {
		http.Error(w, "unfollow: "+err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.FollowToggles.WithLabelValues("unfollow").Inc()
	http.Redirect(w, r, "/users/"+strconv.FormatInt(uid, 10)+"/following", http.StatusFound)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFrom(r.Context())
	u, err := store.GetUser(s.DB, uid)
	if err != nil {
		http.Error(w, "user query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if r.Method == http.MethodGet {
		util.Render(w, "profile_edit.html", map[string]any{
			"Title":    "Edit profile",
			"Error":    r.URL.Query().Get("err"),
			"Username": u.Username,
			"Email":    u.Email,
			"ImageURL": u.ImageURL,
			"Bio":      u.Bio,
			"Location": u.Location,
		})
		return
	}

	// Changing the profile requires the current password.
	if err := auth.CheckPassword(s.DB, uid, r.FormValue("password")); err != nil {
		redirectWithFlash(w, r, "/", "Wrong password, please try again.")
		return
	}

	u.Username = strings.TrimSpace(r.FormValue("username"))
	u.Email = strings.TrimSpace(r.FormValue("email"))
	u.ImageURL = strings.TrimSpace(r.FormValue("image_url"))
	u.Bio = strings.TrimSpace(r.FormValue("bio"))
	u.Location = strings.TrimSpace(r.FormValue("location"))
	if u.Username == "" || u.Email == "" {
		http.Redirect(w, r, "/users/profile?err="+url.QueryEscape("Username and email are required"), http.StatusFound)
		return
	}

	if err := store.UpdateUser(s.DB, u); err != nil {
		http.Redirect(w, r, "/users/profile?err="+url.QueryEscape("Could not save profile"), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/users/"+strconv.FormatInt(uid, 10), http.StatusFound)
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFrom(r.Context())
	if err := store.DeleteUser(s.DB, uid); err != nil {
		http.Error(w, "delete user: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if c, err := r.Cookie(CookieName); err == nil {
		c.MaxAge = -1
		c.Path = "/"
		http.SetCookie(w, c)
	}
	http.Redirect(w, r, "/signup", http.StatusFound)
}

// ------------------------------------------------------------------
// Messages
// ------------------------------------------------------------------

func (s *Server) handleMessageNew(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFrom(r.Context())

	if r.Method == http.MethodGet {
		data := s.newPageData(r, "New warble")
		util.Render(w, "message_new.html", data)
		return
	}

	text := strings.TrimSpace(r.FormValue("text"))
	if text == "" {
		http.Redirect(w, r, "/messages/new?err="+url.QueryEscape("Text is required"), http.StatusFound)
		return
	}
	// Length is counted in characters, not bytes; slicing the raw string
	// could cut a rune in half.
	if utf8.RuneCountInString(text) > 140 {
		http.Redirect(w, r, "/messages/new?err="+url.QueryEscape("Text must be 140 characters or fewer"), http.StatusFound)
		return
	}

	if _, err := store.CreateMessage(s.DB, uid, text); err != nil {
		http.Error(w, "create message: "+err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.MessagesCreated.Inc()
	http.Redirect(w, r, "/users/"+strconv.FormatInt(uid, 10), http.StatusFound)
}

func (s *Server) handleMessageShow(w http.ResponseWriter, r *http.Request) {
	m, err := store.GetMessage(s.DB, pathID(r))
	if err == sql.ErrNoRows {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "message query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := s.newPageData(r, "Warble")
	data.Message = msgVM{
		ID:      m.ID,
		UserID:  m.UserID,
		Author:  m.Author,
		Text:    m.Text,
		Created: util.FormatDateTime(m.CreatedAt),
		Likes:   m.Likes,
	}
	util.Render(w, "message_show.html", data)
}

func (s *Server) handleMessageDelete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFrom(r.Context())
	m, err := store.GetMessage(s.DB, pathID(r))
	if err == sql.ErrNoRows {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "message query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Only the owner may delete; everyone else gets the unauthorized flash
	// and the message stays.
	if m.UserID != uid {
		redirectWithFlash(w, r, "/", FlashUnauthorized)
		return
	}

	if err := store.DeleteMessage(s.DB, m.ID); err != nil {
		http.Error(w, "delete message: "+err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/users/"+strconv.FormatInt(uid, 10), http.StatusFound)
}

func (s *Server) handleMessageLike(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFrom(r.Context())
	m, err := store.GetMessage(s.DB, pathID(r))
	if err == sql.ErrNoRows {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "message query: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Liking your own warble is forbidden, not just unauthorized.
	if m.UserID == uid {
		forbidden(w)
		return
	}

	liked, err := store.ToggleLike(s.DB, uid, m.ID)
	if err != nil {
		http.Error(w, "toggle like: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if liked {
		metrics.LikeToggles.WithLabelValues("like").Inc()
	} else {
		metrics.LikeToggles.WithLabelValues("unlike").Inc()
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
