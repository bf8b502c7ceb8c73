package devserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/flow"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

// statusInProgress is the workflow status applied on selection
const statusInProgress = "ip"

// Handler serves the directory routes
type Handler struct {
	db       *DB
	sessions *Sessions
	logger   *slog.Logger
}

func NewHandler(db *DB, sessions *Sessions, logger *slog.Logger) *Handler {
	return &Handler{db: db, sessions: sessions, logger: logger}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "db": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.sessions.Count()})
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds flow.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	creds = creds.Normalize()

	fail := func(msg string) {
		writeJSON(w, http.StatusOK, flow.LoginResponse{Envelope: flow.Envelope{Error: msg}})
	}

	if creds.SiteURL == "" {
		fail("No site URL provided")
		return
	}

	session := model.Session{SiteURL: creds.SiteURL, AuthMethod: creds.AuthMethod}
	switch creds.AuthMethod {
	case model.AuthUser:
		if creds.Login == "" || creds.Password == "" {
			fail("Login and password required")
			return
		}
		user, err := h.db.AuthenticateUser(r.Context(), creds.Login, creds.Password)
		if err != nil {
			h.loginFailed(w, creds, err)
			return
		}
		session.UserName = user.Name
		session.UserID = user.ID
	case model.AuthScript:
		if creds.ScriptName == "" || creds.APIKey == "" {
			fail("Script name and API key required")
			return
		}
		if err := h.db.AuthenticateScript(r.Context(), creds.ScriptName, creds.APIKey); err != nil {
			h.loginFailed(w, creds, err)
			return
		}
		session.UserName = creds.ScriptName
		// Scripts act on behalf of the first active user
		user, err := h.db.FirstActiveUser(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if user != nil {
			session.UserID = user.ID
		}
	default:
		fail("Unknown auth method " + strconv.Quote(string(creds.AuthMethod)))
		return
	}

	h.sessions.Put(SessionKey(creds.SiteURL, creds.AuthMethod, creds.Identity()), session)
	h.logger.Info("login", "credentials", creds, "user_id", session.UserID)

	writeJSON(w, http.StatusOK, flow.LoginResponse{
		Envelope: flow.Envelope{Success: true, Message: "Logged in as " + session.UserName},
		UserName: session.UserName,
		UserID:   session.UserID,
		SiteURL:  session.SiteURL,
	})
}

func (h *Handler) loginFailed(w http.ResponseWriter, creds flow.Credentials, err error) {
	if errors.Is(err, ErrInvalidCredentials) {
		h.logger.Warn("login rejected", "credentials", creds)
		writeJSON(w, http.StatusOK, flow.LoginResponse{Envelope: flow.Envelope{Error: "Invalid credentials"}})
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// Status handles GET /status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.First()
	if !ok {
		writeJSON(w, http.StatusOK, flow.StatusResponse{LoggedIn: false})
		return
	}
	writeJSON(w, http.StatusOK, flow.StatusResponse{
		LoggedIn:   true,
		UserName:   s.UserName,
		UserID:     s.UserID,
		SiteURL:    s.SiteURL,
		AuthMethod: s.AuthMethod,
	})
}

// Logout handles POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear()
	writeJSON(w, http.StatusOK, flow.Envelope{Success: true, Message: "Logged out"})
}

// Projects handles GET /projects
func (h *Handler) Projects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.db.Projects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, flow.ProjectsResponse{Envelope: flow.Envelope{Success: true}, Projects: projects})
}

// Sequences handles GET /sequences?projectId=
func (h *Handler) Sequences(w http.ResponseWriter, r *http.Request) {
	projectID, ok := queryID(w, r, "projectId", true)
	if !ok {
		return
	}
	seqs, err := h.db.Sequences(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, flow.SequencesResponse{Envelope: flow.Envelope{Success: true}, Sequences: seqs})
}

// Shots handles GET /shots?projectId=&sequenceId=
func (h *Handler) Shots(w http.ResponseWriter, r *http.Request) {
	projectID, ok := queryID(w, r, "projectId", true)
	if !ok {
		return
	}
	sequenceID, ok := queryID(w, r, "sequenceId", false)
	if !ok {
		return
	}
	shots, err := h.db.Shots(r.Context(), projectID, sequenceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, flow.ShotsResponse{Envelope: flow.Envelope{Success: true}, Shots: shots})
}

// Tasks handles GET /tasks?shotId=
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	shotID, ok := queryID(w, r, "shotId", true)
	if !ok {
		return
	}
	tasks, err := h.db.Tasks(r.Context(), shotID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, flow.TasksResponse{Envelope: flow.Envelope{Success: true}, Tasks: tasks})
}

// LatestVersion handles GET /versions/latest?shotId=
func (h *Handler) LatestVersion(w http.ResponseWriter, r *http.Request) {
	shotID, ok := queryID(w, r, "shotId", true)
	if !ok {
		return
	}
	v, err := h.db.LatestVersion(r.Context(), shotID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, flow.LatestVersionResponse{Envelope: flow.Envelope{Success: true}, Version: v})
}

// Select handles POST /select
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req flow.SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	var err error
	switch req.Kind {
	case model.KindShot:
		if req.SetInProgress {
			err = h.db.SetShotStatus(ctx, req.ID, statusInProgress)
		}
	case model.KindTask:
		if req.SetInProgress {
			err = h.db.SetTaskStatus(ctx, req.ID, statusInProgress)
		}
		if err == nil && req.AssignToMe {
			s, _ := sessionFrom(ctx)
			if s.UserID == 0 {
				writeError(w, http.StatusBadRequest, "session has no user to assign")
				return
			}
			err = h.db.AssignTask(ctx, req.ID, s.UserID)
		}
	}
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, string(req.Kind)+" "+strconv.Itoa(req.ID)+" not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("selection applied", "kind", req.Kind, "id", req.ID,
		"set_in_progress", req.SetInProgress, "assign_to_me", req.AssignToMe)
	writeJSON(w, http.StatusOK, flow.Envelope{Success: true})
}

// Publish handles POST /publish
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req flow.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, flow.PublishResponse{Error: "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusOK, flow.PublishResponse{Error: err.Error()})
		return
	}

	id, err := h.db.CreateVersion(r.Context(), req)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusOK, flow.PublishResponse{Error: "shot " + strconv.Itoa(req.ShotID) + " not found in project"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, flow.PublishResponse{Error: err.Error()})
		return
	}

	versionID := strconv.FormatInt(id, 10)
	h.logger.Info("version published", "version_id", versionID, "code", req.Code, "shot_id", req.ShotID)
	writeJSON(w, http.StatusOK, flow.PublishResponse{VersionID: flow.VersionID(versionID)})
}

// queryID parses an integer id query parameter. Optional parameters default to 0.
func queryID(w http.ResponseWriter, r *http.Request, name string, required bool) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			writeError(w, http.StatusBadRequest, name+" is required")
			return 0, false
		}
		return 0, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return id, true
}
