package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tverrors "tagvis/internal/errors"
	"tagvis/internal/expansion"
	"tagvis/internal/render"
	"tagvis/internal/tagquery"
	"tagvis/internal/tree"
)

const maxQueryBody = 64 << 10

// TreeResponse is the body of GET /api/tree
type TreeResponse struct {
	Epoch   uint64     `json:"epoch"`
	Version uint64     `json:"version"`
	Root    *tree.Node `json:"root"`
}

// RootRequest is the body of POST /api/root
type RootRequest struct {
	Tag string `json:"tag"`
}

// RootResponse is the body returned by POST /api/root
type RootResponse struct {
	Epoch uint64 `json:"epoch"`
	Tag   string `json:"tag"`
}

// FilesResponse is the body of GET /api/files
type FilesResponse struct {
	Path  []string        `json:"path"`
	Files []expansion.Row `json:"files"`
}

// current returns the latest rendered snapshot, or a fresh copy of the
// engine's tree when nothing has been rendered yet.
func (s *Server) current() (*tree.Node, uint64) {
	root, v := s.deps.Latest.Get()
	if root == nil {
		root = s.deps.Engine.Snapshot()
	}
	return root, v
}

// handleTree returns the latest snapshot. With ?since=N it waits until a
// snapshot newer than N exists, the poll times out, or the client leaves.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			BadRequest(w, "since must be a non-negative integer")
			return
		}
		changed := s.deps.Latest.Changed()
		if _, v := s.deps.Latest.Get(); v <= since {
			timer := time.NewTimer(s.longPollTimeout)
			select {
			case <-changed:
			case <-timer.C:
			case <-r.Context().Done():
				timer.Stop()
				return
			}
			timer.Stop()
		}
	}

	root, v := s.current()
	WriteJSON(w, TreeResponse{Epoch: s.deps.Engine.Epoch(), Version: v, Root: root}, http.StatusOK)
}

// handleTreeSVG draws the latest snapshot as a sunburst
func (s *Server) handleTreeSVG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	root, _ := s.current()
	var buf bytes.Buffer
	if err := render.Sunburst(&buf, root, render.SunburstOptionsFromVis(s.deps.Vis)); err != nil {
		WriteError(w, tverrors.New(tverrors.ConfigInvalid, "cannot draw sunburst", err), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(buf.Bytes())
}

// handleTreeText prints the latest snapshot as an indented tree
func (s *Server) handleTreeText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	root, _ := s.current()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_ = render.WriteText(w, root, render.TextOptions{MaxTagLength: s.deps.Vis.MaxTagLength})
}

// handleRoot starts a new run rooted at the requested tag. An empty tag
// means the configured initial tag; "#" means no grouping tag.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req RootRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxQueryBody)).Decode(&req); err != nil && err != io.EOF {
			BadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
	}
	if req.Tag == "" {
		req.Tag = r.URL.Query().Get("tag")
	}
	if req.Tag != "" && req.Tag != tree.RootName && !tagquery.ValidTag(req.Tag) {
		BadRequest(w, "invalid tag "+strconv.Quote(req.Tag))
		return
	}

	epoch := s.deps.Engine.StartRun(s.deps.RunContext, req.Tag)
	s.logger.Info("Re-rooted tag tree", "epoch", epoch, "tag", req.Tag, "requestID", GetRequestID(r.Context()))
	WriteJSON(w, RootResponse{Epoch: epoch, Tag: req.Tag}, http.StatusAccepted)
}

// handleFiles lists the files carrying every ?tag= given
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	var tags []string
	for _, v := range r.URL.Query()["tag"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	for _, t := range tags {
		if !tagquery.ValidTag(t) {
			BadRequest(w, "invalid tag "+strconv.Quote(t))
			return
		}
	}

	rows, err := s.deps.Engine.Files(r.Context(), tags)
	if err != nil {
		WriteTagvisError(w, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	WriteJSON(w, FilesResponse{Path: tags, Files: rows}, http.StatusOK)
}

// handleQuery runs raw query text against the provider
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var text string
	switch r.Method {
	case http.MethodGet:
		text = r.URL.Query().Get("q")
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxQueryBody))
		if err != nil {
			BadRequest(w, "cannot read query body")
			return
		}
		text = string(body)
	default:
		methodNotAllowed(w, "GET, POST")
		return
	}

	if s.deps.Provider == nil {
		WriteTagvisError(w, tverrors.New(tverrors.ProviderUnavailable, "no query provider configured", nil))
		return
	}
	if strings.TrimSpace(text) == "" {
		BadRequest(w, "missing query text")
		return
	}

	res, err := s.deps.Provider.Query(r.Context(), text)
	if err != nil {
		WriteTagvisError(w, tverrors.New(tverrors.QueryFailed, "query failed", err))
		return
	}
	if !res.Successful {
		WriteTagvisError(w, tverrors.New(tverrors.QueryUnsuccessful, res.Error, nil))
		return
	}
	WriteJSON(w, res, http.StatusOK)
}

// handleIndexStats reports what the index holds
func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if s.deps.Store == nil {
		WriteTagvisError(w, tverrors.New(tverrors.IndexMissing, "no vault index attached", nil))
		return
	}

	stats, err := s.deps.Store.Stats(r.Context())
	if err != nil {
		InternalError(w, "failed to read index statistics", err)
		return
	}
	WriteJSON(w, stats, http.StatusOK)
}
