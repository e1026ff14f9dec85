package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"

	"github.com/roach88/botsync/internal/auth"
)

// RemoteState is a snapshot of the fake remote's data.
type RemoteState struct {
	Flows  []map[string]any `json:"flows"`
	Rules  []any            `json:"rules"`
	Labels []string         `json:"labels"`
	Builds int              `json:"builds"`
}

// FlowNames returns the names of the held flows in storage order.
func (s RemoteState) FlowNames() []string {
	names := make([]string, 0, len(s.Flows))
	for _, f := range s.Flows {
		name, _ := f["name"].(string)
		names = append(names, name)
	}
	return names
}

// FakeStudio is an in-memory CSML client API. It authenticates every
// request against its credentials, records it, and applies it to its state.
//
// Created flows get the ids "flow-1", "flow-2", ... in creation order.
//
// Thread-safety: safe for concurrent use; requests are serialized.
type FakeStudio struct {
	creds auth.Credentials
	mux   *http.ServeMux

	mu      sync.Mutex
	state   RemoteState
	reject  []Rejection
	trace   []TraceEvent
	nextID  int
	nextSeq int64
}

// NewFakeStudio creates a fake remote holding setup's state.
func NewFakeStudio(creds auth.Credentials, setup RemoteSetup) *FakeStudio {
	s := &FakeStudio{
		creds:  creds,
		reject: slices.Clone(setup.Reject),
		state: RemoteState{
			Flows:  []map[string]any{},
			Rules:  []any{},
			Labels: slices.Clone(setup.Labels),
		},
	}
	if s.state.Labels == nil {
		s.state.Labels = []string{}
	}
	for _, f := range setup.Flows {
		s.state.Flows = append(s.state.Flows, normalize(f))
	}
	for _, r := range setup.Rules {
		s.state.Rules = append(s.state.Rules, normalize(r))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/bot/flows", s.listFlows)
	mux.HandleFunc("POST /api/bot/flows", s.createFlow)
	mux.HandleFunc("PUT /api/bot/flows/{id}", s.updateFlow)
	mux.HandleFunc("DELETE /api/bot/flows/{id}", s.deleteFlow)
	mux.HandleFunc("PUT /api/bot", s.replaceRules)
	mux.HandleFunc("POST /api/bot/build", s.build)
	mux.HandleFunc("POST /api/bot/label", s.createLabel)
	mux.HandleFunc("DELETE /api/bot/label/{name}", s.deleteLabel)
	s.mux = mux
	return s
}

// ServeHTTP implements http.Handler.
func (s *FakeStudio) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(data))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	event := TraceEvent{
		Seq:    s.nextSeq,
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
	}
	if len(data) > 0 {
		// Numbers stay json.Number so the trace renders as canonical JSON.
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var body any
		if err := dec.Decode(&body); err != nil {
			body = string(data)
		}
		event.Body = body
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	switch {
	case !auth.Verify(s.creds, r.Header.Get(auth.HeaderAPIKey), r.Header.Get(auth.HeaderSignature)):
		writeError(rec, http.StatusUnauthorized, "invalid signature")
	case s.rejected(r) != 0:
		writeError(rec, s.rejected(r), "rejected")
	default:
		s.mux.ServeHTTP(rec, r)
	}
	event.Status = rec.status
	s.trace = append(s.trace, event)
}

// Trace returns the recorded requests.
func (s *FakeStudio) Trace() []TraceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.trace)
}

// State returns a copy of the current state.
func (s *FakeStudio) State() RemoteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RemoteState{
		Flows:  slices.Clone(s.state.Flows),
		Rules:  slices.Clone(s.state.Rules),
		Labels: slices.Clone(s.state.Labels),
		Builds: s.state.Builds,
	}
}

func (s *FakeStudio) rejected(r *http.Request) int {
	for _, rej := range s.reject {
		if rej.Method == r.Method && rej.Path == r.URL.EscapedPath() {
			return rej.Status
		}
	}
	return 0
}

// Handlers run with s.mu held.

func (s *FakeStudio) listFlows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Flows)
}

func (s *FakeStudio) createFlow(w http.ResponseWriter, r *http.Request) {
	flow, ok := decodeObject(w, r)
	if !ok {
		return
	}
	s.nextID++
	flow["id"] = fmt.Sprintf("flow-%d", s.nextID)
	s.state.Flows = append(s.state.Flows, flow)
	writeJSON(w, http.StatusCreated, flow)
}

func (s *FakeStudio) updateFlow(w http.ResponseWriter, r *http.Request) {
	i := s.flowIndex(r.PathValue("id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "flow not found")
		return
	}
	flow, ok := decodeObject(w, r)
	if !ok {
		return
	}
	flow["id"] = s.state.Flows[i]["id"]
	s.state.Flows[i] = flow
	writeJSON(w, http.StatusOK, flow)
}

func (s *FakeStudio) deleteFlow(w http.ResponseWriter, r *http.Request) {
	i := s.flowIndex(r.PathValue("id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "flow not found")
		return
	}
	s.state.Flows = slices.Delete(s.state.Flows, i, i+1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeStudio) replaceRules(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}
	rules, ok := body["airules"].([]any)
	if !ok {
		writeError(w, http.StatusBadRequest, "airules must be a list")
		return
	}
	s.state.Rules = rules
	writeJSON(w, http.StatusOK, map[string]any{"airules": rules})
}

func (s *FakeStudio) build(w http.ResponseWriter, r *http.Request) {
	s.state.Builds++
	writeJSON(w, http.StatusOK, map[string]any{"build": s.state.Builds})
}

func (s *FakeStudio) createLabel(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}
	label, _ := body["label"].(string)
	if label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}
	if slices.Contains(s.state.Labels, label) {
		writeError(w, http.StatusConflict, "label exists")
		return
	}
	s.state.Labels = append(s.state.Labels, label)
	writeJSON(w, http.StatusCreated, map[string]any{"label": label})
}

func (s *FakeStudio) deleteLabel(w http.ResponseWriter, r *http.Request) {
	i := slices.Index(s.state.Labels, r.PathValue("name"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "label not found")
		return
	}
	s.state.Labels = slices.Delete(s.state.Labels, i, i+1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeStudio) flowIndex(id string) int {
	return slices.IndexFunc(s.state.Flows, func(f map[string]any) bool {
		return fmt.Sprint(f["id"]) == id
	})
}

// statusRecorder captures the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var obj map[string]any
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil || obj == nil {
		writeError(w, http.StatusBadRequest, "expected a JSON object")
		return nil, false
	}
	return obj, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// normalize round-trips a YAML-decoded value through JSON so that it
// compares equal to values decoded from request bodies.
func normalize(v map[string]any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
