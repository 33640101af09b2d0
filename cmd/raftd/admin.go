package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cuemby/raft/pkg/fsm"
	"github.com/cuemby/raft/pkg/log"
	"github.com/cuemby/raft/pkg/raft"
)

// adminServer exposes cluster-management operations (add/remove a server,
// transfer leadership, apply a command, read a key) over plain JSON/HTTP
// for local operator tooling. Remote clients that want the same
// operations without an HTTP hop use pkg/transport's ClusterAPI, which
// rides the same gRPC connection as the peer-to-peer RaftTransport.
type adminServer struct {
	node *raft.Raft
	kv   *fsm.KVStore
}

func newAdminServer(node *raft.Raft, kv *fsm.KVStore) *adminServer {
	return &adminServer{node: node, kv: kv}
}

func (a *adminServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/status", a.handleStatus)
	mux.HandleFunc("/v1/add-voter", a.handleAddVoter)
	mux.HandleFunc("/v1/remove-server", a.handleRemoveServer)
	mux.HandleFunc("/v1/transfer-leadership", a.handleTransfer)
	mux.HandleFunc("/v1/apply", a.handleApply)
	mux.HandleFunc("/v1/get", a.handleGet)
}

func (a *adminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := a.node.Status()
	writeJSON(w, http.StatusOK, status)
}

type addVoterRequest struct {
	ID   uint64 `json:"id"`
	Role string `json:"role"`
}

func (a *adminServer) handleAddVoter(w http.ResponseWriter, r *http.Request) {
	var req addVoterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	role, err := parseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := a.node.Add(ctx, raft.ServerID(req.ID), role); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.node.JointPromote(ctx, raft.ServerID(req.ID), raft.RoleVoter, 0); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log.WithServer(req.ID).Info().Msg("added voter")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type removeServerRequest struct {
	ID uint64 `json:"id"`
}

func (a *adminServer) handleRemoveServer(w http.ResponseWriter, r *http.Request) {
	var req removeServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := a.node.Remove(ctx, raft.ServerID(req.ID)); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type transferRequest struct {
	Target uint64 `json:"target"`
}

func (a *adminServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := a.node.Transfer(ctx, raft.ServerID(req.Target)); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type applyRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (a *adminServer) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payload, err := fsm.EncodeSet(req.Key, []byte(req.Value))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if _, err := a.node.Apply(ctx, payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *adminServer) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	v, err := a.kv.Get(key)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": string(v)})
}

func parseRole(s string) (raft.Role, error) {
	switch s {
	case "voter":
		return raft.RoleVoter, nil
	case "standby":
		return raft.RoleStandby, nil
	case "spare":
		return raft.RoleSpare, nil
	case "logger":
		return raft.RoleLogger, nil
	default:
		return 0, &unknownRoleError{s}
	}
}

type unknownRoleError struct{ role string }

func (e *unknownRoleError) Error() string { return "unknown role: " + e.role }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
