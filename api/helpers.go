package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/types"
)

// maxRequestBody bounds the size of the accepted JSON bodies.
const maxRequestBody = 1 << 20

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
		return
	}
	if !DisabledLogging && log.Level() == log.LogLevelDebug {
		log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
	}
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// decodeBody decodes the JSON body of r into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return ErrMalformedBody.WithErr(err)
	}
	return nil
}

// electionParam returns the election of the request URL, writing the error
// response and returning nil if it cannot be loaded.
func (a *API) electionParam(w http.ResponseWriter, r *http.Request) *types.Election {
	id := chi.URLParam(r, ElectionURLParam)
	if !types.ValidElectionID(id) {
		ErrMalformedParam.Withf("invalid election id %q", id).Write(w)
		return nil
	}
	e, err := a.storage.Election(id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ErrElectionNotFound.With(id).Write(w)
			return nil
		}
		errorFrom(err).Write(w)
		return nil
	}
	return e
}

// closedElectionParam is electionParam for endpoints that only serve closed
// elections.
func (a *API) closedElectionParam(w http.ResponseWriter, r *http.Request) *types.Election {
	e := a.electionParam(w, r)
	if e == nil {
		return nil
	}
	if e.IsActive || e.MerkleRoot == nil || e.ResultsDigest == nil {
		ErrElectionNotClosed.With(e.ID).Write(w)
		return nil
	}
	return e
}
