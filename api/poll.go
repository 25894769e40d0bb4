package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.vocdoni.io/dvote/log"

	"github.com/enclavote/enclavote/crypto/ethereum"
	"github.com/enclavote/enclavote/gateway"
	"github.com/enclavote/enclavote/poll"
	"github.com/enclavote/enclavote/types"
)

// createPoll creates a new confidential poll
// POST /polls
func (a *API) createPoll(w http.ResponseWriter, r *http.Request) {
	req := &CreatePollRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if len(req.Nonce) != types.TallyNonceSize {
		ErrInvalidInput.Withf("nonce must be %d bytes", types.TallyNonceSize).Write(w)
		return
	}

	// Extract the authority address from the signature
	authority, err := ethereum.AddrFromSignature(CreatePollMessage(req.ID, req.Question, req.Nonce), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}

	var nonce [types.TallyNonceSize]byte
	copy(nonce[:], req.Nonce)
	if err := a.ctrl.Create(req.RequestID, authority, req.ID, req.Question, nonce); err != nil {
		switch {
		case errors.Is(err, poll.ErrPollExists):
			ErrPollAlreadyExists.Write(w)
		case errors.Is(err, poll.ErrInvalidInput):
			ErrInvalidInput.WithErr(err).Write(w)
		case errors.Is(err, gateway.ErrClusterNotSet):
			ErrClusterNotSet.Write(w)
		default:
			ErrGenericInternalServerError.WithErr(err).Write(w)
		}
		return
	}

	pid := types.PollID{Authority: authority, ID: req.ID}
	log.Infow("new poll", "pollId", pid.String(), "authority", authority.Hex())
	httpWriteJSON(w, &CreatePollResponse{PollID: pid.Marshal()})
}

// pollInfo returns the public view of a poll
// GET /polls/{pollId}
func (a *API) pollInfo(w http.ResponseWriter, r *http.Request) {
	pid, ok := urlPollID(w, r)
	if !ok {
		return
	}
	p, err := a.ctrl.Poll(pid)
	if err != nil {
		if errors.Is(err, poll.ErrPollNotFound) {
			ErrPollNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}

	info := &PollInfo{
		PollID:    pid.Marshal(),
		Authority: p.Authority,
		Question:  p.Question,
		Status:    statusString(p.Status),
	}
	if p.Status == types.PollStatusRevealed {
		winner := p.Winner
		info.Winner = &winner
	}
	httpWriteJSON(w, info)
}

// listPolls returns the identifiers of all known polls
// GET /polls
func (a *API) listPolls(w http.ResponseWriter, _ *http.Request) {
	pids, err := a.storage.ListPolls()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	resp := &PollListResponse{Polls: []types.HexBytes{}}
	for _, pid := range pids {
		resp.Polls = append(resp.Polls, pid.Marshal())
	}
	httpWriteJSON(w, resp)
}

// revealPoll triggers the reveal of the winning option, authority only
// POST /polls/{pollId}/reveal
func (a *API) revealPoll(w http.ResponseWriter, r *http.Request) {
	pid, ok := urlPollID(w, r)
	if !ok {
		return
	}
	req := &RevealRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}

	caller, err := ethereum.AddrFromSignature(RevealMessage(pid), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}

	if err := a.ctrl.Reveal(req.RequestID, caller, pid); err != nil {
		switch {
		case errors.Is(err, poll.ErrPollNotFound):
			ErrPollNotFound.Write(w)
		case errors.Is(err, poll.ErrInvalidAuthority):
			ErrInvalidAuthority.Write(w)
		case errors.Is(err, poll.ErrPollNotActive):
			ErrPollNotActive.Write(w)
		case errors.Is(err, gateway.ErrClusterNotSet):
			ErrClusterNotSet.Write(w)
		default:
			ErrGenericInternalServerError.WithErr(err).Write(w)
		}
		return
	}

	log.Infow("reveal submitted", "pollId", pid.String(), "caller", caller.Hex())
	httpWriteOK(w)
}

// urlPollID parses the pollId URL parameter, writing the error response on
// failure.
func urlPollID(w http.ResponseWriter, r *http.Request) (*types.PollID, bool) {
	raw := types.HexBytes{}
	if err := raw.FromString(chi.URLParam(r, PollURLParam)); err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
		return nil, false
	}
	pid := &types.PollID{}
	if err := pid.Unmarshal(raw); err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
		return nil, false
	}
	return pid, true
}
