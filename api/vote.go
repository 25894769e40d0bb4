package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.vocdoni.io/dvote/log"

	"github.com/enclavote/enclavote/gateway"
	"github.com/enclavote/enclavote/poll"
	"github.com/enclavote/enclavote/types"
)

// newVote submits an encrypted ballot to a poll
// POST /votes
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	req := &VoteRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	pid := &types.PollID{}
	if err := pid.Unmarshal(req.PollID); err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
		return
	}
	if len(req.Choice) != types.VoteCiphertextSize {
		ErrInvalidInput.Withf("choice ciphertext must be %d bytes", types.VoteCiphertextSize).Write(w)
		return
	}
	if len(req.PublicKey) != types.EncryptionPubKeySize {
		ErrInvalidInput.Withf("public key must be %d bytes", types.EncryptionPubKeySize).Write(w)
		return
	}
	if len(req.Nonce) != types.TallyNonceSize {
		ErrInvalidInput.Withf("nonce must be %d bytes", types.TallyNonceSize).Write(w)
		return
	}

	var choice [types.VoteCiphertextSize]byte
	var pubkey [types.EncryptionPubKeySize]byte
	var nonce [types.TallyNonceSize]byte
	copy(choice[:], req.Choice)
	copy(pubkey[:], req.PublicKey)
	copy(nonce[:], req.Nonce)

	if err := a.ctrl.Vote(req.RequestID, pid, choice, pubkey, nonce); err != nil {
		switch {
		case errors.Is(err, poll.ErrPollNotFound):
			ErrPollNotFound.Write(w)
		case errors.Is(err, poll.ErrPollNotActive):
			ErrPollNotActive.Write(w)
		case errors.Is(err, gateway.ErrClusterNotSet):
			ErrClusterNotSet.Write(w)
		default:
			ErrGenericInternalServerError.WithErr(err).Write(w)
		}
		return
	}

	log.Debugw("vote submitted", "pollId", pid.String(), "requestId", req.RequestID)
	httpWriteOK(w)
}
