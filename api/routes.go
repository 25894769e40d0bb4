package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// PollsEndpoint is the endpoint for creating a new poll and listing
	// the existing ones
	PollsEndpoint = "/polls"
	// PollEndpoint is the endpoint to get the poll info
	PollURLParam = "pollId"
	PollEndpoint = "/polls/{" + PollURLParam + "}"
	// RevealEndpoint is the endpoint for the poll authority to trigger
	// the reveal of the winning option
	RevealEndpoint = "/polls/{" + PollURLParam + "}/reveal"
	// VotesEndpoint is the endpoint for submitting an encrypted vote
	VotesEndpoint = "/votes"
	// ClusterEndpoint exposes the cluster public keys voters need to
	// encrypt their ballots
	ClusterEndpoint = "/cluster"
)
