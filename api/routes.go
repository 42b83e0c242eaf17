package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// Election endpoints
	ElectionURLParam  = "electionId"                            // URL parameter for election ID
	UserURLParam      = "userId"                                // URL parameter for user ID
	BallotTagURLParam = "ballotTag"                             // URL parameter for ballot tag
	ElectionsEndpoint = "/elections"                            // GET: List elections, POST: Create election
	ElectionEndpoint  = "/elections/{" + ElectionURLParam + "}" // GET: Get election, DELETE: Delete election
	VoterEndpoint     = ElectionEndpoint + "/voters/{" + UserURLParam + "}"

	// Vote endpoints
	VotesEndpoint = ElectionEndpoint + "/votes" // POST: Cast a vote

	// Closure and audit endpoints
	CloseEndpoint   = ElectionEndpoint + "/close"                              // POST: Close an election
	ResultsEndpoint = ElectionEndpoint + "/results"                            // GET: Tally of a closed election
	ProofEndpoint   = ElectionEndpoint + "/proofs/{" + BallotTagURLParam + "}" // GET: Inclusion proof of a ballot
	AuditEndpoint   = ElectionEndpoint + "/audit"                              // GET: Recompute and compare the roots

	// Stateless proof verification
	VerifyProofEndpoint = "/proofs/verify" // POST: Verify an inclusion proof
)

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
}

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified
// endpoint URLs.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)

	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	// Fallback: add as query param
	escapedKey := url.QueryEscape(key)
	escapedVal := url.QueryEscape(param)

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return fmt.Sprintf("%s%s%s=%s", path, sep, escapedKey, escapedVal)
}
