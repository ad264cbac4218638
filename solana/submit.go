package solana

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/solwatch/solwatch/core"
)

// Submitter submits signed transactions and polls for confirmation.
// Implements core.Submitter.
type Submitter struct {
	rpc     *Client
	timeout time.Duration
	log     core.Logger
}

// NewSubmitter creates a submitter polling against the given RPC client
func NewSubmitter(rpc *Client, timeout time.Duration, log core.Logger) *Submitter {
	return &Submitter{
		rpc:     rpc,
		timeout: timeout,
		log:     log,
	}
}

// SubmitAndConfirm sends the wire transaction and blocks until the
// cluster reports it confirmed or the confirmation window elapses
func (s *Submitter) SubmitAndConfirm(ctx context.Context, signedTx []byte) (string, error) {
	signature, err := s.rpc.SendTransaction(ctx, base64.StdEncoding.EncodeToString(signedTx))
	if err != nil {
		return "", err
	}

	s.log.Infof("transaction sent: %s", signature)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	wait := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 2 * time.Second}
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("confirmation timed out for %s: %w", signature, ctx.Err())
		case <-time.After(wait.Duration()):
		}

		status, err := s.rpc.GetSignatureStatus(ctx, signature)
		if err != nil {
			s.log.WithError(err).Debug("signature status poll failed")
			continue
		}
		if status == nil {
			continue
		}
		if len(status.Err) > 0 && string(status.Err) != "null" {
			return "", fmt.Errorf("transaction %s failed on chain: %s", signature, status.Err)
		}
		if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
			return signature, nil
		}
	}
}
