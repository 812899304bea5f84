// Package notify sends best-effort Slack notifications for a task's start
// and terminal outcome (SPEC_FULL §domain stack). Every public entry point
// is nil-safe and fail-open: a missing token/channel or a Slack API error
// never affects task execution, only whether a notification went out.
//
// Grounded on
// _examples/codeready-toolchain-tarsy/pkg/slack/{client,service,message}.go;
// the fingerprint-based thread-matching those reuse for Slack-originated
// alerts has no equivalent here (ojoagent tasks are API/CLI-originated,
// never threaded off an inbound Slack message), so NotifyTaskStarted posts
// a fresh message each time instead of searching channel history for one
// to reply to.
package notify

import (
	"context"
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"
)

// Client is a thin wrapper around the slack-go SDK, scoped to one channel.
type Client struct {
	api       *goslack.Client
	channelID string
}

// NewClient builds a Client posting into channelID with token.
func NewClient(token, channelID string) *Client {
	return &Client{api: goslack.New(token), channelID: channelID}
}

// PostMessage sends blocks to the configured channel, optionally as a
// threaded reply to threadTS, returning the new message's timestamp.
func (c *Client) PostMessage(ctx context.Context, blocks []goslack.Block, threadTS string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []goslack.MsgOption{goslack.MsgOptionBlocks(blocks...)}
	if threadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(threadTS))
	}

	_, ts, err := c.api.PostMessageContext(ctx, c.channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return ts, nil
}
