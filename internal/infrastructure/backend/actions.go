package backend

import (
	"context"
	"fmt"
	"net/http"

	syncdomain "github.com/wavechat/client/internal/domain/sync"
)

// SendAction replays one queued action against its resource path.
// Dispatch is an exhaustive switch over the payload variant.
func (c *Client) SendAction(ctx context.Context, token string, payload syncdomain.ActionPayload) error {
	switch p := payload.(type) {
	case syncdomain.MessageSendPayload:
		return c.do(ctx, http.MethodPost, "/messages", token, p, nil)
	case syncdomain.StatusUpdatePayload:
		return c.do(ctx, http.MethodPost, "/users/status", token, p, nil)
	case syncdomain.FriendRequestPayload:
		return c.do(ctx, http.MethodPost, "/friends/requests", token, p, nil)
	case syncdomain.CallLogPayload:
		return c.do(ctx, http.MethodPost, "/calls/log", token, p, nil)
	case syncdomain.ListingUpdatePayload:
		return c.do(ctx, http.MethodPost, "/marketplace/listings/"+p.ListingID, token, p, nil)
	default:
		return fmt.Errorf("no send route for action kind %q", payload.ActionKind())
	}
}

// FetchResource reads a cacheable resource for background refresh.
// The key doubles as the resource path under the API root.
func (c *Client) FetchResource(ctx context.Context, token, key string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/"+key, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
