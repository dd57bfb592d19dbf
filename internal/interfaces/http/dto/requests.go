package dto

import (
	"time"

	"github.com/shopspring/decimal"

	syncdomain "github.com/wavechat/client/internal/domain/sync"
)

// LoginRequest carries credentials from the UI shell
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=8"`
}

// RegisterRequest carries a new account request from the UI shell
type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"omitempty,max=64"`
}

// EnqueueRequest carries one offline action from the UI shell. Exactly one
// payload field must be set, matching Kind.
type EnqueueRequest struct {
	Kind          string                `json:"kind" binding:"required,oneof=message.send status.update friend.request call.log listing.update"`
	Message       *MessagePayload       `json:"message,omitempty"`
	Status        *StatusPayload        `json:"status,omitempty"`
	FriendRequest *FriendRequestPayload `json:"friend_request,omitempty"`
	CallLog       *CallLogPayload       `json:"call_log,omitempty"`
	Listing       *ListingPayload       `json:"listing,omitempty"`
}

// MessagePayload mirrors sync.MessageSendPayload at the API boundary
type MessagePayload struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Content        string `json:"content" binding:"required,max=4096"`
	ClientRef      string `json:"client_ref"`
}

// StatusPayload mirrors sync.StatusUpdatePayload
type StatusPayload struct {
	Status  string `json:"status" binding:"required,oneof=online away busy offline"`
	Message string `json:"message" binding:"omitempty,max=128"`
}

// FriendRequestPayload mirrors sync.FriendRequestPayload
type FriendRequestPayload struct {
	TargetUserID string `json:"target_user_id" binding:"required"`
	Note         string `json:"note" binding:"omitempty,max=256"`
}

// CallLogPayload mirrors sync.CallLogPayload
type CallLogPayload struct {
	PeerUserID string        `json:"peer_user_id" binding:"required"`
	Direction  string        `json:"direction" binding:"required,oneof=incoming outgoing"`
	StartedAt  time.Time     `json:"started_at" binding:"required"`
	Duration   time.Duration `json:"duration"`
}

// ListingPayload mirrors sync.ListingUpdatePayload
type ListingPayload struct {
	ListingID string          `json:"listing_id" binding:"required"`
	Title     string          `json:"title" binding:"omitempty,max=128"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

// ToDomain converts the request to its tagged-union payload
func (r *EnqueueRequest) ToDomain() (syncdomain.ActionPayload, bool) {
	switch syncdomain.ActionKind(r.Kind) {
	case syncdomain.KindMessageSend:
		if r.Message == nil {
			return nil, false
		}
		return syncdomain.MessageSendPayload{
			ConversationID: r.Message.ConversationID,
			Content:        r.Message.Content,
			ClientRef:      r.Message.ClientRef,
		}, true
	case syncdomain.KindStatusUpdate:
		if r.Status == nil {
			return nil, false
		}
		return syncdomain.StatusUpdatePayload{
			Status:  r.Status.Status,
			Message: r.Status.Message,
		}, true
	case syncdomain.KindFriendRequest:
		if r.FriendRequest == nil {
			return nil, false
		}
		return syncdomain.FriendRequestPayload{
			TargetUserID: r.FriendRequest.TargetUserID,
			Note:         r.FriendRequest.Note,
		}, true
	case syncdomain.KindCallLog:
		if r.CallLog == nil {
			return nil, false
		}
		return syncdomain.CallLogPayload{
			PeerUserID: r.CallLog.PeerUserID,
			Direction:  r.CallLog.Direction,
			StartedAt:  r.CallLog.StartedAt,
			Duration:   r.CallLog.Duration,
		}, true
	case syncdomain.KindListingUpdate:
		if r.Listing == nil {
			return nil, false
		}
		return syncdomain.ListingUpdatePayload{
			ListingID: r.Listing.ListingID,
			Title:     r.Listing.Title,
			Price:     r.Listing.Price,
			Available: r.Listing.Available,
		}, true
	default:
		return nil, false
	}
}
