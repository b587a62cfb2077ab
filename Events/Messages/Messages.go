package messages

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	Users "campusnet/Events/Users"
	AuthService "campusnet/Services/Auth"
	Utils "campusnet/Utils"
)

// UserDirectory is the slice of the users store the messages controller
// needs for recipient checks and population.
type UserDirectory interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*Users.User, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]Users.Summary, error)
}

// Controller serves the direct-message endpoints.
type Controller struct {
	store Store
	users UserDirectory
	auth  *AuthService.Service
}

func NewController(store Store, users UserDirectory, auth *AuthService.Service) *Controller {
	return &Controller{store: store, users: users, auth: auth}
}

// Handle sets up the routes for message endpoints.
func (c *Controller) Handle(r chi.Router) {
	r.Use(c.auth.RequireAuth)
	r.Post("/", c.SendMessage)
	r.Get("/conversations", c.GetConversations)
	r.Get("/{id}", c.GetMessagesWithUser)
}

// SendMessageRequest represents the send payload. The sender is always the
// authenticated identity.
type SendMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Text        string `json:"text"`
}

// SendMessage delivers a message to another user, creating the
// conversation on first contact and refreshing its last-message snapshot.
func (c *Controller) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("SendMessage: failed to read body: %v", err)
		Utils.SendError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var input SendMessageRequest
	if err := json.Unmarshal(body, &input); err != nil {
		Utils.SendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	recipientID, err := primitive.ObjectIDFromHex(strings.TrimSpace(input.RecipientID))
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid recipient id")
		return
	}
	if recipientID == identity.UserID {
		Utils.SendError(w, http.StatusBadRequest, "You cannot send messages to yourself")
		return
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		Utils.SendError(w, http.StatusBadRequest, "Message text is required")
		return
	}
	if len(text) > MaxTextLength {
		Utils.SendError(w, http.StatusBadRequest, "Message is too long (max 1000 chars)")
		return
	}

	if _, err := c.users.FindByID(ctx, recipientID); err != nil {
		if errors.Is(err, Users.ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "Recipient not found")
		} else {
			log.Printf("SendMessage: failed to fetch recipient: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	conv, err := c.store.FindConversationBetween(ctx, identity.UserID, recipientID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("SendMessage: failed to fetch conversation: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
			return
		}
		conv, err = c.store.CreateConversation(ctx, identity.UserID, recipientID)
		if err != nil {
			log.Printf("SendMessage: failed to create conversation: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
			return
		}
	}

	msg := &Message{
		Conversation: conv.ID,
		Sender:       identity.UserID,
		Recipient:    recipientID,
		Text:         text,
	}
	if err := c.store.InsertMessage(ctx, msg); err != nil {
		log.Printf("SendMessage: failed to insert message: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	sender := msg.Sender
	createdAt := msg.CreatedAt
	last := LastMessage{Text: msg.Text, Sender: &sender, CreatedAt: &createdAt}
	if err := c.store.SetLastMessage(ctx, conv.ID, last); err != nil {
		// The message is already durable; the snapshot catches up on the
		// next send. See DESIGN.md.
		log.Printf("SendMessage: failed to update conversation snapshot: %v", err)
	}

	summaries, err := c.users.Summaries(ctx, []primitive.ObjectID{msg.Sender, msg.Recipient})
	if err != nil {
		log.Printf("SendMessage: failed to populate parties: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	Utils.SendJSON(w, http.StatusCreated, map[string]interface{}{
		"conversationId": conv.ID,
		"message":        buildMessageResponse(msg, summaries),
	})
}

// GetConversations lists the caller's conversations, most recently active
// first, each with the partner, last-message snapshot, and unread count.
func (c *Controller) GetConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := Utils.ParseLimit(r.URL.Query().Get("limit"), DefaultPageLimit, MaxPageLimit)

	results, err := c.store.FindConversations(ctx, identity.UserID, limit)
	if err != nil {
		log.Printf("GetConversations: failed to fetch conversations: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	ids := make([]primitive.ObjectID, 0, len(results)*2)
	seen := make(map[primitive.ObjectID]bool)
	collect := func(id primitive.ObjectID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for i := range results {
		if partner, ok := results[i].partnerOf(identity.UserID); ok {
			collect(partner)
		}
		if sender := results[i].LastMessage.Sender; sender != nil {
			collect(*sender)
		}
	}

	summaries, err := c.users.Summaries(ctx, ids)
	if err != nil {
		log.Printf("GetConversations: failed to populate partners: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	items := make([]ConversationItem, 0, len(results))
	for i := range results {
		conv := &results[i]

		var partner *Users.Summary
		if id, ok := conv.partnerOf(identity.UserID); ok {
			if summary, found := summaries[id]; found {
				partner = &summary
			}
		}

		var lastSender *Users.Summary
		if conv.LastMessage.Sender != nil {
			if summary, found := summaries[*conv.LastMessage.Sender]; found {
				lastSender = &summary
			}
		}

		unread, err := c.store.CountUnread(ctx, conv.ID, identity.UserID)
		if err != nil {
			log.Printf("GetConversations: failed to count unread: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
			return
		}

		items = append(items, ConversationItem{
			ID:      conv.ID,
			Partner: partner,
			LastMessage: LastMessageResponse{
				Text:      conv.LastMessage.Text,
				Sender:    lastSender,
				CreatedAt: conv.LastMessage.CreatedAt,
			},
			UpdatedAt:   conv.UpdatedAt,
			UnreadCount: unread,
		})
	}

	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// GetMessagesWithUser returns a page of the thread with another user in
// chronological order and marks the caller's unread messages read. If no
// conversation exists yet the response carries a null conversationId and
// an empty page.
func (c *Controller) GetMessagesWithUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	partnerID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if partnerID == identity.UserID {
		Utils.SendError(w, http.StatusBadRequest, "Cannot open a conversation with yourself")
		return
	}

	if _, err := c.users.FindByID(ctx, partnerID); err != nil {
		if errors.Is(err, Users.ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "User not found")
		} else {
			log.Printf("GetMessagesWithUser: failed to fetch user: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	summaries, err := c.users.Summaries(ctx, []primitive.ObjectID{identity.UserID, partnerID})
	if err != nil {
		log.Printf("GetMessagesWithUser: failed to populate parties: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}
	partner := summaries[partnerID]

	limit := Utils.ParseLimit(r.URL.Query().Get("limit"), DefaultPageLimit, MaxPageLimit)
	before := Utils.ParseCursor(r.URL.Query().Get("before"))

	conv, err := c.store.FindConversationBetween(ctx, identity.UserID, partnerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendJSON(w, http.StatusOK, map[string]interface{}{
				"conversationId": nil,
				"partner":        partner,
				"items":          []MessageResponse{},
				"pageInfo":       Utils.PageInfo{},
			})
			return
		}
		log.Printf("GetMessagesWithUser: failed to fetch conversation: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	fetched, err := c.store.FindMessages(ctx, conv.ID, before, limit+1)
	if err != nil {
		log.Printf("GetMessagesWithUser: failed to fetch messages: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	page := fetched
	if len(fetched) > limit {
		page = fetched[:limit]
	}

	pageInfo := Utils.PageInfo{}
	if len(page) > 0 {
		pageInfo = Utils.BuildPageInfo(len(fetched), limit, page[len(page)-1].CreatedAt)
	}

	// The page is fetched newest first for the cursor, then reversed so
	// the client renders it top to bottom.
	items := make([]MessageResponse, 0, len(page))
	for i := len(page) - 1; i >= 0; i-- {
		items = append(items, buildMessageResponse(&page[i], summaries))
	}

	// Opening the thread is the read receipt. The items above keep the
	// readAt values from before this visit.
	if err := c.store.MarkRead(ctx, conv.ID, identity.UserID); err != nil {
		log.Printf("GetMessagesWithUser: failed to mark messages read: %v", err)
	}

	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{
		"conversationId": conv.ID,
		"partner":        partner,
		"items":          items,
		"pageInfo":       pageInfo,
	})
}
