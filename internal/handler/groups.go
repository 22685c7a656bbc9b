package handler

import (
	"context"
	"fmt"
	"net/http"

	"go.mau.fi/whatsmeow/types"

	"sms-activation-tracker/pkg/logger"
)

// GroupLister lists the WhatsApp groups codes can be sent to
type GroupLister interface {
	GetJoinedGroups(ctx context.Context) ([]*types.GroupInfo, error)
}

// GroupsHandler handles group-related requests
type GroupsHandler struct {
	groups GroupLister
	logger *logger.Logger
}

// NewGroupsHandler creates a new groups handler
func NewGroupsHandler(groups GroupLister, log *logger.Logger) *GroupsHandler {
	return &GroupsHandler{
		groups: groups,
		logger: log,
	}
}

// GroupInfo represents group information for API response
type GroupInfo struct {
	JID          string `json:"jid"`
	Name         string `json:"name"`
	Topic        string `json:"topic,omitempty"`
	Participants int    `json:"participants"`
	IsAnnounce   bool   `json:"is_announce"`
}

// ListGroups handles GET /api/v1/notify/groups
func (h *GroupsHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.GetJoinedGroups(r.Context())
	if err != nil {
		sendErrorResponse(w, r, h.logger, fmt.Errorf("failed to retrieve groups: %w", err))
		return
	}

	groupsList := make([]GroupInfo, 0, len(groups))
	for _, group := range groups {
		groupsList = append(groupsList, GroupInfo{
			JID:          group.JID.String(),
			Name:         group.Name,
			Topic:        group.Topic,
			Participants: len(group.Participants),
			IsAnnounce:   group.IsAnnounce,
		})
	}

	h.logger.Info("Groups list retrieved", "total", len(groupsList))
	sendSuccessResponse(w, r, http.StatusOK, "Groups retrieved successfully", groupsList)
}
