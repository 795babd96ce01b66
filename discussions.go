package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// -----------------------------
// Discussions
// -----------------------------

type PostCommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// CommentView is a comment joined with its author's username.
type CommentView struct {
	ID        uint      `json:"id"`
	EventID   uint      `json:"event_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// canDiscuss reports whether the caller may post to the event's thread:
// the organizer, an admin, or anyone holding an invitation.
func canDiscuss(role string, ev Event, userID uint) (bool, error) {
	if role == RoleAdmin || ev.OrganizerID == userID {
		return true, nil
	}
	var inv Invitation
	err := DB.Where("event_id = ? AND user_id = ?", ev.ID, userID).First(&inv).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func PostComment(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	eventID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var body PostCommentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	text := strings.TrimSpace(body.Text)
	if text == "" {
		jsonError(c, http.StatusBadRequest, "comment text cannot be empty")
		return
	}

	ev, ok := findEvent(c, eventID)
	if !ok {
		return
	}

	allowed, err := canDiscuss(c.GetString("role"), ev, userID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	if !allowed {
		jsonError(c, http.StatusForbidden, "you are not part of this event")
		return
	}

	comment := DiscussionComment{
		EventID:  eventID,
		AuthorID: userID,
		Text:     text,
	}
	if err := DB.Create(&comment).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "could not post comment: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, CommentView{
		ID:        comment.ID,
		EventID:   comment.EventID,
		Author:    c.GetString("username"),
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt,
	})
}

// ListComments returns the event's thread in insertion order (oldest first).
func ListComments(c *gin.Context) {
	eventID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if _, ok := findEvent(c, eventID); !ok {
		return
	}

	comments := []CommentView{}
	err := DB.Table("discussion_comments").
		Select("discussion_comments.id, discussion_comments.event_id, users.username AS author, discussion_comments.text, discussion_comments.created_at").
		Joins("JOIN users ON users.id = discussion_comments.author_id").
		Where("discussion_comments.event_id = ?", eventID).
		Order("discussion_comments.id asc").
		Scan(&comments).Error
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, comments)
}

// DeleteDiscussion removes every comment on the event in one statement.
func DeleteDiscussion(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	eventID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ev, ok := findEvent(c, eventID)
	if !ok {
		return
	}

	if !canPerform(c.GetString("role"), ActionModerateDiscussion, ev.OrganizerID, userID) {
		jsonError(c, http.StatusForbidden, "only the organizer can delete the discussion")
		return
	}

	if err := DB.Where("event_id = ?", eventID).Delete(&DiscussionComment{}).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "delete failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "discussion deleted"})
}
