package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// -----------------------------
// Helper functions
// -----------------------------

func jsonError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

// getUserIDFromContext expects AuthMiddleware to set "user_id" (uint) in context.
// If not present -> unauthorized.
func getUserIDFromContext(c *gin.Context) (uint, bool) {
	uid, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	switch v := uid.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// parseDate accepts RFC3339 or "YYYY-MM-DD"
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
	}
	return t, err
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id64), true
}

// findEvent loads an event by path param, writing 404/500 itself.
func findEvent(c *gin.Context, id uint) (Event, bool) {
	var ev Event
	if err := DB.First(&ev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			jsonError(c, http.StatusNotFound, "event not found")
			return ev, false
		}
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return ev, false
	}
	return ev, true
}

// -----------------------------
// Events
// -----------------------------

type CreateEventRequest struct {
	Name        string `form:"name" json:"name" binding:"required"`
	Date        string `form:"date" json:"date" binding:"required"` // RFC3339 or "YYYY-MM-DD"
	Time        string `form:"time" json:"time" binding:"required"` // "HH:MM"
	Location    string `form:"location" json:"location" binding:"required"`
	Description string `form:"description" json:"description"`
	IsPublic    bool   `form:"is_public" json:"is_public"`
}

func CreateEvent(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !canCreateEvents(c.GetString("role")) {
		jsonError(c, http.StatusForbidden, "only organizers can create events")
		return
	}

	// Accepts JSON or multipart form (the latter when an image accompanies
	// the request).
	var body CreateEventRequest
	if err := c.ShouldBind(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	eventDate, err := parseDate(body.Date)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid date format (use RFC3339 or YYYY-MM-DD)")
		return
	}

	// Upload the image, if any, before writing the event row. An upload
	// failure aborts the create.
	imageURL := ""
	if file, err := c.FormFile("image"); err == nil && file != nil {
		src, err := file.Open()
		if err != nil {
			jsonError(c, http.StatusBadRequest, "could not read image: "+err.Error())
			return
		}
		defer src.Close()

		imageURL, err = imageStore.Upload(c.Request.Context(), file.Filename, file.Header.Get("Content-Type"), src)
		if err != nil {
			jsonError(c, http.StatusBadGateway, "image upload failed: "+err.Error())
			return
		}
	}

	ev := Event{
		Name:        strings.TrimSpace(body.Name),
		Description: body.Description,
		Location:    body.Location,
		Date:        eventDate,
		Time:        body.Time,
		ImageURL:    imageURL,
		IsPublic:    body.IsPublic,
		OrganizerID: userID,
	}

	if err := DB.Create(&ev).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create event: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, ev)
}

// ListEvents scopes the result set by role: admins see everything, organizers
// their own events, attendees the public ones.
func ListEvents(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	query := DB.Model(&Event{}).Order("date asc")

	switch c.GetString("role") {
	case RoleAdmin:
		// unrestricted
	case RoleOrganizer:
		query = query.Where("organizer_id = ?", userID)
	default:
		query = query.Where("is_public = ?", true)
	}

	var events []Event
	if err := query.Find(&events).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, events)
}

func GetEvent(c *gin.Context) {
	eventID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ev, ok := findEvent(c, eventID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ev)
}

type UpdateEventRequest struct {
	Name        *string `json:"name"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

func UpdateEvent(c *gin.Context) {
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

	if !canPerform(c.GetString("role"), ActionManageEvent, ev.OrganizerID, userID) {
		jsonError(c, http.StatusForbidden, "only the organizer can update the event")
		return
	}

	var body UpdateEventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	updates := map[string]interface{}{}
	if body.Name != nil {
		if strings.TrimSpace(*body.Name) == "" {
			jsonError(c, http.StatusBadRequest, "name cannot be empty")
			return
		}
		updates["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Date != nil {
		eventDate, err := parseDate(*body.Date)
		if err != nil {
			jsonError(c, http.StatusBadRequest, "invalid date format (use RFC3339 or YYYY-MM-DD)")
			return
		}
		updates["date"] = eventDate
	}
	if body.Time != nil {
		updates["time"] = *body.Time
	}
	if body.Location != nil {
		updates["location"] = *body.Location
	}
	if body.Description != nil {
		updates["description"] = *body.Description
	}
	if body.IsPublic != nil {
		updates["is_public"] = *body.IsPublic
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, ev)
		return
	}

	if err := DB.Model(&ev).Updates(updates).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "could not update event: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, ev)
}

// DeleteEvent removes the event and everything hanging off it (invitations,
// discussion comments) in one transaction.
func DeleteEvent(c *gin.Context) {
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

	if !canPerform(c.GetString("role"), ActionManageEvent, ev.OrganizerID, userID) {
		jsonError(c, http.StatusForbidden, "only the organizer can delete the event")
		return
	}

	if err := DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", ev.ID).Delete(&Invitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", ev.ID).Delete(&DiscussionComment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Event{}, ev.ID).Error; err != nil {
			return err
		}
		return nil
	}); err != nil {
		jsonError(c, http.StatusInternalServerError, "delete failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
}
