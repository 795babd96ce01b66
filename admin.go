package main

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// -----------------------------
// Admin statistics
// -----------------------------

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type Statistics struct {
	TotalUsers       int64            `json:"totalUsers"`
	TotalEvents      int64            `json:"totalEvents"`
	UsersByRole      map[string]int64 `json:"usersByRole"`
	UpcomingEvents   int64            `json:"upcomingEvents"`
	PastEvents       int64            `json:"pastEvents"`
	NewUsersOverTime []DailyCount     `json:"newUsersOverTime"`
}

// GetStatistics aggregates counts across the store. Admin only (enforced by
// RequireRole on the route).
func GetStatistics(c *gin.Context) {
	var stats Statistics
	stats.UsersByRole = map[string]int64{
		RoleAdmin:     0,
		RoleOrganizer: 0,
		RoleAttendee:  0,
	}

	if err := DB.Model(&User{}).Count(&stats.TotalUsers).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	if err := DB.Model(&Event{}).Count(&stats.TotalEvents).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	var roleCounts []struct {
		Role  string
		Count int64
	}
	if err := DB.Model(&User{}).
		Select("role, count(*) as count").
		Group("role").
		Scan(&roleCounts).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	for _, rc := range roleCounts {
		stats.UsersByRole[rc.Role] = rc.Count
	}

	now := time.Now()
	if err := DB.Model(&Event{}).Where("date >= ?", now).Count(&stats.UpcomingEvents).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	if err := DB.Model(&Event{}).Where("date < ?", now).Count(&stats.PastEvents).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	// Registration histogram is bucketed here rather than in SQL so the same
	// query runs against postgres and the sqlite test database.
	var registeredAt []time.Time
	if err := DB.Model(&User{}).Pluck("created_at", &registeredAt).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	perDay := map[string]int64{}
	for _, t := range registeredAt {
		perDay[t.UTC().Format("2006-01-02")]++
	}
	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	sort.Strings(days)
	stats.NewUsersOverTime = make([]DailyCount, 0, len(days))
	for _, day := range days {
		stats.NewUsersOverTime = append(stats.NewUsersOverTime, DailyCount{Date: day, Count: perDay[day]})
	}

	c.JSON(http.StatusOK, stats)
}
